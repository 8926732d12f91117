package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentx-app/chatsync/internal/models"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) *DB {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	})

	return db
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "chatsync.db")

	db, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
	}()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "dirs", "chatsync.db")

	db, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("nested directories were not created")
	}
}

// --- Session Tests ---

func TestSessionCRUD(t *testing.T) {
	db := testDB(t)

	session := &models.Session{
		ID:         42,
		Title:      "Budget planning",
		Profession: "accountant",
		CreatedAt:  time.Now(),
	}

	if err := db.CreateSession(session); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	retrieved, err := db.GetSession(42)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if retrieved == nil {
		t.Fatal("GetSession() returned nil")
	}
	if retrieved.Title != "Budget planning" {
		t.Errorf("Title = %q, want %q", retrieved.Title, "Budget planning")
	}

	missing, err := db.GetSession(999)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if missing != nil {
		t.Error("GetSession() should return nil for unknown id")
	}
}

func TestUpsertSession_MergesWithoutDuplicating(t *testing.T) {
	db := testDB(t)

	created := time.Now().Add(-time.Hour)
	if err := db.CreateSession(&models.Session{ID: 1, Title: "A", Profession: "doctor", CreatedAt: created}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Remote returns the same id with a server-side rename.
	if err := db.UpsertSession(&models.Session{ID: 1, Title: "B", CreatedAt: created}); err != nil {
		t.Fatalf("UpsertSession() error = %v", err)
	}

	sessions, err := db.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("ListSessions() returned %d rows, want 1", len(sessions))
	}
	if sessions[0].Title != "B" {
		t.Errorf("Title after merge = %q, want %q", sessions[0].Title, "B")
	}
	// Profession is device-local and must survive the merge.
	if sessions[0].Profession != "doctor" {
		t.Errorf("Profession after merge = %q, want %q", sessions[0].Profession, "doctor")
	}
}

func TestListSessions_SortedByCreatedAtDescending(t *testing.T) {
	db := testDB(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	// Insert out of order.
	offsets := []time.Duration{time.Hour, 3 * time.Hour, 0, 2 * time.Hour}
	for i, off := range offsets {
		s := &models.Session{ID: models.SessionID(i + 1), Title: "s", CreatedAt: base.Add(off)}
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("CreateSession() error = %v", err)
		}
	}

	sessions, err := db.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 4 {
		t.Fatalf("ListSessions() returned %d rows, want 4", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i].CreatedAt.After(sessions[i-1].CreatedAt) {
			t.Errorf("sessions not sorted descending at index %d", i)
		}
	}
}

func TestRemapSession(t *testing.T) {
	db := testDB(t)

	localID := models.NewLocalSessionID(time.Now())
	if err := db.CreateSession(&models.Session{ID: localID, Title: "New Chat", Profession: "lawyer", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := db.SaveMessage(&models.Message{ID: "m1", SessionID: localID, Content: "hi", Type: models.MessageUser, Status: models.StatusSent, Timestamp: time.Now()}); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}

	if err := db.RemapSession(localID, 77); err != nil {
		t.Fatalf("RemapSession() error = %v", err)
	}

	old, _ := db.GetSession(localID)
	if old != nil {
		t.Error("local session row should be gone after remap")
	}

	remapped, err := db.GetSession(77)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if remapped == nil {
		t.Fatal("server session row should exist after remap")
	}
	if remapped.Profession != "lawyer" {
		t.Errorf("Profession = %q, want %q", remapped.Profession, "lawyer")
	}

	msgs, err := db.ListSessionMessages(77)
	if err != nil {
		t.Fatalf("ListSessionMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("messages under server id = %d, want 1", len(msgs))
	}
}

// --- Message Tests ---

func TestSaveMessage_And_Ordering(t *testing.T) {
	db := testDB(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	// Insert newest first; listing must come back oldest first.
	offsets := []time.Duration{2 * time.Minute, 0, time.Minute}
	for i, off := range offsets {
		msg := &models.Message{
			ID:        "msg-" + string(rune('a'+i)),
			SessionID: 1,
			Content:   "m",
			Type:      models.MessageUser,
			Status:    models.StatusSent,
			Timestamp: base.Add(off),
		}
		if err := db.SaveMessage(msg); err != nil {
			t.Fatalf("SaveMessage() error = %v", err)
		}
	}

	msgs, err := db.ListSessionMessages(1)
	if err != nil {
		t.Fatalf("ListSessionMessages() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("ListSessionMessages() returned %d rows, want 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("messages not sorted ascending at index %d", i)
		}
	}
}

func TestSaveMessage_UpsertDoesNotResetSynced(t *testing.T) {
	db := testDB(t)

	msg := &models.Message{
		ID:        "sync-keep",
		SessionID: 1,
		Content:   "hello",
		Type:      models.MessageUser,
		Status:    models.StatusSending,
		Timestamp: time.Now(),
	}
	if err := db.SaveMessage(msg); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if err := db.MarkMessageSynced("sync-keep"); err != nil {
		t.Fatalf("MarkMessageSynced() error = %v", err)
	}

	// Re-save the same row with IsSynced unset on the value.
	msg.Status = models.StatusSent
	msg.IsSynced = false
	if err := db.SaveMessage(msg); err != nil {
		t.Fatalf("SaveMessage() re-save error = %v", err)
	}

	stored, err := db.GetMessage("sync-keep")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if !stored.IsSynced {
		t.Error("is_synced must stay true across upserts")
	}
	if stored.Status != models.StatusSent {
		t.Errorf("Status = %q, want %q", stored.Status, models.StatusSent)
	}
}

func TestDeleteSyncedMessages_KeepsUnsyncedRows(t *testing.T) {
	db := testDB(t)

	now := time.Now()
	synced := &models.Message{ID: "s1", SessionID: 5, Content: "old", Type: models.MessageUser, IsSynced: true, Timestamp: now}
	unsynced := &models.Message{ID: "u1", SessionID: 5, Content: "in-flight", Type: models.MessageUser, Timestamp: now}
	other := &models.Message{ID: "o1", SessionID: 6, Content: "other session", Type: models.MessageUser, IsSynced: true, Timestamp: now}

	for _, m := range []*models.Message{synced, unsynced, other} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	if err := db.DeleteSyncedMessages(5); err != nil {
		t.Fatalf("DeleteSyncedMessages() error = %v", err)
	}

	if m, _ := db.GetMessage("s1"); m != nil {
		t.Error("synced row in scope should be deleted")
	}
	if m, _ := db.GetMessage("u1"); m == nil {
		t.Error("unsynced row must survive hydration replace")
	}
	if m, _ := db.GetMessage("o1"); m == nil {
		t.Error("rows of other sessions must not be touched")
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	db := testDB(t)

	msg := &models.Message{ID: "st1", SessionID: 1, Content: "x", Type: models.MessageUser, Status: models.StatusSending, Timestamp: time.Now()}
	if err := db.SaveMessage(msg); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}

	if err := db.UpdateMessageStatus("st1", models.StatusFailed); err != nil {
		t.Fatalf("UpdateMessageStatus() error = %v", err)
	}

	stored, _ := db.GetMessage("st1")
	if stored.Status != models.StatusFailed {
		t.Errorf("Status = %q, want %q", stored.Status, models.StatusFailed)
	}
}

// --- Pending Queue Tests ---

func TestPendingQueue_FIFO(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		op := &models.PendingOp{
			Kind:       models.OpKindMessage,
			Action:     models.OpCreate,
			TargetID:   "msg-" + string(rune('a'+i)),
			Payload:    "{}",
			EnqueuedAt: time.Now(),
		}
		if err := db.EnqueuePendingOp(op); err != nil {
			t.Fatalf("EnqueuePendingOp() error = %v", err)
		}
	}

	ops, err := db.ListPendingOps()
	if err != nil {
		t.Fatalf("ListPendingOps() error = %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("ListPendingOps() returned %d ops, want 3", len(ops))
	}
	if ops[0].TargetID != "msg-a" || ops[2].TargetID != "msg-c" {
		t.Errorf("queue not in enqueue order: %q .. %q", ops[0].TargetID, ops[2].TargetID)
	}

	if err := db.DeletePendingOp(ops[0].ID); err != nil {
		t.Fatalf("DeletePendingOp() error = %v", err)
	}

	count, err := db.CountPendingOps()
	if err != nil {
		t.Fatalf("CountPendingOps() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountPendingOps() = %d, want 2", count)
	}
}

// --- Client State Tests ---

func TestGetOrCreateTrackingID_Persistent(t *testing.T) {
	db := testDB(t)

	first := db.GetOrCreateTrackingID()
	if first == "" {
		t.Fatal("tracking id should not be empty")
	}

	second := db.GetOrCreateTrackingID()
	if first != second {
		t.Errorf("tracking id not stable: %q vs %q", first, second)
	}
}

// --- Transaction Tests ---

func TestTransaction_Rollback(t *testing.T) {
	db := testDB(t)

	err := db.Transaction(func(tx *DB) error {
		msg := &models.Message{ID: "tx-roll", SessionID: 1, Content: "x", Type: models.MessageUser, Timestamp: time.Now()}
		if err := tx.SaveMessage(msg); err != nil {
			return err
		}
		return os.ErrInvalid
	})
	if err != os.ErrInvalid {
		t.Errorf("Transaction() error = %v, want os.ErrInvalid", err)
	}

	msg, err := db.GetMessage("tx-roll")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if msg != nil {
		t.Error("message should not exist after rollback")
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	if err := db.CreateSession(&models.Session{ID: 1, Title: "s", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := db.SaveMessage(&models.Message{ID: "m1", SessionID: 1, Content: "x", Type: models.MessageUser, Timestamp: time.Now()}); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if err := db.EnqueuePendingOp(&models.PendingOp{Kind: models.OpKindMessage, Action: models.OpCreate, TargetID: "m1", Payload: "{}", EnqueuedAt: time.Now()}); err != nil {
		t.Fatalf("EnqueuePendingOp() error = %v", err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalSessions != 1 || stats.TotalMessages != 1 || stats.PendingOps != 1 {
		t.Errorf("stats = %+v, want 1/1/1", stats)
	}
	if stats.UnsyncedRows != 1 {
		t.Errorf("UnsyncedRows = %d, want 1", stats.UnsyncedRows)
	}
	if stats.DBSizeBytes <= 0 {
		t.Error("DBSizeBytes should be > 0")
	}
}
