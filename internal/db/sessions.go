package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentx-app/chatsync/internal/models"
)

// CreateSession creates a new session row.
func (db *DB) CreateSession(session *models.Session) error {
	return db.Create(session).Error
}

// UpsertSession creates or updates a session keyed by id. Used when merging
// the backend's session list into the mirror: title and created_at follow the
// server, profession is device-local and never clobbered.
func (db *DB) UpsertSession(session *models.Session) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "created_at", "updated_at"}),
	}).Create(session).Error
}

// GetSession retrieves a session by id. Returns nil when not found.
func (db *DB) GetSession(id models.SessionID) (*models.Session, error) {
	var session models.Session
	err := db.First(&session, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListSessions returns all sessions sorted by creation time descending.
func (db *DB) ListSessions() ([]models.Session, error) {
	var sessions []models.Session
	err := db.Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

// DeleteSession removes a session row. Only used while remapping a
// local-only session onto its server-assigned id.
func (db *DB) DeleteSession(id models.SessionID) error {
	return db.Delete(&models.Session{}, "id = ?", id).Error
}

// RemapSession moves a local-only session and all of its message rows onto a
// server-assigned id in one transaction.
func (db *DB) RemapSession(localID, serverID models.SessionID) error {
	return db.Transaction(func(tx *DB) error {
		local, err := tx.GetSession(localID)
		if err != nil {
			return err
		}

		if local != nil {
			server := *local
			server.ID = serverID
			if err := tx.UpsertSession(&server); err != nil {
				return err
			}
			if err := tx.DeleteSession(localID); err != nil {
				return err
			}
		}

		return tx.Model(&models.Message{}).
			Where("session_id = ?", localID).
			Update("session_id", serverID).Error
	})
}
