package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentx-app/chatsync/internal/models"
)

// SaveMessage inserts or updates a message row keyed by id. The is_synced
// column is deliberately excluded from the update set: a row acknowledged by
// the backend must never slide back to unsynced. Use MarkMessageSynced to
// flip the flag.
func (db *DB) SaveMessage(msg *models.Message) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session_id", "content", "type", "status", "metadata", "timestamp", "updated_at",
		}),
	}).Create(msg).Error
}

// GetMessage retrieves a message by id. Returns nil when not found.
func (db *DB) GetMessage(id string) (*models.Message, error) {
	var msg models.Message
	err := db.First(&msg, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListSessionMessages returns all messages for a session ordered by ascending
// timestamp, independent of insertion order.
func (db *DB) ListSessionMessages(sessionID models.SessionID) ([]models.Message, error) {
	var msgs []models.Message
	err := db.Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&msgs).Error
	return msgs, err
}

// DeleteSyncedMessages removes rows for a session that the backend has
// already acknowledged. Unsynced in-flight rows are never touched; a full
// hydration replaces exactly the rows the server is about to re-supply.
func (db *DB) DeleteSyncedMessages(sessionID models.SessionID) error {
	return db.Where("session_id = ? AND is_synced = ?", sessionID, true).
		Delete(&models.Message{}).Error
}

// MarkMessageSynced flips a row's synced flag to true. The flag is monotonic;
// there is no inverse operation.
func (db *DB) MarkMessageSynced(id string) error {
	return db.Model(&models.Message{}).
		Where("id = ?", id).
		Update("is_synced", true).Error
}

// UpdateMessageStatus sets a message's delivery status.
func (db *DB) UpdateMessageStatus(id string, status models.MessageStatus) error {
	return db.Model(&models.Message{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// ReassignMessageSession moves a single message row to another session.
// Used when the backend assigns a session id in response to the first send.
func (db *DB) ReassignMessageSession(id string, sessionID models.SessionID) error {
	return db.Model(&models.Message{}).
		Where("id = ?", id).
		Update("session_id", sessionID).Error
}

// CountSessionMessages returns the number of stored rows for a session.
func (db *DB) CountSessionMessages(sessionID models.SessionID) (int64, error) {
	var count int64
	err := db.Model(&models.Message{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
