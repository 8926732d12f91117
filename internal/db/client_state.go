package db

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentx-app/chatsync/internal/models"
)

// GetClientState retrieves the single-row device-local state.
func (db *DB) GetClientState() (*models.ClientState, error) {
	var state models.ClientState
	err := db.Where("id = ?", "default").First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.ClientState{ID: "default"}, nil
		}
		return nil, err
	}
	return &state, nil
}

// GetOrCreateTrackingID returns the persistent telemetry tracking ID,
// creating one if it doesn't exist. On any error, it falls back to a
// per-session ID.
func (db *DB) GetOrCreateTrackingID() string {
	state, err := db.GetClientState()
	if err != nil {
		return uuid.New().String()
	}

	if state.TrackingID != "" {
		return state.TrackingID
	}

	trackingID := uuid.New().String()
	state.TrackingID = trackingID
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tracking_id", "updated_at"}),
	}).Create(state).Error
	if err != nil {
		// Even if save fails, return the generated ID for this session
		return trackingID
	}

	return trackingID
}
