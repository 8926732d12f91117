package models

import "time"

// ClientState is a single-row table holding device-local state that must
// survive restarts but never syncs to the backend.
type ClientState struct {
	ID string `gorm:"primaryKey;size:16" json:"id"`

	// TrackingID is the anonymous telemetry distinct id.
	TrackingID string `gorm:"size:64" json:"tracking_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (ClientState) TableName() string {
	return "client_state"
}
