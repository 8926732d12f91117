package db

import (
	"github.com/agentx-app/chatsync/internal/models"
)

// EnqueuePendingOp appends an operation to the pending queue.
func (db *DB) EnqueuePendingOp(op *models.PendingOp) error {
	return db.Create(op).Error
}

// ListPendingOps returns the queue in strict enqueue order.
func (db *DB) ListPendingOps() ([]models.PendingOp, error) {
	var ops []models.PendingOp
	err := db.Order("id ASC").Find(&ops).Error
	return ops, err
}

// DeletePendingOp removes a successfully replayed operation.
func (db *DB) DeletePendingOp(id uint) error {
	return db.Delete(&models.PendingOp{}, "id = ?", id).Error
}

// CountPendingOps returns the queue depth.
func (db *DB) CountPendingOps() (int64, error) {
	var count int64
	err := db.Model(&models.PendingOp{}).Count(&count).Error
	return count, err
}
