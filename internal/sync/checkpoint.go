package sync

import (
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/wppilot/internal/store"
	"go.uber.org/zap"
)

// Checkpoints is a small key-value store over the sync_state table.
type Checkpoints struct {
	db     *store.DB
	logger *zap.Logger
}

// NewCheckpoints creates a checkpoint store.
func NewCheckpoints(db *store.DB, logger *zap.Logger) *Checkpoints {
	return &Checkpoints{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (c *Checkpoints) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := c.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value. A missing key yields ""
// and ErrNoCheckpoint.
func (c *Checkpoints) GetCheckpoint(key string) (string, error) {
	var value string
	err := c.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCheckpoint
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// ErrNoCheckpoint is returned when a checkpoint key was never written.
var ErrNoCheckpoint = errors.New("checkpoint not found")
