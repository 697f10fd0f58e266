package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hotgluexyz/target-actionkit/db/models"
	"gorm.io/gorm"
)

// Store persists sync-run bookkeeping and per-stream checkpoint state.
type Store struct {
	gdb *gorm.DB
}

func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("nil gorm db")
	}
	return &Store{gdb: gdb}, nil
}

func (s *Store) StartRun(ctx context.Context, runID, streamName string, startedAt time.Time) error {
	run := models.SyncRun{
		ID:        runID,
		Stream:    streamName,
		StartedAt: startedAt.UTC(),
	}
	return s.gdb.WithContext(ctx).Create(&run).Error
}

func (s *Store) FinishRun(ctx context.Context, runID string, synced, failed int, finishedAt time.Time) error {
	ts := finishedAt.UTC()
	return s.gdb.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"records_synced": synced,
			"records_failed": failed,
			"finished_at":    &ts,
		}).Error
}

// SaveState upserts the latest checkpoint blob for a stream.
func (s *Store) SaveState(ctx context.Context, streamName string, state json.RawMessage, now time.Time) error {
	row := models.StreamState{
		Stream:    streamName,
		State:     string(state),
		UpdatedAt: now.UTC(),
	}
	return s.gdb.WithContext(ctx).Save(&row).Error
}

// LoadState returns the stored checkpoint for a stream, if any.
func (s *Store) LoadState(ctx context.Context, streamName string) (json.RawMessage, bool, error) {
	var row models.StreamState
	err := s.gdb.WithContext(ctx).First(&row, "stream = ?", streamName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(row.State), true, nil
}
