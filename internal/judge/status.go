package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ojcore/internal/common/cache"
	"ojcore/internal/model"
	"ojcore/pkg/utils/logger"

	"go.uber.org/zap"
)

const statusTTL = time.Hour

// Snapshot is the live judge status of one submission, kept in redis for
// polling and pushed over pub/sub for the websocket stream.
type Snapshot struct {
	SubmissionID  int64         `json:"submission_id"`
	Status        model.Verdict `json:"status"`
	FinishedCases int           `json:"finished_cases"`
	TotalCases    int           `json:"total_cases"`
	Score         int           `json:"score"`
	ExecTimeMs    int64         `json:"exec_time_ms"`
	MemoryKB      int64         `json:"memory_kb"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// StatusStore publishes live judge progress. Writes are best-effort: a
// cache outage must never fail a judge run.
type StatusStore struct {
	cache cache.Cache
}

// NewStatusStore creates a status store over the given cache.
func NewStatusStore(c cache.Cache) *StatusStore {
	return &StatusStore{cache: c}
}

func statusKey(submissionID int64) string {
	return fmt.Sprintf("judge:status:%d", submissionID)
}

func statusChannel(submissionID int64) string {
	return fmt.Sprintf("judge:events:%d", submissionID)
}

// Update stores the snapshot and publishes it to subscribers.
func (s *StatusStore) Update(ctx context.Context, snap Snapshot) {
	if s == nil || s.cache == nil {
		return
	}
	snap.UpdatedAt = time.Now()
	payload, err := json.Marshal(snap)
	if err != nil {
		logger.Warn(ctx, "encode status snapshot failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, statusKey(snap.SubmissionID), string(payload), cache.JitterTTL(statusTTL)); err != nil {
		logger.Warn(ctx, "store status snapshot failed",
			zap.Int64("submission_id", snap.SubmissionID), zap.Error(err))
	}
	if err := s.cache.Publish(ctx, statusChannel(snap.SubmissionID), string(payload)); err != nil {
		logger.Warn(ctx, "publish status snapshot failed",
			zap.Int64("submission_id", snap.SubmissionID), zap.Error(err))
	}
}

// Get returns the latest snapshot, with ok=false on a cache miss.
func (s *StatusStore) Get(ctx context.Context, submissionID int64) (Snapshot, bool, error) {
	if s == nil || s.cache == nil {
		return Snapshot{}, false, nil
	}
	raw, err := s.cache.Get(ctx, statusKey(submissionID))
	if err != nil {
		return Snapshot{}, false, err
	}
	if raw == "" {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode status snapshot failed: %w", err)
	}
	return snap, true, nil
}

// Watch subscribes to live snapshots of one submission. The returned
// cancel function releases the subscription.
func (s *StatusStore) Watch(ctx context.Context, submissionID int64) (<-chan Snapshot, func(), error) {
	raw, cancel, err := s.cache.Subscribe(ctx, statusChannel(submissionID))
	if err != nil {
		return nil, nil, err
	}
	out := make(chan Snapshot, 16)
	go func() {
		defer close(out)
		for payload := range raw {
			var snap Snapshot
			if err := json.Unmarshal([]byte(payload), &snap); err != nil {
				logger.Warn(ctx, "drop malformed status event",
					zap.Int64("submission_id", submissionID), zap.Error(err))
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}
