package service

import (
	"context"
	"time"

	"parley/internal/observability"
)

// defaultSweepBatch caps how many expired rows one pass claims per entity.
const defaultSweepBatch = 200

// SweepResult summarizes one sweeper pass.
type SweepResult struct {
	Conversations   int `json:"conversations"`
	Rooms           int `json:"rooms"`
	TrimmedMessages int `json:"trimmed_messages"`
}

// Sweeper drives periodic retention: expired conversations first, then
// expired rooms, then room history trims. Each phase isolates its own
// failures so one broken row cannot stall the others.
type Sweeper struct {
	conversations *ConversationService
	rooms         *RoomService
	batchSize     int
}

// NewSweeper creates a sweeper over the two retention-bearing engines.
func NewSweeper(conversations *ConversationService, rooms *RoomService) *Sweeper {
	return &Sweeper{
		conversations: conversations,
		rooms:         rooms,
		batchSize:     defaultSweepBatch,
	}
}

// RunOnce executes a single ordered pass and reports what it deleted.
// Phase errors are logged inside the services; RunOnce itself only fails on
// list-level errors, and even then later phases still run.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	observability.LogAsyncOperationStart(ctx, "retention_sweep", nil)
	started := time.Now()

	var result SweepResult

	deleted, err := s.conversations.SweepExpired(ctx, s.batchSize)
	result.Conversations = deleted
	if err != nil {
		observability.LogAsyncOperationError(ctx, "retention_sweep", err,
			map[string]interface{}{"phase": "conversations"})
	}

	deleted, err = s.rooms.SweepExpired(ctx, s.batchSize)
	result.Rooms = deleted
	if err != nil {
		observability.LogAsyncOperationError(ctx, "retention_sweep", err,
			map[string]interface{}{"phase": "rooms"})
	}

	trimmed, err := s.rooms.TrimMessages(ctx)
	result.TrimmedMessages = trimmed
	if err != nil {
		observability.LogAsyncOperationError(ctx, "retention_sweep", err,
			map[string]interface{}{"phase": "room_messages"})
	}

	observability.LogAsyncOperationEnd(ctx, "retention_sweep", map[string]interface{}{
		"conversations":    result.Conversations,
		"rooms":            result.Rooms,
		"trimmed_messages": result.TrimmedMessages,
		"duration_ms":      time.Since(started).Milliseconds(),
	})
	return result
}

// Run sweeps on the given interval until ctx is cancelled. Intended to run
// in-process next to the API; cron deployments call RunOnce via the sweep
// command instead.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
