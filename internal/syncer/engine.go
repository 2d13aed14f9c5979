// Package syncer reconciles local session state against the remote store.
// All pushes are best-effort and idempotent: a failed session lands in a
// durable retry queue, a succeeded one in the synced-id set, and nothing
// in here ever surfaces an error to the caller.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/images"
	"github.com/yourname/clockwork/internal/kvstore"
)

// AlreadySynced is returned by SyncSession when the session id is in the
// synced set and no network I/O was performed.
const AlreadySynced = "already_synced"

type Engine struct {
	gw     *gateway.Gateway
	kv     kvstore.Store
	images *images.Store
	logger internal.Logger

	// mu serializes every read-modify-write of the persisted sync state.
	mu sync.Mutex

	interSessionDelay time.Duration
	interUploadDelay  time.Duration
	refreshInterval   time.Duration
	drainInterval     time.Duration
	backupInterval    time.Duration

	bgMu       sync.Mutex
	bgShutdown chan struct{}
	backupStop chan struct{}
}

func NewEngine(gw *gateway.Gateway, kv kvstore.Store, imgs *images.Store, logger internal.Logger) *Engine {
	return &Engine{
		gw:                gw,
		kv:                kv,
		images:            imgs,
		logger:            logger,
		interSessionDelay: 500 * time.Millisecond,
		interUploadDelay:  200 * time.Millisecond,
		refreshInterval:   25 * time.Minute,
		drainInterval:     5 * time.Minute,
		backupInterval:    3 * time.Minute,
	}
}

type lapPayload struct {
	LapName         string    `json:"lapName"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt,omitempty"`
	DurationSeconds int       `json:"durationSeconds"`
	IsBreak         bool      `json:"isBreak"`
}

func newLapPayload(lap internal.WorkLap) lapPayload {
	return lapPayload{
		LapName:         lap.WorkDone,
		StartedAt:       lap.StartTime,
		EndedAt:         lap.EndTime,
		DurationSeconds: lap.TotalSecondsRaw(),
		IsBreak:         lap.IsBreak,
	}
}

// SyncSession pushes one completed session to the backend. It returns the
// backend session id, AlreadySynced when the session was pushed before, or
// "" when the push failed and the session was queued for retry.
//
// Session creation is the atomic gate: if it fails nothing else is
// attempted. Lap pushes and image uploads after it are best-effort; a
// partially mirrored remote session is tolerated and will not be retried
// once the id is in the synced set.
func (e *Engine) SyncSession(ctx context.Context, session internal.Session) string {
	if !e.gw.Credentials().IsAuthenticated() {
		return ""
	}

	e.mu.Lock()
	synced := e.isSynced(session.ID)
	e.mu.Unlock()
	if synced {
		return AlreadySynced
	}

	remoteID := e.createRemoteSession(ctx, session)
	if remoteID == "" {
		e.logger.Warnf("syncer: failed to create session %s on backend, queued for retry", session.ID)
		e.mu.Lock()
		e.enqueue(session)
		e.mu.Unlock()
		return ""
	}

	// Push laps oldest-first; the archive stores them newest-first.
	for i := len(session.Laps) - 1; i >= 0; i-- {
		lap := session.Laps[i]
		raw := e.gw.AuthenticatedCall(ctx, http.MethodPost, "/sessions/"+remoteID+"/laps", newLapPayload(lap))
		if raw == nil {
			// Lap pushes never abort the sync.
			e.logger.Warnf("syncer: failed to push lap %s of session %s", lap.ID, session.ID)
			continue
		}
		if remoteLapID := extractID(raw); remoteLapID != "" {
			e.uploadLapImages(ctx, remoteID, remoteLapID, lap.ID)
		}
	}

	e.gw.AuthenticatedCall(ctx, http.MethodPut, "/sessions/"+remoteID, map[string]any{
		"endedAt":       session.EndTime,
		"totalDuration": session.TotalSeconds,
		"isCompleted":   true,
	})

	e.mu.Lock()
	e.markSynced(session.ID)
	e.dequeue(session.ID)
	e.mu.Unlock()

	e.logger.Infof("syncer: session %s synced as backend session %s", session.ID, remoteID)
	return remoteID
}

func (e *Engine) createRemoteSession(ctx context.Context, session internal.Session) string {
	started := session.StartTime
	if started.IsZero() {
		started = session.CreatedAt
	}
	raw := e.gw.AuthenticatedCall(ctx, http.MethodPost, "/sessions/", map[string]any{
		"sessionName": session.DisplayName(),
		"description": fmt.Sprintf("%d laps, %ds total", session.LapCount, session.TotalSeconds),
		"startedAt":   started,
	})
	if raw == nil {
		return ""
	}
	return extractID(raw)
}

func (e *Engine) uploadLapImages(ctx context.Context, remoteSessionID, remoteLapID, localLapID string) {
	for i, img := range e.images.Get(localLapID) {
		path := "/images/sessions/" + remoteSessionID + "/laps/" + remoteLapID + "/upload"
		name := fmt.Sprintf("%s-%d.png", localLapID, i)
		if e.gw.Upload(ctx, path, "file", name, []byte(img)) == nil {
			e.logger.Warnf("syncer: failed to upload image %d for lap %s", i, localLapID)
		}
		// Sequenced with a small delay to avoid overwhelming the server.
		sleep(ctx, e.interUploadDelay)
	}
}

// ProcessSyncQueue drains the retry queue, one session at a time. It is a
// no-op when unauthenticated, the queue is empty, or the backend fails its
// health probe.
func (e *Engine) ProcessSyncQueue(ctx context.Context) {
	if !e.gw.Credentials().IsAuthenticated() {
		return
	}

	e.mu.Lock()
	queue := e.queue()
	e.mu.Unlock()
	if len(queue) == 0 {
		return
	}

	if !e.gw.CheckHealth(ctx) {
		return
	}

	e.logger.Infof("syncer: processing %d queued sessions", len(queue))
	for _, session := range queue {
		e.SyncSession(ctx, session)
		sleep(ctx, e.interSessionDelay)
	}
}

// QueuedSessions returns a copy of the retry queue.
func (e *Engine) QueuedSessions() []internal.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue()
}

// SyncedSessionIDs returns a copy of the synced-id set.
func (e *Engine) SyncedSessionIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncedIDs()
}

func extractID(raw json.RawMessage) string {
	var resp struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	switch v := resp.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
