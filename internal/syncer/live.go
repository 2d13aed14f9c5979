package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/yourname/clockwork/internal"
)

// The live session is the remote mirror of the ledger while the timer
// runs. Laps are pushed incrementally as they close, guarded by the
// local lap-id map so a lap is created remotely at most once.

// EnsureLiveSession lazily creates the remote in-progress session and
// remembers its backend id. Returns "" when the backend is unreachable.
func (e *Engine) EnsureLiveSession(ctx context.Context) string {
	e.mu.Lock()
	id := e.liveSessionID()
	e.mu.Unlock()
	if id != "" {
		return id
	}

	raw := e.gw.AuthenticatedCall(ctx, http.MethodPost, "/sessions/", map[string]any{
		"sessionName": "In Progress " + time.Now().Format("2006-01-02 15:04"),
		"description": "live session",
		"startedAt":   time.Now(),
	})
	if raw == nil {
		return ""
	}
	id = extractID(raw)
	if id == "" {
		return ""
	}

	e.mu.Lock()
	e.setLiveSessionID(id)
	e.mu.Unlock()
	e.logger.Infof("syncer: created live backend session %s", id)
	return id
}

// AddLapToLiveSession pushes one closed lap to the live session. Pushing
// the same lap id twice is a successful no-op.
func (e *Engine) AddLapToLiveSession(ctx context.Context, lap internal.WorkLap) bool {
	if !e.gw.Credentials().IsAuthenticated() {
		return false
	}

	sessionID := e.EnsureLiveSession(ctx)
	if sessionID == "" {
		return false
	}

	e.mu.Lock()
	_, pushed := e.lapMap()[lap.ID]
	e.mu.Unlock()
	if pushed {
		return true
	}

	raw := e.gw.AuthenticatedCall(ctx, http.MethodPost, "/sessions/"+sessionID+"/laps", newLapPayload(lap))
	if raw == nil {
		return false
	}
	remoteLapID := extractID(raw)

	e.mu.Lock()
	e.rememberLap(lap.ID, remoteLapID)
	count := len(e.lapMap())
	e.mu.Unlock()

	if remoteLapID != "" {
		e.uploadLapImages(ctx, sessionID, remoteLapID, lap.ID)
	}

	e.gw.AuthenticatedCall(ctx, http.MethodPut, "/sessions/"+sessionID, map[string]any{
		"description": fmt.Sprintf("live session, %d laps synced", count),
	})
	return true
}

// SyncCurrentSession pushes every not-yet-synced lap of the running ledger
// and refreshes the session aggregates, leaving the session open.
func (e *Engine) SyncCurrentSession(ctx context.Context, laps []internal.WorkLap) bool {
	if !e.gw.Credentials().IsAuthenticated() {
		return false
	}
	sessionID := e.EnsureLiveSession(ctx)
	if sessionID == "" {
		return false
	}

	e.mu.Lock()
	pushed := e.lapMap()
	e.mu.Unlock()

	// Oldest-first, matching the order laps happened.
	for i := len(laps) - 1; i >= 0; i-- {
		lap := laps[i]
		if lap.Running() {
			continue
		}
		if _, ok := pushed[lap.ID]; ok {
			continue
		}
		raw := e.gw.AuthenticatedCall(ctx, http.MethodPost, "/sessions/"+sessionID+"/laps", newLapPayload(lap))
		if raw == nil {
			continue
		}
		remoteLapID := extractID(raw)
		e.mu.Lock()
		e.rememberLap(lap.ID, remoteLapID)
		e.mu.Unlock()
		if remoteLapID != "" {
			e.uploadLapImages(ctx, sessionID, remoteLapID, lap.ID)
		}
	}

	totalSeconds := 0
	for _, lap := range laps {
		totalSeconds += lap.TotalSecondsRaw()
	}
	e.gw.AuthenticatedCall(ctx, http.MethodPut, "/sessions/"+sessionID, map[string]any{
		"totalDuration": totalSeconds,
		"isCompleted":   false,
	})
	return true
}

// CompleteLiveSession does a final full push, marks the remote session
// completed, backfills images for laps that never got a backend lap id
// (matched positionally by chronological index), and clears all
// live-session tracking state.
func (e *Engine) CompleteLiveSession(ctx context.Context, laps []internal.WorkLap) bool {
	if !e.gw.Credentials().IsAuthenticated() {
		return false
	}

	e.mu.Lock()
	sessionID := e.liveSessionID()
	e.mu.Unlock()
	if sessionID == "" && len(laps) == 0 {
		return false
	}

	// Catch stragglers first.
	if !e.SyncCurrentSession(ctx, laps) {
		return false
	}

	e.mu.Lock()
	sessionID = e.liveSessionID()
	e.mu.Unlock()

	totalSeconds := 0
	for _, lap := range laps {
		totalSeconds += lap.TotalSecondsRaw()
	}
	e.gw.AuthenticatedCall(ctx, http.MethodPut, "/sessions/"+sessionID, map[string]any{
		"endedAt":       time.Now(),
		"totalDuration": totalSeconds,
		"isCompleted":   true,
	})

	e.backfillImages(ctx, sessionID, laps)

	e.mu.Lock()
	e.clearLiveState()
	e.mu.Unlock()
	e.logger.Infof("syncer: completed live backend session %s", sessionID)
	return true
}

// ClearLiveState drops the live-session tracking keys and the crash
// backup. Called when the local session is archived, whether or not any
// of it reached the backend.
func (e *Engine) ClearLiveState() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLiveState()
}

func (e *Engine) backfillImages(ctx context.Context, sessionID string, laps []internal.WorkLap) {
	e.mu.Lock()
	pushed := e.lapMap()
	e.mu.Unlock()

	var orphaned []internal.WorkLap
	for _, lap := range laps {
		if pushed[lap.ID] == "" && len(e.images.Get(lap.ID)) > 0 {
			orphaned = append(orphaned, lap)
		}
	}
	if len(orphaned) == 0 {
		return
	}

	raw := e.gw.AuthenticatedCall(ctx, http.MethodGet, "/sessions/"+sessionID+"/laps", nil)
	if raw == nil {
		return
	}
	var remote []struct {
		ID        any       `json:"id"`
		StartedAt time.Time `json:"startedAt"`
	}
	if err := json.Unmarshal(raw, &remote); err != nil {
		return
	}
	sort.Slice(remote, func(i, j int) bool { return remote[i].StartedAt.Before(remote[j].StartedAt) })

	// Local laps are newest-first; index from the back to walk them
	// chronologically alongside the remote list.
	for i, lap := range chronological(laps) {
		if i >= len(remote) {
			break
		}
		if pushed[lap.ID] != "" {
			continue
		}
		remoteLapID := extractID(mustJSON(map[string]any{"id": remote[i].ID}))
		if remoteLapID == "" {
			continue
		}
		e.uploadLapImages(ctx, sessionID, remoteLapID, lap.ID)
	}
}

func chronological(laps []internal.WorkLap) []internal.WorkLap {
	out := make([]internal.WorkLap, len(laps))
	for i, lap := range laps {
		out[len(laps)-1-i] = lap
	}
	return out
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
