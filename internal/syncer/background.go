package syncer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yourname/clockwork/internal"
)

// StartBackground runs the token-refresh sweep (every 25 minutes) and the
// queue-drain sweep (every 5 minutes) until StopBackground. Both sweeps
// are no-ops while unauthenticated. The queue is also drained once right
// away.
func (e *Engine) StartBackground(ctx context.Context) {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.bgShutdown != nil {
		return
	}
	shutdown := make(chan struct{})
	e.bgShutdown = shutdown

	go func() {
		refresh := time.NewTicker(e.refreshInterval)
		drainTick := time.NewTicker(e.drainInterval)
		defer refresh.Stop()
		defer drainTick.Stop()

		if e.gw.Credentials().IsAuthenticated() {
			e.ProcessSyncQueue(ctx)
		}

		for {
			select {
			case <-refresh.C:
				creds := e.gw.Credentials()
				if creds.IsAuthenticated() && creds.IsExpiringSoon() {
					e.logger.Infof("syncer: refreshing access token")
					e.gw.RefreshAccessToken(ctx)
				}
			case <-drainTick.C:
				if e.gw.Credentials().IsAuthenticated() {
					e.ProcessSyncQueue(ctx)
				}
			case <-shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopBackground cancels both sweeps as a pair. An in-flight sync cycle is
// not aborted, only future cycles are prevented.
func (e *Engine) StopBackground() {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.bgShutdown != nil {
		close(e.bgShutdown)
		e.bgShutdown = nil
	}
}

type liveBackup struct {
	Timestamp int64              `json:"timestamp"`
	Laps      []internal.WorkLap `json:"laps"`
}

// StartBackup snapshots the ledger into a local backup key every three
// minutes while the timer runs. Pure crash-recovery redundancy, no remote
// interaction.
func (e *Engine) StartBackup(getLaps func() []internal.WorkLap) {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.backupStop != nil {
		return
	}
	stop := make(chan struct{})
	e.backupStop = stop

	go func() {
		ticker := time.NewTicker(e.backupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				laps := getLaps()
				if len(laps) == 0 {
					continue
				}
				e.saveJSON(liveBackupKey, liveBackup{
					Timestamp: time.Now().UnixMilli(),
					Laps:      laps,
				})
			case <-stop:
				return
			}
		}
	}()
}

// StopBackup prevents future snapshots; the last written backup stays.
func (e *Engine) StopBackup() {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.backupStop != nil {
		close(e.backupStop)
		e.backupStop = nil
	}
}

// RestoreBackup returns the last ledger snapshot, if one survived a crash.
func (e *Engine) RestoreBackup() ([]internal.WorkLap, bool) {
	raw, ok := e.kv.Get(liveBackupKey)
	if !ok {
		return nil, false
	}
	var backup liveBackup
	if err := json.Unmarshal([]byte(raw), &backup); err != nil {
		return nil, false
	}
	return backup.Laps, len(backup.Laps) > 0
}
