package service

import (
	"context"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/archive"
	"github.com/yourname/clockwork/internal/ledger"
	"github.com/yourname/clockwork/internal/syncer"
)

// StopAndArchive freezes the current ledger into an archive entry,
// persists it, clears the ledger, and hands the session to the
// reconciliation engine. A failed push only queues the session for retry,
// it never fails the archive.
func StopAndArchive(ctx context.Context, lg *ledger.Ledger, repo archive.SessionRepository, engine *syncer.Engine, req *StopSessionRequest) (*internal.Session, error) {
	laps := lg.Laps()
	session := internal.NewSession(laps, req.SessionName, req.Description)

	if err := repo.SaveSession(ctx, &session); err != nil {
		return nil, err
	}
	lg.Reset()

	engine.CompleteLiveSession(ctx, laps)
	// The archived session owns these laps now; a leftover live backup
	// would resurrect them into the next ledger on restart.
	engine.ClearLiveState()
	engine.SyncSession(ctx, session)
	return &session, nil
}

// SessionStats aggregates the archive for display.
type SessionStats struct {
	SessionCount      int     `json:"session_count"`
	TotalSeconds      int     `json:"total_seconds"`
	TotalAmount       float64 `json:"total_amount"`
	AverageSessionSec float64 `json:"average_session_seconds"`
}

func CalculateSessionStats(sessions []internal.Session) SessionStats {
	stats := SessionStats{SessionCount: len(sessions)}
	for _, s := range sessions {
		stats.TotalSeconds += s.TotalSeconds
		stats.TotalAmount += s.TotalAmount
	}
	stats.TotalAmount = internal.Round2(stats.TotalAmount)
	if len(sessions) > 0 {
		stats.AverageSessionSec = internal.Round2(float64(stats.TotalSeconds) / float64(len(sessions)))
	}
	return stats
}
