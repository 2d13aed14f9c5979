package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/archive"
	"github.com/yourname/clockwork/internal/auth"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/images"
	"github.com/yourname/clockwork/internal/kvstore"
	"github.com/yourname/clockwork/internal/ledger"
	"github.com/yourname/clockwork/internal/syncer"
)

// offlineEngine builds a reconciliation engine with no credentials so
// every push is a no-op, which is what StopAndArchive must tolerate.
func offlineEngine() *syncer.Engine {
	kv := kvstore.NewMemStore()
	creds := auth.NewCredentialManager(kv, internal.NopLogger{})
	gw := gateway.New("http://127.0.0.1:1", creds, internal.NopLogger{})
	return syncer.NewEngine(gw, kv, images.NewStore(kv, internal.NopLogger{}), internal.NopLogger{})
}

func TestStopAndArchive(t *testing.T) {
	repo, err := archive.NewFileStorage(filepath.Join(t.TempDir(), "sessions.json"), internal.NopLogger{})
	require.NoError(t, err)
	defer repo.Close()

	lg := ledger.New(internal.NopLogger{})
	lap := lg.AddLap(100)
	lg.UpdateTime(lap.ID, 1, 0, 0)
	lg.EndCurrent(lap.ID, lap.StartTime.Add(time.Hour))

	session, err := StopAndArchive(context.Background(), lg, repo, offlineEngine(), &StopSessionRequest{
		SessionName: "deep work",
	})
	require.NoError(t, err)
	assert.Equal(t, "deep work", session.SessionName)
	assert.Equal(t, 3600, session.TotalSeconds)
	assert.Equal(t, 100.0, session.TotalAmount)

	// The ledger is cleared and the session is in the archive.
	assert.Equal(t, 0, lg.Len())
	stored, err := repo.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
}

func TestStopAndArchiveEmptyLedger(t *testing.T) {
	repo, err := archive.NewFileStorage(filepath.Join(t.TempDir(), "sessions.json"), internal.NopLogger{})
	require.NoError(t, err)
	defer repo.Close()

	lg := ledger.New(internal.NopLogger{})
	session, err := StopAndArchive(context.Background(), lg, repo, offlineEngine(), &StopSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, session.LapCount)
}

func TestStopAndArchiveClearsStaleLiveBackup(t *testing.T) {
	repo, err := archive.NewFileStorage(filepath.Join(t.TempDir(), "sessions.json"), internal.NopLogger{})
	require.NoError(t, err)
	defer repo.Close()

	// Logged in, but the backend is unreachable: the live push fails the
	// whole way down.
	kv := kvstore.NewMemStore()
	creds := auth.NewCredentialManager(kv, internal.NopLogger{})
	creds.SetTokens("acc", "ref", "alice")
	gw := gateway.New("http://127.0.0.1:1/api", creds, internal.NopLogger{})
	engine := syncer.NewEngine(gw, kv, images.NewStore(kv, internal.NopLogger{}), internal.NopLogger{})

	lg := ledger.New(internal.NopLogger{})
	lap := lg.AddLap(100)
	lg.UpdateTime(lap.ID, 0, 30, 0)
	lg.EndCurrent(lap.ID, lap.StartTime.Add(30*time.Minute))

	// Simulate the periodic backup having run while the timer was going.
	backup, err := json.Marshal(map[string]any{
		"timestamp": time.Now().UnixMilli(),
		"laps":      lg.Laps(),
	})
	require.NoError(t, err)
	kv.Set("jlc_live_session_backup", string(backup))

	_, err = StopAndArchive(context.Background(), lg, repo, engine, &StopSessionRequest{})
	require.NoError(t, err)

	// A cleanly stopped session must not come back on the next start.
	laps, ok := engine.RestoreBackup()
	assert.False(t, ok)
	assert.Empty(t, laps)
}

func TestCalculateSessionStats(t *testing.T) {
	assert.Equal(t, SessionStats{}, CalculateSessionStats(nil))

	sessions := []internal.Session{
		{TotalSeconds: 3600, TotalAmount: 100},
		{TotalSeconds: 1800, TotalAmount: 50.5},
	}
	stats := CalculateSessionStats(sessions)
	assert.Equal(t, 2, stats.SessionCount)
	assert.Equal(t, 5400, stats.TotalSeconds)
	assert.Equal(t, 150.5, stats.TotalAmount)
	assert.Equal(t, 2700.0, stats.AverageSessionSec)
}
