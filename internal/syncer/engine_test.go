package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/auth"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/images"
	"github.com/yourname/clockwork/internal/kvstore"
)

// fakeBackend is a minimal in-memory stand-in for the remote API. It
// counts requests per method+path pattern and can be told to fail
// session creation.
type fakeBackend struct {
	mu             sync.Mutex
	nextID         int
	requests       int
	sessionCreates int
	lapCreates     int
	finalizes      int
	uploads        int
	failCreates    bool
	lastFinalize   map[string]any
}

func (f *fakeBackend) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/sessions/":
			f.sessionCreates++
			if f.failCreates {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			f.nextID++
			json.NewEncoder(w).Encode(map[string]any{"id": fmt.Sprintf("remote-%d", f.nextID)})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/laps"):
			f.lapCreates++
			f.nextID++
			json.NewEncoder(w).Encode(map[string]any{"id": f.nextID})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/upload"):
			f.uploads++
			json.NewEncoder(w).Encode(map[string]any{"id": "img"})
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/sessions/"):
			f.finalizes++
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			f.lastFinalize = body
			json.NewEncoder(w).Encode(map[string]any{})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/laps"):
			json.NewEncoder(w).Encode([]map[string]any{})
		default:
			json.NewEncoder(w).Encode(map[string]any{})
		}
	})
	return mux
}

func newTestEngine(t *testing.T, backend *fakeBackend) (*Engine, kvstore.Store) {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	kv := kvstore.NewMemStore()
	creds := auth.NewCredentialManager(kv, internal.NopLogger{})
	creds.SetTokens("acc", "ref", "alice")
	gw := gateway.New(srv.URL, creds, internal.NopLogger{})
	imgs := images.NewStore(kv, internal.NopLogger{})

	e := NewEngine(gw, kv, imgs, internal.NopLogger{})
	e.interSessionDelay = 0
	e.interUploadDelay = 0
	return e, kv
}

func closedLap(seconds int, note string) internal.WorkLap {
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	lap := internal.WorkLap{
		ID:         "lap-" + note,
		StartTime:  start,
		EndTime:    start.Add(time.Duration(seconds) * time.Second),
		WorkDone:   note,
		HourlyRate: 100,
	}
	lap.SetDuration(seconds)
	return lap
}

func testSession(laps ...internal.WorkLap) internal.Session {
	return internal.NewSession(laps, "morning block", "")
}

func TestSyncSessionPushesEverything(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)
	session := testSession(closedLap(120, "b"), closedLap(60, "a"))

	remoteID := e.SyncSession(context.Background(), session)
	assert.Equal(t, "remote-1", remoteID)
	assert.Equal(t, 1, backend.sessionCreates)
	assert.Equal(t, 2, backend.lapCreates)
	assert.Equal(t, 1, backend.finalizes)
	assert.Equal(t, true, backend.lastFinalize["isCompleted"])
	assert.Contains(t, e.SyncedSessionIDs(), session.ID)
	assert.Empty(t, e.QueuedSessions())
}

func TestSyncSessionIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)
	session := testSession(closedLap(60, "a"))

	require.NotEmpty(t, e.SyncSession(context.Background(), session))
	before := backend.requestCount()

	// The second push must not touch the network at all.
	assert.Equal(t, AlreadySynced, e.SyncSession(context.Background(), session))
	assert.Equal(t, before, backend.requestCount())
}

func TestSyncSessionUnauthenticated(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)
	e.gw.Credentials().Clear()

	assert.Equal(t, "", e.SyncSession(context.Background(), testSession(closedLap(60, "a"))))
	assert.Equal(t, 0, backend.sessionCreates)
}

func TestSyncSessionQueuesOnCreateFailure(t *testing.T) {
	backend := &fakeBackend{failCreates: true}
	e, _ := newTestEngine(t, backend)
	session := testSession(closedLap(60, "a"))

	assert.Equal(t, "", e.SyncSession(context.Background(), session))
	assert.Equal(t, 0, backend.lapCreates)

	queued := e.QueuedSessions()
	require.Len(t, queued, 1)
	assert.Equal(t, session.ID, queued[0].ID)

	// Retrying while still failing must not duplicate the queue entry.
	e.SyncSession(context.Background(), session)
	assert.Len(t, e.QueuedSessions(), 1)
}

func TestProcessSyncQueueDrainsWhenBackendReturns(t *testing.T) {
	backend := &fakeBackend{failCreates: true}
	e, _ := newTestEngine(t, backend)
	session := testSession(closedLap(60, "a"))

	e.SyncSession(context.Background(), session)
	require.Len(t, e.QueuedSessions(), 1)

	backend.mu.Lock()
	backend.failCreates = false
	backend.mu.Unlock()

	e.ProcessSyncQueue(context.Background())
	assert.Empty(t, e.QueuedSessions())
	assert.Contains(t, e.SyncedSessionIDs(), session.ID)
}

func TestProcessSyncQueueSkipsWhenUnreachable(t *testing.T) {
	backend := &fakeBackend{failCreates: true}
	e, kv := newTestEngine(t, backend)
	session := testSession(closedLap(60, "a"))
	e.SyncSession(context.Background(), session)
	created := backend.sessionCreates

	// Swap in a dead backend; the health probe fails so nothing is tried.
	creds := auth.NewCredentialManager(kv, internal.NopLogger{})
	e.gw = gateway.New("http://127.0.0.1:1", creds, internal.NopLogger{})
	e.ProcessSyncQueue(context.Background())

	assert.Equal(t, created, backend.sessionCreates)
	assert.Len(t, e.QueuedSessions(), 1)
}

func TestAddLapToLiveSessionIsIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)
	lap := closedLap(60, "a")

	require.True(t, e.AddLapToLiveSession(context.Background(), lap))
	assert.Equal(t, 1, backend.sessionCreates)
	assert.Equal(t, 1, backend.lapCreates)

	require.True(t, e.AddLapToLiveSession(context.Background(), lap))
	assert.Equal(t, 1, backend.sessionCreates)
	assert.Equal(t, 1, backend.lapCreates)
}

func TestAddLapToLiveSessionOfflineIsSafe(t *testing.T) {
	kv := kvstore.NewMemStore()
	creds := auth.NewCredentialManager(kv, internal.NopLogger{})
	creds.SetTokens("acc", "ref", "alice")
	gw := gateway.New("http://127.0.0.1:1", creds, internal.NopLogger{})
	e := NewEngine(gw, kv, images.NewStore(kv, internal.NopLogger{}), internal.NopLogger{})

	assert.False(t, e.AddLapToLiveSession(context.Background(), closedLap(60, "a")))
}

func TestSyncCurrentSessionSkipsRunningAndPushedLaps(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)

	pushed := closedLap(60, "a")
	require.True(t, e.AddLapToLiveSession(context.Background(), pushed))
	require.Equal(t, 1, backend.lapCreates)

	running := internal.NewWorkLap(time.Now(), 100)
	fresh := closedLap(30, "b")
	laps := []internal.WorkLap{running, fresh, pushed}

	require.True(t, e.SyncCurrentSession(context.Background(), laps))
	assert.Equal(t, 2, backend.lapCreates)
	assert.Equal(t, false, backend.lastFinalize["isCompleted"])
}

func TestCompleteLiveSessionClearsState(t *testing.T) {
	backend := &fakeBackend{}
	e, kv := newTestEngine(t, backend)
	lap := closedLap(60, "a")
	require.True(t, e.AddLapToLiveSession(context.Background(), lap))

	require.True(t, e.CompleteLiveSession(context.Background(), []internal.WorkLap{lap}))
	assert.Equal(t, true, backend.lastFinalize["isCompleted"])

	_, hasLive := kv.Get("jlc_live_session_id")
	assert.False(t, hasLive)
	_, hasLaps := kv.Get("jlc_synced_lap_ids")
	assert.False(t, hasLaps)
}

func TestBackupRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	e, _ := newTestEngine(t, backend)

	_, ok := e.RestoreBackup()
	assert.False(t, ok)

	laps := []internal.WorkLap{closedLap(60, "a")}
	e.saveJSON("jlc_live_session_backup", liveBackup{
		Timestamp: time.Now().UnixMilli(),
		Laps:      laps,
	})

	restored, ok := e.RestoreBackup()
	require.True(t, ok)
	require.Len(t, restored, 1)
	assert.Equal(t, "lap-a", restored[0].ID)
}

func TestClearLiveStateDropsBackupAndTracking(t *testing.T) {
	backend := &fakeBackend{}
	e, kv := newTestEngine(t, backend)
	require.True(t, e.AddLapToLiveSession(context.Background(), closedLap(60, "a")))
	e.saveJSON("jlc_live_session_backup", liveBackup{
		Timestamp: time.Now().UnixMilli(),
		Laps:      []internal.WorkLap{closedLap(60, "a")},
	})

	e.ClearLiveState()

	_, ok := e.RestoreBackup()
	assert.False(t, ok)
	_, hasLive := kv.Get("jlc_live_session_id")
	assert.False(t, hasLive)
	_, hasLaps := kv.Get("jlc_synced_lap_ids")
	assert.False(t, hasLaps)
}

func TestExtractID(t *testing.T) {
	assert.Equal(t, "abc", extractID(json.RawMessage(`{"id":"abc"}`)))
	assert.Equal(t, "42", extractID(json.RawMessage(`{"id":42}`)))
	assert.Equal(t, "", extractID(json.RawMessage(`{"id":null}`)))
	assert.Equal(t, "", extractID(json.RawMessage(`not json`)))
}
