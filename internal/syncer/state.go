package syncer

import (
	"encoding/json"

	"github.com/yourname/clockwork/internal"
)

// Sync state lives in the key-value store and is always read, modified and
// written back as a whole snapshot under the engine mutex, so two async
// flows cannot lose each other's updates.
const (
	syncQueueKey   = "jlc_sync_queue"          // sessions queued for sync while the backend was down
	syncedIDsKey   = "jlc_synced_session_ids"  // local session ids already pushed
	liveSessionKey = "jlc_live_session_id"     // backend id of the in-progress session
	syncedLapsKey  = "jlc_synced_lap_ids"      // local lap id -> backend lap id, for the live session
	liveBackupKey  = "jlc_live_session_backup" // periodic snapshot of the open ledger
)

func (e *Engine) queue() []internal.Session {
	var queue []internal.Session
	if raw, ok := e.kv.Get(syncQueueKey); ok {
		if err := json.Unmarshal([]byte(raw), &queue); err != nil {
			return nil
		}
	}
	return queue
}

func (e *Engine) enqueue(session internal.Session) {
	queue := e.queue()
	for _, s := range queue {
		if s.ID == session.ID {
			return
		}
	}
	queue = append(queue, session)
	e.saveJSON(syncQueueKey, queue)
}

func (e *Engine) dequeue(sessionID string) {
	queue := e.queue()
	kept := queue[:0]
	for _, s := range queue {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	e.saveJSON(syncQueueKey, kept)
}

func (e *Engine) syncedIDs() []string {
	var ids []string
	if raw, ok := e.kv.Get(syncedIDsKey); ok {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil
		}
	}
	return ids
}

func (e *Engine) isSynced(sessionID string) bool {
	for _, id := range e.syncedIDs() {
		if id == sessionID {
			return true
		}
	}
	return false
}

func (e *Engine) markSynced(sessionID string) {
	if e.isSynced(sessionID) {
		return
	}
	e.saveJSON(syncedIDsKey, append(e.syncedIDs(), sessionID))
}

// lapMap maps local lap ids to their backend lap ids for the live session.
func (e *Engine) lapMap() map[string]string {
	m := make(map[string]string)
	if raw, ok := e.kv.Get(syncedLapsKey); ok {
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return make(map[string]string)
		}
	}
	return m
}

func (e *Engine) rememberLap(localID, remoteID string) {
	m := e.lapMap()
	m[localID] = remoteID
	e.saveJSON(syncedLapsKey, m)
}

func (e *Engine) liveSessionID() string {
	id, _ := e.kv.Get(liveSessionKey)
	return id
}

func (e *Engine) setLiveSessionID(id string) {
	e.kv.Set(liveSessionKey, id)
}

func (e *Engine) clearLiveState() {
	e.kv.Delete(liveSessionKey)
	e.kv.Delete(syncedLapsKey)
	e.kv.Delete(liveBackupKey)
}

func (e *Engine) saveJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Warnf("syncer: failed to encode %s: %v", key, err)
		return
	}
	e.kv.Set(key, string(data))
}
