package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/kvstore"
)

func newTestManager() (*CredentialManager, *kvstore.MemStore) {
	kv := kvstore.NewMemStore()
	return NewCredentialManager(kv, internal.NopLogger{}), kv
}

func TestSetTokensStoresAll(t *testing.T) {
	cm, kv := newTestManager()
	cm.SetTokens("acc", "ref", "alice")

	assert.Equal(t, "acc", cm.AccessToken())
	assert.Equal(t, "ref", cm.RefreshToken())
	assert.Equal(t, "alice", cm.Username())
	_, ok := kv.Get("jlc_token_expiry")
	assert.True(t, ok)
}

func TestSetAccessTokenKeepsUsername(t *testing.T) {
	cm, _ := newTestManager()
	cm.SetTokens("acc", "ref", "alice")
	cm.SetAccessToken("acc2")

	assert.Equal(t, "acc2", cm.AccessToken())
	assert.Equal(t, "ref", cm.RefreshToken())
	assert.Equal(t, "alice", cm.Username())
}

func TestIsAuthenticatedNeedsBothTokens(t *testing.T) {
	cm, kv := newTestManager()
	assert.False(t, cm.IsAuthenticated())

	kv.Set("jlc_access_token", "acc")
	assert.False(t, cm.IsAuthenticated())

	kv.Set("jlc_refresh_token", "ref")
	assert.True(t, cm.IsAuthenticated())
}

func TestClearRemovesEverything(t *testing.T) {
	cm, kv := newTestManager()
	cm.SetTokens("acc", "ref", "alice")
	cm.Clear()

	assert.False(t, cm.IsAuthenticated())
	assert.Equal(t, "", cm.Username())
	_, ok := kv.Get("jlc_token_expiry")
	assert.False(t, ok)
}

func TestIsExpiringSoon(t *testing.T) {
	cm, _ := newTestManager()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cm.SetClock(func() time.Time { return base })
	cm.SetTokens("acc", "ref", "alice")

	// Freshly stamped: 28 minutes remain.
	assert.False(t, cm.IsExpiringSoon())

	// 22 minutes later: 6 minutes remain, still fine.
	cm.SetClock(func() time.Time { return base.Add(22 * time.Minute) })
	assert.False(t, cm.IsExpiringSoon())

	// 24 minutes later: under the 5 minute slack.
	cm.SetClock(func() time.Time { return base.Add(24 * time.Minute) })
	assert.True(t, cm.IsExpiringSoon())
}

func TestIsExpiringSoonWithoutStamp(t *testing.T) {
	cm, kv := newTestManager()
	assert.True(t, cm.IsExpiringSoon())

	kv.Set("jlc_token_expiry", "garbage")
	assert.True(t, cm.IsExpiringSoon())
}
