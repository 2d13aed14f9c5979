// Package auth manages the locally stored credential set: access and
// refresh tokens, username, and the access-token expiry instant. It is
// pure state, no network calls originate here.
package auth

import (
	"strconv"
	"time"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/kvstore"
)

const (
	accessTokenKey  = "jlc_access_token"
	refreshTokenKey = "jlc_refresh_token"
	usernameKey     = "jlc_username"
	tokenExpiryKey  = "jlc_token_expiry" // epoch ms when the access token expires
)

// Access tokens are server-issued with a 30 minute lifetime; the stored
// expiry keeps a 2 minute safety margin.
const accessTokenLifetime = 28 * time.Minute

// A token counts as expiring soon when less than 5 minutes remain.
const expirySlack = 5 * time.Minute

type CredentialManager struct {
	kv     kvstore.Store
	logger internal.Logger
	now    func() time.Time
}

func NewCredentialManager(kv kvstore.Store, logger internal.Logger) *CredentialManager {
	return &CredentialManager{kv: kv, logger: logger, now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (c *CredentialManager) SetClock(now func() time.Time) {
	c.now = now
}

func (c *CredentialManager) AccessToken() string {
	v, _ := c.kv.Get(accessTokenKey)
	return v
}

func (c *CredentialManager) RefreshToken() string {
	v, _ := c.kv.Get(refreshTokenKey)
	return v
}

func (c *CredentialManager) Username() string {
	v, _ := c.kv.Get(usernameKey)
	return v
}

// SetTokens stores a fresh token pair and stamps the access-token expiry.
func (c *CredentialManager) SetTokens(access, refresh, username string) {
	c.kv.Set(accessTokenKey, access)
	c.kv.Set(refreshTokenKey, refresh)
	if username != "" {
		c.kv.Set(usernameKey, username)
	}
	c.stampExpiry()
}

// SetAccessToken updates only the access token and its expiry, used after
// a refresh.
func (c *CredentialManager) SetAccessToken(access string) {
	c.kv.Set(accessTokenKey, access)
	c.stampExpiry()
}

func (c *CredentialManager) stampExpiry() {
	expiry := c.now().Add(accessTokenLifetime).UnixMilli()
	c.kv.Set(tokenExpiryKey, strconv.FormatInt(expiry, 10))
}

func (c *CredentialManager) Clear() {
	c.kv.Delete(accessTokenKey)
	c.kv.Delete(refreshTokenKey)
	c.kv.Delete(usernameKey)
	c.kv.Delete(tokenExpiryKey)
}

// IsAuthenticated reports whether both tokens are present.
func (c *CredentialManager) IsAuthenticated() bool {
	return c.AccessToken() != "" && c.RefreshToken() != ""
}

// IsExpiringSoon is true when no expiry is recorded or fewer than five
// minutes remain on the access token.
func (c *CredentialManager) IsExpiringSoon() bool {
	raw, ok := c.kv.Get(tokenExpiryKey)
	if !ok {
		return true
	}
	expiry, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.logger.Warnf("auth: unreadable token expiry %q, treating as expiring", raw)
		return true
	}
	return c.now().UnixMilli() > expiry-expirySlack.Milliseconds()
}
