// Package gateway is the authenticated HTTP boundary to the remote
// backend. Every call degrades to "unreachable" instead of propagating
// network or HTTP errors: authenticated calls return nil on any failure,
// public calls distinguish a reachable-but-rejecting server from an
// unreachable one.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/auth"
)

const healthTimeout = 5 * time.Second

// RemoteError is the "server reachable but rejected" signal on the public
// path. The authenticated path collapses rejections to nil instead, since
// background sync has no use for the distinction.
type RemoteError struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type Gateway struct {
	baseURL      string
	creds        *auth.CredentialManager
	client       *http.Client
	healthClient *http.Client
	logger       internal.Logger
}

func New(baseURL string, creds *auth.CredentialManager, logger internal.Logger) *Gateway {
	return &Gateway{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		creds:        creds,
		client:       &http.Client{},
		healthClient: &http.Client{Timeout: healthTimeout},
		logger:       logger,
	}
}

func (g *Gateway) Credentials() *auth.CredentialManager {
	return g.creds
}

// AuthenticatedCall performs one bearer-authenticated request. It
// refreshes the token ahead of expiry (best effort), retries exactly once
// after a 401, and returns the parsed JSON body, or nil on any failure.
func (g *Gateway) AuthenticatedCall(ctx context.Context, method, path string, body any) json.RawMessage {
	if !g.creds.IsAuthenticated() {
		return nil
	}

	if g.creds.IsExpiringSoon() {
		if !g.RefreshAccessToken(ctx) {
			// Tokens might be expired entirely; proceed with the current
			// one and let the 401 path sort it out.
			g.logger.Warnf("gateway: token refresh failed, proceeding with current token")
		}
	}

	payload, err := encodeBody(body)
	if err != nil {
		g.logger.Warnf("gateway: failed to encode body for %s: %v", path, err)
		return nil
	}

	resp, err := g.doJSON(ctx, method, path, payload, g.creds.AccessToken())
	if err != nil {
		g.logger.Warnf("gateway: network error for %s: %v", path, err)
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if !g.RefreshAccessToken(ctx) {
			g.logger.Warnf("gateway: authentication failed, tokens may be expired")
			return nil
		}
		resp, err = g.doJSON(ctx, method, path, payload, g.creds.AccessToken())
		if err != nil {
			g.logger.Warnf("gateway: retry network error for %s: %v", path, err)
			return nil
		}
	}

	return g.readBody(resp, path)
}

// PublicCall performs an unauthenticated request. Network failure returns
// (nil, nil); a non-2xx response returns a RemoteError so callers can show
// the right message.
func (g *Gateway) PublicCall(ctx context.Context, method, path string, body any) (json.RawMessage, *RemoteError) {
	payload, err := encodeBody(body)
	if err != nil {
		g.logger.Warnf("gateway: failed to encode body for %s: %v", path, err)
		return nil, nil
	}

	resp, err := g.doJSON(ctx, method, path, payload, "")
	if err != nil {
		g.logger.Warnf("gateway: network error for %s: %v", path, err)
		return nil, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := "Request failed"
		var parsed struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Detail != "" {
			detail = parsed.Detail
		}
		return nil, &RemoteError{Status: resp.StatusCode, Detail: detail}
	}
	return raw, nil
}

// RefreshAccessToken posts the refresh token and, on success, updates only
// the access token and its expiry. Never returns an error.
func (g *Gateway) RefreshAccessToken(ctx context.Context) bool {
	refresh := g.creds.RefreshToken()
	if refresh == "" {
		return false
	}

	payload, _ := encodeBody(map[string]string{"refreshToken": refresh})
	resp, err := g.doJSON(ctx, http.MethodPost, "/auth/refresh", payload, "")
	if err != nil {
		g.logger.Warnf("gateway: token refresh network error: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warnf("gateway: token refresh failed: %d", resp.StatusCode)
		return false
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil || data.AccessToken == "" {
		return false
	}
	g.creds.SetAccessToken(data.AccessToken)
	return true
}

// CheckHealth reports whether the backend answers its health probe within
// five seconds. All errors collapse to false.
func (g *Gateway) CheckHealth(ctx context.Context) bool {
	url := strings.TrimSuffix(g.baseURL, "/api") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := g.healthClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Upload sends multipart form data with the same expiry-refresh and
// 401-retry behavior as AuthenticatedCall. The content type is left to the
// multipart writer so the transport gets the boundary right.
func (g *Gateway) Upload(ctx context.Context, path, field, filename string, data []byte) json.RawMessage {
	if !g.creds.IsAuthenticated() {
		return nil
	}
	if g.creds.IsExpiringSoon() {
		if !g.RefreshAccessToken(ctx) {
			g.logger.Warnf("gateway: token refresh failed, proceeding with current token")
		}
	}

	resp, err := g.doMultipart(ctx, path, field, filename, data, g.creds.AccessToken())
	if err != nil {
		g.logger.Warnf("gateway: upload network error for %s: %v", path, err)
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if !g.RefreshAccessToken(ctx) {
			return nil
		}
		resp, err = g.doMultipart(ctx, path, field, filename, data, g.creds.AccessToken())
		if err != nil {
			g.logger.Warnf("gateway: upload retry network error for %s: %v", path, err)
			return nil
		}
	}

	return g.readBody(resp, path)
}

func (g *Gateway) doJSON(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return g.client.Do(req)
}

func (g *Gateway) doMultipart(ctx context.Context, path, field, filename string, data []byte, token string) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return g.client.Do(req)
}

func (g *Gateway) readBody(resp *http.Response, path string) json.RawMessage {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Warnf("gateway: failed to read response for %s: %v", path, err)
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger.Warnf("gateway: request failed: %d %s %s", resp.StatusCode, path, strings.TrimSpace(string(raw)))
		return nil
	}
	if len(raw) == 0 {
		// Some endpoints answer 2xx with an empty body; report success.
		return json.RawMessage(`{}`)
	}
	return raw
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return json.Marshal(body)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
