package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthResult is the human-facing outcome of a login or signup attempt.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Message      string `json:"message"`
}

// Login exchanges credentials for a token pair and stores it. The result
// message distinguishes an unreachable server from rejected credentials.
func (g *Gateway) Login(ctx context.Context, username, password string) AuthResult {
	return g.obtainTokens(ctx, "/auth/login", username, password,
		"Login successful", "Login failed. Please check your credentials.")
}

// Signup registers a new account and stores the issued token pair.
func (g *Gateway) Signup(ctx context.Context, username, password string) AuthResult {
	return g.obtainTokens(ctx, "/auth/signup", username, password,
		"Account created successfully", "Signup failed. Username may already exist.")
}

func (g *Gateway) obtainTokens(ctx context.Context, path, username, password, okMsg, rejectMsg string) AuthResult {
	body := map[string]string{"username": username, "password": password}
	raw, remoteErr := g.PublicCall(ctx, http.MethodPost, path, body)
	if remoteErr != nil {
		msg := remoteErr.Detail
		if msg == "" || msg == "Request failed" {
			msg = rejectMsg
		}
		return AuthResult{Success: false, Message: msg}
	}
	if raw == nil {
		return AuthResult{Success: false, Message: "Cannot reach the server. Please try again later."}
	}

	var tokens tokenResponse
	if err := json.Unmarshal(raw, &tokens); err != nil || tokens.AccessToken == "" {
		return AuthResult{Success: false, Message: "Unexpected response from the server."}
	}
	g.creds.SetTokens(tokens.AccessToken, tokens.RefreshToken, username)
	if tokens.Message != "" {
		okMsg = tokens.Message
	}
	return AuthResult{Success: true, Message: okMsg}
}

// Logout revokes the refresh token best-effort and clears local
// credentials regardless of the outcome.
func (g *Gateway) Logout(ctx context.Context) {
	if refresh := g.creds.RefreshToken(); refresh != "" {
		g.PublicCall(ctx, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": refresh})
	}
	g.creds.Clear()
}

// FetchSessions lists remote sessions, or nil when unreachable.
func (g *Gateway) FetchSessions(ctx context.Context, limit, offset int) json.RawMessage {
	return g.AuthenticatedCall(ctx, http.MethodGet, fmt.Sprintf("/sessions/?limit=%d&offset=%d", limit, offset), nil)
}

// DeleteRemoteSession deletes a remote session by its backend id.
func (g *Gateway) DeleteRemoteSession(ctx context.Context, sessionID string) json.RawMessage {
	return g.AuthenticatedCall(ctx, http.MethodDelete, "/sessions/"+sessionID, nil)
}

// FetchSettings pulls the remote copy of the user settings.
func (g *Gateway) FetchSettings(ctx context.Context) json.RawMessage {
	return g.AuthenticatedCall(ctx, http.MethodGet, "/settings/", nil)
}

// UpdateSettings pushes settings to the backend.
func (g *Gateway) UpdateSettings(ctx context.Context, settings any) json.RawMessage {
	return g.AuthenticatedCall(ctx, http.MethodPut, "/settings/", settings)
}
