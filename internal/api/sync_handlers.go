package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourname/clockwork/internal/gateway"
	"github.com/yourname/clockwork/internal/service"
	"github.com/yourname/clockwork/internal/syncer"
)

var errUnreachable = errors.New("backend unreachable or request rejected")

// Login and Signup return {success, message} bodies instead of bare HTTP
// errors so the frontend can show the right text for "server down" vs
// "credentials rejected".
func Login(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		handleAuthAttempt(c, app, app.Gateway().Login)
	}
}

func Signup(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		handleAuthAttempt(c, app, app.Gateway().Signup)
	}
}

func handleAuthAttempt(c *gin.Context, app App, attempt func(ctx context.Context, username, password string) gateway.AuthResult) {
	var body service.CredentialsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		HandleError(c, app.Logger(), err, 400, "Invalid JSON")
		return
	}
	if err := service.ValidateCredentialsRequest(&body); err != nil {
		HandleError(c, app.Logger(), err, 400, "Validation failed")
		return
	}

	result := attempt(c.Request.Context(), body.Username, body.Password)
	if result.Success {
		// The background pair outlives this request.
		app.Engine().StartBackground(context.Background())
		pullRemoteSettings(c, app)
	}
	c.JSON(http.StatusOK, result)
}

// pullRemoteSettings adopts the backend's copy of the user settings after
// a successful login or signup, best-effort.
func pullRemoteSettings(c *gin.Context, app App) {
	raw := app.Gateway().FetchSettings(c.Request.Context())
	if raw == nil {
		return
	}
	settings := app.Settings().Get()
	if err := json.Unmarshal(raw, &settings); err != nil {
		app.Logger().Warnf("settings: unreadable remote settings: %v", err)
		return
	}
	if err := service.ValidateSettings(&settings); err != nil {
		app.Logger().Warnf("settings: remote settings failed validation: %v", err)
		return
	}
	app.Settings().Put(settings)
}

func Logout(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		app.Engine().StopBackground()
		app.Gateway().Logout(c.Request.Context())
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func AuthStatus(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := app.Gateway().Credentials()
		meta := map[string]any{
			"logged_in":      creds.IsAuthenticated(),
			"username":       creds.Username(),
			"backend_online": app.BackendOnline(),
			"queued":         len(app.Engine().QueuedSessions()),
		}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}

// TriggerSync runs a queue drain in the foreground so the caller gets a
// meaningful before/after queue size.
func TriggerSync(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		before := len(app.Engine().QueuedSessions())
		app.Engine().ProcessSyncQueue(c.Request.Context())
		after := len(app.Engine().QueuedSessions())
		meta := map[string]any{"queued_before": before, "queued_after": after}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}

// SyncLive pushes the current ledger state to the live backend session.
func SyncLive(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok := app.Engine().SyncCurrentSession(c.Request.Context(), app.Ledger().Laps())
		meta := map[string]any{"synced": ok}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}

func ResyncSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := app.Archive().GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, 404, "Session not found")
			return
		}
		result := app.Engine().SyncSession(c.Request.Context(), *session)
		meta := map[string]any{
			"result":           result,
			"already_synced":   result == syncer.AlreadySynced,
			"queued_for_retry": result == "",
		}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}

// ListRemoteSessions pages through the sessions stored on the backend,
// proxying the backend's own response body.
func ListRemoteSessions(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 {
			HandleError(c, app.Logger(), errors.New("limit must be a positive integer"), 400, "Invalid limit")
			return
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			HandleError(c, app.Logger(), errors.New("offset must be a non-negative integer"), 400, "Invalid offset")
			return
		}

		raw := app.Gateway().FetchSessions(c.Request.Context(), limit, offset)
		if raw == nil {
			HandleError(c, app.Logger(), errUnreachable, 502, "Backend unavailable")
			return
		}
		HandleSuccess(c, app.Logger(), raw, nil)
	}
}

// DeleteRemoteSession removes a session from the backend by its backend
// id. The local archive is untouched.
func DeleteRemoteSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if app.Gateway().DeleteRemoteSession(c.Request.Context(), c.Param("id")) == nil {
			HandleError(c, app.Logger(), errUnreachable, 502, "Backend unavailable")
			return
		}
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func GetSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), app.Settings().Get(), nil)
	}
}

func PutSettings(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.Settings
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateSettings(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}
		app.Settings().Put(body)
		// Mirror to the backend, best-effort.
		app.Gateway().UpdateSettings(c.Request.Context(), body)
		HandleSuccess(c, app.Logger(), body, nil)
	}
}
