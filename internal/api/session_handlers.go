package api

import (
	"github.com/gin-gonic/gin"
	"github.com/yourname/clockwork/internal/service"
)

// StopSession freezes the ledger into the archive and hands the session
// to the reconciliation engine.
func StopSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.StopSessionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid JSON")
				return
			}
		}
		if err := service.ValidateStopSessionRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		session, err := service.StopAndArchive(c.Request.Context(), app.Ledger(), app.Archive(), app.Engine(), &body)
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to archive session")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func ListSessions(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := app.Archive().ListSessions(c.Request.Context())
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch sessions")
			return
		}
		HandleSuccess(c, app.Logger(), sessions, nil)
	}
}

func GetSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := app.Archive().GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			HandleError(c, app.Logger(), err, 404, "Session not found")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func RenameSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.RenameSessionRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateRenameSessionRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}
		if err := app.Archive().RenameSession(c.Request.Context(), c.Param("id"), body.SessionName, body.Description); err != nil {
			HandleError(c, app.Logger(), err, 404, "Session not found")
			return
		}
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func DeleteSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.Archive().DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
			HandleError(c, app.Logger(), err, 404, "Session not found")
			return
		}
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func ClearSessions(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := app.Archive().ClearSessions(c.Request.Context()); err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to clear sessions")
			return
		}
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func SessionStats(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := app.Archive().ListSessions(c.Request.Context())
		if err != nil {
			HandleError(c, app.Logger(), err, 500, "Failed to fetch sessions")
			return
		}
		HandleSuccess(c, app.Logger(), service.CalculateSessionStats(sessions), nil)
	}
}
