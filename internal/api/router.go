package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the local control surface a frontend drives the
// tracker through.
func NewRouter(app App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		laps := api.Group("/laps")
		{
			laps.GET("", ListLaps(app))
			laps.POST("", StartLap(app))
			laps.DELETE("", ResetLaps(app))
			laps.GET("/totals", LapTotals(app))
			laps.POST("/merge", MergeLaps(app))
			laps.POST("/:id/end", EndLap(app))
			laps.POST("/:id/split", SplitLap(app))
			laps.PATCH("/:id", EditLap(app))
			laps.POST("/:id/images", AddLapImage(app))
			laps.GET("/:id/images", ListLapImages(app))
			laps.DELETE("/:id/images/:index", RemoveLapImage(app))
		}

		api.POST("/session/stop", StopSession(app))

		sessions := api.Group("/sessions")
		{
			sessions.GET("", ListSessions(app))
			sessions.DELETE("", ClearSessions(app))
			sessions.GET("/stats", SessionStats(app))
			sessions.GET("/remote", ListRemoteSessions(app))
			sessions.DELETE("/remote/:id", DeleteRemoteSession(app))
			sessions.GET("/:id", GetSession(app))
			sessions.PATCH("/:id", RenameSession(app))
			sessions.DELETE("/:id", DeleteSession(app))
			sessions.POST("/:id/sync", ResyncSession(app))
		}

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", Login(app))
			authGroup.POST("/signup", Signup(app))
			authGroup.POST("/logout", Logout(app))
			authGroup.GET("/status", AuthStatus(app))
		}

		api.POST("/sync", TriggerSync(app))
		api.POST("/sync/live", SyncLive(app))

		api.GET("/settings", GetSettings(app))
		api.PUT("/settings", PutSettings(app))
	}

	return r
}
