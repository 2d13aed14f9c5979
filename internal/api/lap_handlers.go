package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourname/clockwork/internal/ledger"
	"github.com/yourname/clockwork/internal/service"
)

var errNotFound = errors.New("no lap with that id")

func ListLaps(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), app.Ledger().Laps(), nil)
	}
}

// StartLap opens a new running lap at the front of the ledger. The rate
// comes from settings unless the request overrides it.
func StartLap(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		// An empty body is fine, malformed JSON is not.
		var body service.StartLapRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid JSON")
				return
			}
		}

		rate := app.Settings().Get().HourlyRate
		if body.HourlyRate != "" {
			parsed, err := service.ParseHourlyRate(body.HourlyRate)
			if err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid hourly rate")
				return
			}
			rate = parsed
		}

		lap := app.Ledger().AddLap(rate)
		HandleSuccess(c, app.Logger(), lap, nil)
	}
}

// EndLap closes a lap at the current instant. If the caller never ticked
// the duration counters, they are derived from the wall-clock boundaries.
func EndLap(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		lap, ok := app.Ledger().GetByID(id)
		if !ok {
			HandleError(c, app.Logger(), errNotFound, 404, "Lap not found")
			return
		}

		end := time.Now()
		if lap.TotalSecondsRaw() == 0 && !lap.StartTime.IsZero() {
			total := int(end.Sub(lap.StartTime).Seconds())
			app.Ledger().UpdateTime(id, total/3600, (total%3600)/60, total%60)
		}
		app.Ledger().EndCurrent(id, end)

		ended, _ := app.Ledger().GetByID(id)
		// Mirror the closed lap to the live backend session, best-effort.
		go app.Engine().AddLapToLiveSession(c.Copy(), ended)
		HandleSuccess(c, app.Logger(), ended, nil)
	}
}

func EditLap(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var body service.LapEditRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateLapEditRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		lap, ok := app.Ledger().GetByID(id)
		if !ok {
			HandleError(c, app.Logger(), errNotFound, 404, "Lap not found")
			return
		}

		if body.WorkDone != nil {
			app.Ledger().UpdateWorkDone(id, *body.WorkDone)
		}
		if body.IsBreak != nil {
			app.Ledger().SetBreak(id, *body.IsBreak)
		}
		if body.Hours != nil || body.Minutes != nil || body.Seconds != nil {
			h, m, s := lap.Hours, lap.Minutes, lap.Seconds
			if body.Hours != nil {
				h = *body.Hours
			}
			if body.Minutes != nil {
				m = *body.Minutes
			}
			if body.Seconds != nil {
				s = *body.Seconds
			}
			app.Ledger().UpdateTime(id, h, m, s)
		}

		updated, _ := app.Ledger().GetByID(id)
		HandleSuccess(c, app.Logger(), updated, nil)
	}
}

// SplitLap halves a closed lap. Rejections come back as 409 with the
// reason; whether to toast it is the caller's call.
func SplitLap(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if reason := app.Ledger().Split(id); reason != ledger.RejectNone {
			status := 409
			if reason == ledger.RejectNotFound {
				status = 404
			}
			HandleError(c, app.Logger(), errors.New(reason.Message()), status, "Split rejected")
			return
		}
		HandleSuccess(c, app.Logger(), app.Ledger().Laps(), nil)
	}
}

func MergeLaps(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.MergeRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateMergeRequest(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Validation failed")
			return
		}

		if reason := app.Ledger().Merge(body.LapID1, body.LapID2); reason != ledger.RejectNone {
			status := 409
			if reason == ledger.RejectNotFound {
				status = 404
			}
			HandleError(c, app.Logger(), errors.New(reason.Message()), status, "Merge rejected")
			return
		}
		HandleSuccess(c, app.Logger(), app.Ledger().Laps(), nil)
	}
}

func ResetLaps(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		app.Ledger().Reset()
		HandleSuccess(c, app.Logger(), nil, nil)
	}
}

func LapTotals(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings := app.Settings().Get()
		lg := app.Ledger()
		meta := map[string]any{
			"total_amount":        lg.TotalAmount(!settings.BreaksImpactAmount),
			"total_minutes":       lg.TotalMinutes(!settings.BreaksImpactTime),
			"total_seconds":       lg.TotalSeconds(!settings.BreaksImpactTime),
			"total_break_minutes": lg.TotalBreakMinutes(),
			"lap_count":           lg.Len(),
		}
		HandleSuccess(c, app.Logger(), nil, meta)
	}
}
