package internal

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkLap is one contiguous timed interval of work or break. A zero
// EndTime means the lap is still running.
type WorkLap struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Hours      int       `json:"hours"`
	Minutes    int       `json:"minutes"`
	Seconds    int       `json:"seconds"`
	WorkDone   string    `json:"work_done"`
	IsBreak    bool      `json:"is_break"`
	HourlyRate float64   `json:"hourly_rate"`
}

// NewWorkLap starts a fresh, running lap at the given instant.
func NewWorkLap(start time.Time, rate float64) WorkLap {
	return WorkLap{
		ID:         uuid.NewString(),
		StartTime:  start,
		HourlyRate: rate,
	}
}

func (l WorkLap) Running() bool {
	return l.EndTime.IsZero()
}

// TotalSecondsRaw is the elapsed duration in whole seconds, taken from the
// hour/minute/second counters rather than the wall-clock boundaries.
func (l WorkLap) TotalSecondsRaw() int {
	return l.Hours*3600 + l.Minutes*60 + l.Seconds
}

// TotalMinutes returns the elapsed duration in minutes, rounded to 2
// decimals.
func (l WorkLap) TotalMinutes() float64 {
	return Round2(float64(l.Hours)*60 + float64(l.Minutes) + float64(l.Seconds)/60)
}

// Amount is the earned amount for this lap: rate x hours elapsed, rounded
// to 3 decimals.
func (l WorkLap) Amount() float64 {
	return Round3(l.HourlyRate * float64(l.TotalSecondsRaw()) / 3600)
}

// SetDuration distributes a raw second count over the hour/minute/second
// counters.
func (l *WorkLap) SetDuration(totalSeconds int) {
	l.Hours = totalSeconds / 3600
	l.Minutes = (totalSeconds % 3600) / 60
	l.Seconds = totalSeconds % 60
}

// Session is a frozen ledger snapshot with aggregate totals. Laps are
// stored newest-first, matching the ledger order they were frozen from.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	SessionName  string    `json:"session_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	LapCount     int       `json:"lap_count"`
	TotalSeconds int       `json:"total_seconds"`
	TotalAmount  float64   `json:"total_amount"`
	Laps         []WorkLap `json:"laps"`
}

// NewSession freezes a newest-first lap snapshot into an archive entry.
func NewSession(laps []WorkLap, name, description string) Session {
	totalSeconds := 0
	totalAmount := 0.0
	for _, l := range laps {
		totalSeconds += l.TotalSecondsRaw()
		totalAmount += l.Amount()
	}

	s := Session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		EndTime:      time.Now(),
		SessionName:  name,
		Description:  description,
		LapCount:     len(laps),
		TotalSeconds: totalSeconds,
		TotalAmount:  Round2(totalAmount),
		Laps:         laps,
	}
	if len(laps) > 0 {
		// Oldest lap is last in the newest-first order.
		s.StartTime = laps[len(laps)-1].StartTime
	}
	return s
}

// DisplayName falls back to a date-based name when the session was never
// named.
func (s Session) DisplayName() string {
	if strings.TrimSpace(s.SessionName) != "" {
		return s.SessionName
	}
	return "Session " + s.CreatedAt.Format("2006-01-02")
}

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func (e *AppError) Error() string {
	return e.Message
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
