package service

import (
	"encoding/json"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/kvstore"
)

const settingsKey = "jlc_settings"

// Settings are the user preferences that shape totals and display.
type Settings struct {
	HourlyRate                float64 `json:"hourly_rate" validate:"gte=0"`
	BreaksImpactAmount        bool    `json:"breaks_impact_amount"`
	BreaksImpactTime          bool    `json:"breaks_impact_time"`
	ShowAmount                bool    `json:"show_amount"`
	ShowStatsBeforeLaps       bool    `json:"show_stats_before_laps"`
	MinimalistMode            bool    `json:"minimalist_mode"`
	NotificationEnabled       bool    `json:"notification_enabled"`
	NotificationIntervalHours int     `json:"notification_interval_hours" validate:"gte=0,lte=24"`
}

func DefaultSettings() Settings {
	return Settings{
		HourlyRate:                450,
		ShowAmount:                true,
		NotificationEnabled:       true,
		NotificationIntervalHours: 2,
	}
}

func ValidateSettings(s *Settings) error {
	return validate.Struct(s)
}

// SettingsManager persists settings in the key-value store.
type SettingsManager struct {
	kv     kvstore.Store
	logger internal.Logger
}

func NewSettingsManager(kv kvstore.Store, logger internal.Logger) *SettingsManager {
	return &SettingsManager{kv: kv, logger: logger}
}

func (m *SettingsManager) Get() Settings {
	raw, ok := m.kv.Get(settingsKey)
	if !ok {
		return DefaultSettings()
	}
	settings := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		m.logger.Warnf("settings: unreadable stored settings, using defaults: %v", err)
		return DefaultSettings()
	}
	return settings
}

func (m *SettingsManager) Put(settings Settings) {
	data, err := json.Marshal(settings)
	if err != nil {
		m.logger.Warnf("settings: failed to encode settings: %v", err)
		return
	}
	m.kv.Set(settingsKey, string(data))
}
