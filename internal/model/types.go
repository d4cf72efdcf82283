// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"errors"
	"math"
	"time"
)

// ErrUnavailable marks a collaborator (telemetry, voice, panel) that cannot be reached.
var ErrUnavailable = errors.New("collaborator unavailable")

// DisplayMode is the base verse-selection strategy.
type DisplayMode string

// Display modes.
const (
	ModeTime       DisplayMode = "time"
	ModeDevotional DisplayMode = "devotional"
	ModeDate       DisplayMode = "date"
	ModeRandom     DisplayMode = "random"
)

// DisplayModes lists every base mode in UI order.
var DisplayModes = []DisplayMode{ModeTime, ModeDevotional, ModeDate, ModeRandom}

// Valid reports whether m is a known display mode.
func (m DisplayMode) Valid() bool {
	for _, known := range DisplayModes {
		if m == known {
			return true
		}
	}
	return false
}

// Translation is a supported Bible translation code.
type Translation string

// Supported translations.
const (
	KJV  Translation = "kjv"
	AMP  Translation = "amp"
	NLT  Translation = "nlt"
	ESV  Translation = "esv"
	MSG  Translation = "msg"
	NASB Translation = "nasb"
	CEV  Translation = "cev"
)

// Translations lists the supported translation codes.
var Translations = []Translation{KJV, AMP, NLT, ESV, MSG, NASB, CEV}

var translationNames = map[Translation]string{
	KJV:  "King James Version (KJV)",
	AMP:  "Amplified Bible (AMP)",
	NLT:  "New Living Translation (NLT)",
	ESV:  "English Standard Version (ESV)",
	MSG:  "The Message (MSG)",
	NASB: "New American Standard Bible 1995 (NASB)",
	CEV:  "Contemporary English Version (CEV)",
}

// Valid reports whether t is a supported translation code.
func (t Translation) Valid() bool {
	_, ok := translationNames[t]
	return ok
}

// DisplayName returns the long name shown in the dashboard.
func (t Translation) DisplayName() string {
	if name, ok := translationNames[t]; ok {
		return name
	}
	return string(t)
}

// TimeFormat selects 12- or 24-hour chapter mapping.
type TimeFormat string

// Time formats.
const (
	TimeFormat12 TimeFormat = "12"
	TimeFormat24 TimeFormat = "24"
)

// Valid reports whether f is a known time format.
func (f TimeFormat) Valid() bool {
	return f == TimeFormat12 || f == TimeFormat24
}

// DevotionalIntervals are the allowed devotional rotation intervals in minutes.
var DevotionalIntervals = []int{5, 10, 15, 30, 60}

// ValidDevotionalInterval reports whether minutes is an allowed rotation interval.
func ValidDevotionalInterval(minutes int) bool {
	for _, v := range DevotionalIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// Settings is the persisted display configuration.
type Settings struct {
	DisplayMode          DisplayMode `json:"display_mode"`
	ParallelMode         bool        `json:"parallel_mode"`
	Translation          Translation `json:"translation"`
	SecondaryTranslation Translation `json:"secondary_translation"`
	TimeFormat           TimeFormat  `json:"time_format"`
	DevotionalInterval   int         `json:"devotional_interval"`
	WakeWordEnabled      bool        `json:"wake_word_enabled"`
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		DisplayMode:          ModeTime,
		ParallelMode:         false,
		Translation:          KJV,
		SecondaryTranslation: AMP,
		TimeFormat:           TimeFormat12,
		DevotionalInterval:   15,
		WakeWordEnabled:      false,
	}
}

// Verse is a selected passage ready for rendering.
type Verse struct {
	Reference   string `json:"reference"`
	Text        string `json:"text"`
	Book        string `json:"book"`
	Chapter     int    `json:"chapter"`
	Verse       int    `json:"verse"`
	Translation string `json:"translation"`
	TimeFormat  string `json:"time_format,omitempty"`

	IsSummary    bool `json:"is_summary,omitempty"`
	IsDevotional bool `json:"is_devotional,omitempty"`
	IsDateEvent  bool `json:"is_date_event,omitempty"`

	EventName        string `json:"event_name,omitempty"`
	EventDescription string `json:"event_description,omitempty"`
	DateMatch        string `json:"date_match,omitempty"`

	DevotionalTitle string     `json:"devotional_title,omitempty"`
	Author          string     `json:"author,omitempty"`
	Source          string     `json:"source,omitempty"`
	NextChangeAt    *time.Time `json:"next_change_at,omitempty"`

	ParallelMode         bool   `json:"parallel_mode,omitempty"`
	SecondaryText        string `json:"secondary_text,omitempty"`
	PrimaryTranslation   string `json:"primary_translation,omitempty"`
	SecondaryTranslation string `json:"secondary_translation,omitempty"`
}

// DisplayEvent is reported by the render loop each time a verse is shown.
type DisplayEvent struct {
	ShownAt     time.Time
	Mode        DisplayMode
	Translation Translation
	Book        string
	Reference   string
}

// Activity is one entry of the recent activity log.
type Activity struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
}

// Unavailable is the sentinel emitted for metrics that could not be read.
const Unavailable = "unavailable"

// Metric is an optional reading. It marshals to a number, or to the
// Unavailable sentinel when no reading exists.
type Metric struct {
	Value     float64
	Available bool
}

// Reading returns an available metric rounded to one decimal.
func Reading(v float64) Metric {
	return Metric{Value: math.Round(v*10) / 10, Available: true}
}

// MarshalJSON implements json.Marshaler.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return json.Marshal(Unavailable)
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*m = Metric{}
		return nil
	}
	*m = Metric{Value: v, Available: true}
	return nil
}

// Telemetry is one system reading; each field is independently optional.
type Telemetry struct {
	CPUUsage       Metric `json:"cpu_usage"`
	MemoryUsage    Metric `json:"memory_usage"`
	DiskUsage      Metric `json:"disk_usage"`
	CPUTemperature Metric `json:"cpu_temperature"`
}

// VoiceState is the voice collaborator status.
type VoiceState struct {
	Available       bool `json:"available"`
	IsListening     bool `json:"is_listening"`
	WakeWordEnabled bool `json:"wake_word_enabled"`
}

// DayCount is the number of verses displayed on a calendar day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// BookCount is how often a book has been displayed.
type BookCount struct {
	Book  string `json:"book"`
	Count int    `json:"count"`
}

// StatusView is the aggregated read-only snapshot served to clients.
type StatusView struct {
	Timestamp    time.Time `json:"timestamp"`
	Health       string    `json:"health"`
	HealthIssues []string  `json:"health_issues,omitempty"`

	DisplayMode          DisplayMode `json:"display_mode"`
	ParallelMode         bool        `json:"parallel_mode"`
	Translation          Translation `json:"translation"`
	SecondaryTranslation Translation `json:"secondary_translation"`

	VersesDisplayed  int                 `json:"verses_displayed"`
	VersesToday      int                 `json:"verses_today"`
	UptimeHours      float64             `json:"uptime_hours"`
	StartTime        time.Time           `json:"start_time"`
	ModeUsage        map[DisplayMode]int `json:"mode_usage"`
	TranslationUsage map[Translation]int `json:"translation_usage"`
	BooksAccessed    []string            `json:"books_accessed"`
	RecentActivities []Activity          `json:"recent_activities"`
	DailyActivity    []DayCount          `json:"daily_activity,omitempty"`

	Telemetry Telemetry  `json:"system"`
	Voice     VoiceState `json:"voice"`
}

// StatsConfig defines filters for the history report.
type StatsConfig struct {
	Since    *time.Time
	Days     int
	TopBooks int
}
