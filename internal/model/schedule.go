package model

import "time"

// ScheduleAction is what a schedule does when it fires.
type ScheduleAction string

const (
	ActionStart   ScheduleAction = "start"
	ActionStop    ScheduleAction = "stop"
	ActionRestart ScheduleAction = "restart"
	ActionBackup  ScheduleAction = "backup"
)

// Valid reports whether a is a known action.
func (a ScheduleAction) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionBackup:
		return true
	}
	return false
}

// Frequency controls whether a schedule repeats.
type Frequency string

const (
	FrequencyDaily Frequency = "daily"
	FrequencyOnce  Frequency = "once"
)

// Schedule runs Action against Server at Clock ("HH:MM", panel local time).
type Schedule struct {
	ID        string         `json:"id"`
	Server    string         `json:"server"`
	Action    ScheduleAction `json:"action"`
	Clock     string         `json:"time"`
	Frequency Frequency      `json:"frequency"`
	NextRun   time.Time      `json:"next_run"`
	CreatedAt time.Time      `json:"created_at"`
}
