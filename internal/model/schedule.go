package model

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is how often a scheduled scan recurs.
type Frequency string

const (
	// FrequencyDaily runs at midnight every day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly runs at midnight every Sunday.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly runs at midnight on the first of the month.
	FrequencyMonthly Frequency = "monthly"
)

var frequencyCron = map[Frequency]string{
	FrequencyDaily:   "0 0 * * *",
	FrequencyWeekly:  "0 0 * * 0",
	FrequencyMonthly: "0 0 1 * *",
}

// Cron returns the five-field cron expression of f.
// Unknown frequencies are treated as weekly.
func (f Frequency) Cron() string {
	if expr, ok := frequencyCron[f]; ok {
		return expr
	}
	return frequencyCron[FrequencyWeekly]
}

// ParseFrequency converts a frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := frequencyCron[f]; !ok {
		return "", fmt.Errorf("unknown frequency %q (want daily, weekly or monthly)", s)
	}
	return f, nil
}

// Schedule is a recurring scan of one kind against one target.
type Schedule struct {
	ID        string
	TargetID  int64
	Kind      JobKind
	Frequency Frequency
	Cron      string
	CreatedAt time.Time
}

// ScheduleID returns the identifier of the schedule for a target and kind.
// There is at most one schedule per pair.
func ScheduleID(targetID int64, kind JobKind) string {
	return fmt.Sprintf("target_%d_%s", targetID, kind)
}

// NewSchedule builds a Schedule with its ID and cron expression filled in.
func NewSchedule(targetID int64, kind JobKind, freq Frequency) *Schedule {
	return &Schedule{
		ID:        ScheduleID(targetID, kind),
		TargetID:  targetID,
		Kind:      kind,
		Frequency: freq,
		Cron:      freq.Cron(),
	}
}
