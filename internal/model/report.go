package model

import (
	"fmt"
	"time"
)

// RunReport summarizes one completed pipeline run.
type RunReport struct {
	RunID      string  `json:"run_id"`
	Total      int     `json:"total"`
	Inserted   int     `json:"inserted"`
	Updated    int     `json:"updated"`
	Skipped    int     `json:"skipped"`
	ChangedIDs []int64 `json:"changed_ids"`
	Staged     bool    `json:"staged"`
}

// LogEntry is one timestamped line in the run log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// RunLog accumulates soft events during a run: skipped rows, truncated
// fields, sentinel-scope fallbacks. It is returned to the caller alongside
// the report and is downloadable in full.
type RunLog struct {
	Entries []LogEntry `json:"entries"`

	SkippedNoIdentity int `json:"skipped_no_identity"`
	TruncatedFields   int `json:"truncated_fields"`
	SentinelStates    int `json:"sentinel_scope_states"`
	ResolvedRaces     int `json:"resolved_dimension_races"`
}

// Infof appends an INFO entry.
func (l *RunLog) Infof(format string, args ...any) {
	l.append("INFO", format, args...)
}

// Warnf appends a WARN entry.
func (l *RunLog) Warnf(format string, args ...any) {
	l.append("WARN", format, args...)
}

// Errorf appends an ERROR entry.
func (l *RunLog) Errorf(format string, args ...any) {
	l.append("ERROR", format, args...)
}

func (l *RunLog) append(level, format string, args ...any) {
	l.Entries = append(l.Entries, LogEntry{
		At:      time.Now().UTC(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}
