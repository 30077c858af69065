// Package events carries sync lifecycle events from the orchestrator to
// pluggable sinks without blocking the sync itself.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Stage is the lifecycle milestone an Event reports.
type Stage string

// Sync stages.
const (
	StageSyncStart Stage = "SYNC_START"
	StagePhaseDone Stage = "PHASE_DONE"
	StageSyncDone  Stage = "SYNC_DONE"
	StageSyncError Stage = "SYNC_ERROR"
)

// Phase names used in PHASE_DONE events.
const (
	PhaseFetch    = "fetch"
	PhaseRoot     = "resolve_root"
	PhaseFolders  = "folders"
	PhaseProblems = "problems"
	PhaseLinks    = "links"
)

// Event is one milestone of a sync run.
type Event struct {
	RunID    string        `json:"run_id"`
	TS       time.Time     `json:"ts"`
	Stage    Stage         `json:"stage"`
	Provider string        `json:"provider"`
	Phase    string        `json:"phase,omitempty"`
	OK       int           `json:"ok,omitempty"`
	Failed   int           `json:"failed,omitempty"`
	Skipped  int           `json:"skipped,omitempty"`
	Dur      time.Duration `json:"dur,omitempty"`
	// Note carries a status or an error message.
	Note string `json:"note,omitempty"`
}

// Validate rejects events that sinks could not attribute.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.Provider == "" {
		return errors.New("provider is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSyncStart, StageSyncDone:
	case StagePhaseDone:
		if e.Phase == "" {
			return errors.New("phase done requires phase")
		}
	case StageSyncError:
		if e.Note == "" {
			return errors.New("sync error requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
