package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported analysis stages.
const (
	StageAnalysisStart Stage = "ANALYSIS_START"
	StageAnalysisTick  Stage = "ANALYSIS_TICK"
	StageAnalysisDone  Stage = "ANALYSIS_DONE"
	StageAnalysisError Stage = "ANALYSIS_ERROR"
)

// Event captures one milestone of a log analysis run.
type Event struct {
	// RunID uniquely identifies the analysis run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the lifecycle milestone.
	Stage Stage
	// Percent is the scan progress for tick events (0-100, monotonic
	// per run, 100 only on completion).
	Percent int
	// LinesProcessed counts scanned lines so far.
	LinesProcessed int64
	// BotVisits counts matched crawler visits so far.
	BotVisits int64
	// Dur captures total runtime for terminal events.
	Dur time.Duration
	// Note attaches low-volume context, e.g. the failure reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAnalysisStart, StageAnalysisDone, StageAnalysisError:
	case StageAnalysisTick:
		if e.Percent < 0 || e.Percent > 100 {
			return fmt.Errorf("tick percent %d out of range", e.Percent)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
