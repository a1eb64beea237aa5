// Package progress defines the event structures emitted by the harvest loop.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageHarvestStart Stage = "HARVEST_START"
	StagePageDone     Stage = "PAGE_DONE"
	StageHarvestDone  Stage = "HARVEST_DONE"
	StageHarvestError Stage = "HARVEST_ERROR"
)

// EstimatedTotal is the fixed heuristic used to turn a fetched count into a
// progress fraction. It is a UX approximation, not a contract; the true
// total is unknown until the loop hits an empty page.
const EstimatedTotal = 2500

// Event captures a single milestone of a harvest run.
type Event struct {
	// HarvestID uniquely identifies a run using the 16-byte UUID form.
	HarvestID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Page is the zero-based page index this event refers to.
	Page int
	// PageHits is the number of hits the page contributed.
	PageHits int
	// Fetched is the cumulative record count after this page.
	Fetched int
	// Dur captures execution latency for page and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.HarvestID == [16]byte{} {
		return errors.New("harvest id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageHarvestStart, StageHarvestDone, StageHarvestError:
	case StagePageDone:
		if e.Page < 0 {
			return errors.New("page index must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Fetched < 0 {
		return errors.New("fetched count must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Fraction converts the fetched count into a display fraction against the
// heuristic total, clamped to 1.0.
func (e Event) Fraction() float64 {
	f := float64(e.Fetched) / float64(EstimatedTotal)
	if f > 1 {
		return 1
	}
	return f
}

// HarvestUUID converts the binary harvest ID to uuid.UUID.
func (e Event) HarvestUUID() uuid.UUID {
	return uuid.UUID(e.HarvestID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
