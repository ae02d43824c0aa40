// Package workerproto defines the stdout wire contract between the
// orchestrator and its compute workers.
//
// A worker writes one JSON object per line to standard output and flushes
// after every event. Two event shapes exist: progress reports and a single
// final result. Lines with unknown type tags are tolerated so the contract
// stays forward-compatible; the supervisor logs and skips them.
package workerproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event type tags carried in the "type" field of each line
const (
	TypeProgress = "progress"
	TypeResult   = "result"
)

// ErrNotJSON is returned for lines that do not parse as a JSON object
var ErrNotJSON = errors.New("line is not a JSON object")

// Progress is one worker progress report. Progress is clamped to 0..100.
type Progress struct {
	Progress int    `json:"progress"`
	Step     string `json:"step,omitempty"`
	Status   string `json:"status,omitempty"`
	Sector   string `json:"sector,omitempty"`
}

// Event is the parsed form of one worker stdout line. Type carries the
// raw tag; exactly one of Progress and Result is set for the known tags.
type Event struct {
	Type     string
	Progress *Progress              // set when Type == TypeProgress
	Result   map[string]interface{} // set when Type == TypeResult, tag removed
}

// progressWire tolerates fractional progress values from workers that
// report floats; the public type rounds to an integer.
type progressWire struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress"`
	Step     string  `json:"step"`
	Status   string  `json:"status"`
	Sector   string  `json:"sector"`
}

// ParseLine parses one stdout line into an Event. Empty and
// whitespace-only lines return (nil, nil). Malformed JSON returns
// ErrNotJSON wrapped with the decode error. Objects without a string
// "type" field return an Event with an empty Type so the caller can log
// and skip them.
func ParseLine(line string) (*Event, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	tag, _ := raw["type"].(string)

	switch tag {
	case TypeProgress:
		var wire progressWire
		if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
		}
		return &Event{
			Type: TypeProgress,
			Progress: &Progress{
				Progress: clampProgress(wire.Progress),
				Step:     wire.Step,
				Status:   wire.Status,
				Sector:   wire.Sector,
			},
		}, nil

	case TypeResult:
		delete(raw, "type")
		return &Event{Type: TypeResult, Result: raw}, nil

	default:
		// Unknown or missing tag: tolerated, caller decides what to do
		return &Event{Type: tag}, nil
	}
}

func clampProgress(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v + 0.5)
}
