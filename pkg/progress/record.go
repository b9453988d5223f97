// Package progress implements the progress observer interface consumed
// by pkg/copier (C10) and its concrete JSONL implementation, adapted
// wholesale from the teacher's pkg/output typed-envelope pattern
// (pkg/output/record.go, pkg/output/writer.go).
package progress

import (
	"encoding/json"
	"time"
)

// Record type constants, following the teacher's "<product>.<type>.v<n>"
// convention.
const (
	TypeState  = "s3xcopy.state.v1"
	TypeProbe  = "s3xcopy.probe.v1"
	TypeWindow = "s3xcopy.window.v1"
	TypePart   = "s3xcopy.part.v1"
)

// Record is the envelope for all JSONL progress output.
type Record struct {
	Type  string          `json:"type"`
	TS    time.Time       `json:"ts"`
	JobID string          `json:"job_id"`
	Data  json.RawMessage `json:"data"`
}

// StateRecord reports a state-machine transition (spec §4.6).
type StateRecord struct {
	State string `json:"state"`
}

// ProbeRecord reports the outcome of the executor's probe phase.
type ProbeRecord struct {
	BytesCopied   int64 `json:"bytes_copied"`
	ElapsedMillis int64 `json:"elapsed_ms"`
	PartSizeBytes int64 `json:"part_size_bytes"`
}

// WindowRecord reports one adaptive-concurrency window's outcome.
type WindowRecord struct {
	WindowIndex   int     `json:"window_index"`
	Concurrency   int     `json:"concurrency"`
	ThroughputBps float64 `json:"throughput_bytes_per_sec"`
	ErrorRate     float64 `json:"error_rate"`
}

// PartRecord reports a single completed copy-part call.
type PartRecord struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
	Size       int64  `json:"size"`
}
