package progress

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/3leaps/s3xcopy/pkg/copier"
	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// JSONLObserver implements copier.Observer, writing newline-delimited
// JSON records to an underlying io.Writer. State and probe transitions
// are always emitted; per-part completions are rate-limited via
// golang.org/x/time/rate so a high-window-frequency adaptive run doesn't
// flood the surface with one line per part.
type JSONLObserver struct {
	w     io.Writer
	jobID string
	mu    sync.Mutex

	partLimiter *rate.Limiter
}

// NewJSONLObserver creates an observer writing to w, tagging every record
// with jobID. partsPerSecond bounds the rate of emitted part-completion
// records; 0 disables the limit (every part is emitted).
func NewJSONLObserver(w io.Writer, jobID string, partsPerSecond float64) *JSONLObserver {
	var limiter *rate.Limiter
	if partsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(partsPerSecond), int(partsPerSecond)+1)
	}
	return &JSONLObserver{w: w, jobID: jobID, partLimiter: limiter}
}

func (o *JSONLObserver) OnStateChange(state copier.State) {
	o.write(TypeState, StateRecord{State: string(state)})
}

func (o *JSONLObserver) OnProbeComplete(bytesCopied int64, elapsed time.Duration, partSize int64) {
	o.write(TypeProbe, ProbeRecord{
		BytesCopied:   bytesCopied,
		ElapsedMillis: elapsed.Milliseconds(),
		PartSizeBytes: partSize,
	})
}

func (o *JSONLObserver) OnWindowComplete(windowIndex, concurrency int, throughputBps, errorRate float64) {
	o.write(TypeWindow, WindowRecord{
		WindowIndex:   windowIndex,
		Concurrency:   concurrency,
		ThroughputBps: throughputBps,
		ErrorRate:     errorRate,
	})
}

func (o *JSONLObserver) OnPartComplete(rec gateway.PartRecord) {
	if o.partLimiter != nil && !o.partLimiter.Allow() {
		return
	}
	o.write(TypePart, PartRecord{PartNumber: rec.PartNumber, ETag: rec.ETag, Size: rec.Size})
}

func (o *JSONLObserver) write(recordType string, data any) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return
	}
	record := Record{Type: recordType, TS: time.Now().UTC(), JobID: o.jobID, Data: dataBytes}
	line, err := json.Marshal(record)
	if err != nil {
		return
	}
	line = append(line, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = o.w.Write(line)
}

var _ copier.Observer = (*JSONLObserver)(nil)
