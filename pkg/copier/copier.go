// Package copier implements the multipart executor (C6) and single-shot
// copier (C7): the probe-and-adapt execution loop that drives copy-part
// calls in sliding windows with dynamic concurrency, and the fail-safe
// abort protocol that prevents orphan uploads. Grounded in the teacher's
// pkg/transfer.Transfer worker-pool/semaphore/atomic-counter pattern
// (pkg/transfer/transfer.go), generalized from "stream bytes through the
// client" to "drive server-side copy-part calls and track part records."
package copier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/plan"
)

// State names the multipart executor's state machine positions (spec §4.6).
type State string

const (
	StateInit     State = "init"
	StateOpen     State = "open"
	StateProbed   State = "probed"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateAborting State = "aborting"
	StateFailed   State = "failed"
)

// Throughput thresholds gating the PROBED->RUNNING retune decision (spec
// §9 Open Question: "any reasonable values satisfying the ordering
// relations... satisfy this specification"). Chosen so a typical
// same-region S3 copy-part throughput lands comfortably in the "healthy"
// band and a badly throttled one lands in the "low" band.
const (
	HealthyThroughputBytesPerSec = 50 << 20 // 50 MiB/s
	LowThroughputBytesPerSec     = 5 << 20  // 5 MiB/s
)

// Observer receives progress events from the executor (C10). The concrete
// JSONL implementation lives in pkg/progress; a nil Observer is valid and
// silently discards events.
type Observer interface {
	OnStateChange(state State)
	OnProbeComplete(bytesCopied int64, elapsed time.Duration, partSize int64)
	OnWindowComplete(windowIndex int, concurrency int, throughputBps float64, errorRate float64)
	OnPartComplete(rec gateway.PartRecord)
}

type noopObserver struct{}

func (noopObserver) OnStateChange(State)                         {}
func (noopObserver) OnProbeComplete(int64, time.Duration, int64) {}
func (noopObserver) OnWindowComplete(int, int, float64, float64) {}
func (noopObserver) OnPartComplete(gateway.PartRecord)           {}

// Executor drives a single multipart copy from a TransferPlan.
type Executor struct {
	// GW handles Create/Complete/Abort — primitives for which the shared
	// backoff-with-jitter contract of spec §4.1 fully covers retries.
	GW gateway.Gateway

	// PartGW drives CopyPart directly, undecorated by the generic retry
	// wrapper: the adaptive loop below (probe majority-slowdown detection,
	// per-window concurrency adjustment) needs to observe Transient/
	// SlowDown itself rather than have them silently absorbed by a
	// lower-level retry loop (spec §4.6, §9 "probe + adaptive loop").
	PartGW gateway.Gateway

	Src, Dst gateway.ObjectRef
	Plan     *plan.TransferPlan
	Opts     gateway.Options

	Observer Observer
}

// maxPartAttempts bounds how many times the executor retries a single
// CopyPart call for Transient/SlowDown before treating it as terminal.
// Separate from gateway.RetryConfig: this budget governs the adaptive
// loop's own backoff on the un-decorated PartGW.
const maxPartAttempts = 4

// Run executes the INIT->OPEN->PROBED->RUNNING->DONE state machine,
// guaranteeing the created upload is completed or aborted before
// returning (spec §3 invariant 7, §9 orphan-upload prevention).
func (e *Executor) Run(ctx context.Context) (result *gateway.Attributes, err error) {
	if e.Observer == nil {
		e.Observer = noopObserver{}
	}
	if e.Plan == nil || e.Plan.Strategy != plan.StrategyMultipart {
		return nil, fmt.Errorf("copier: plan must be a multipart plan")
	}

	specs, err := plan.Layout(e.Plan.Size, e.Plan.PartSizeBytes)
	if err != nil {
		return nil, &gateway.Error{Op: "Run", Err: fmt.Errorf("%w: %v", gateway.ErrInvalidPlan, err)}
	}

	e.Observer.OnStateChange(StateInit)
	uploadID, err := e.GW.CreateMultipart(ctx, e.Dst, e.Opts)
	if err != nil {
		return nil, err
	}
	e.Observer.OnStateChange(StateOpen)

	committed := false
	defer func() {
		if committed {
			return
		}
		e.Observer.OnStateChange(StateAborting)
		if r := recover(); r != nil {
			_ = e.GW.AbortMultipart(context.Background(), e.Dst, uploadID)
			e.Observer.OnStateChange(StateFailed)
			panic(r)
		}
		if abortErr := e.GW.AbortMultipart(context.Background(), e.Dst, uploadID); abortErr != nil {
			// Best-effort: logged by the caller via the returned error's
			// wrapped context, never masks the original failure.
			err = fmt.Errorf("%w (abort also failed: %v)", err, abortErr)
		}
		e.Observer.OnStateChange(StateFailed)
	}()

	probeCount := e.Plan.ProbePartCount
	if probeCount > len(specs) {
		probeCount = len(specs)
	}
	probeSpecs := specs[:probeCount]
	remainingSpecs := specs[probeCount:]

	concurrency := e.Plan.InitialConcurrency
	start := time.Now()
	records, stats, perr := e.runBatch(ctx, uploadID, probeSpecs, concurrency)
	if perr != nil {
		if !errors.Is(perr, gateway.ErrSlowDown) {
			return nil, perr
		}
		// The probe batch itself terminated on a SlowDown rather than
		// merely observing one on individual parts (spec §4.6): halve
		// concurrency and retry the probe once before giving up.
		concurrency = maxInt(1, concurrency/2)
		records, stats, perr = e.runBatch(ctx, uploadID, probeSpecs, concurrency)
		if perr != nil {
			return nil, perr
		}
	}
	if stats.total > 0 && stats.slowDownCount*2 > stats.total {
		concurrency = maxInt(1, concurrency/2)
		records, stats, perr = e.runBatch(ctx, uploadID, probeSpecs, concurrency)
		if perr != nil {
			return nil, perr
		}
	}
	probeElapsed := time.Since(start)
	probeBytes := stats.bytes
	e.Observer.OnProbeComplete(probeBytes, probeElapsed, e.Plan.PartSizeBytes)
	e.Observer.OnStateChange(StateProbed)

	allRecords := append([]gateway.PartRecord(nil), records...)

	completedBytes := probeBytes
	partSize := e.Plan.PartSizeBytes

	// probeCount == 0 means the plan opted out of probing entirely
	// (manual mode, spec §4.5: ProbePartCount is only populated by the
	// auto planner). There is then no probe throughput to classify —
	// zero bytes over a near-zero elapsed reads as "low throughput" by
	// construction, not as a real signal — so the retune decision below
	// must not run at all.
	if probeCount > 0 {
		throughput := throughputBps(probeBytes, probeElapsed)
		switch {
		case throughput > HealthyThroughputBytesPerSec:
			remaining := e.Plan.Size - completedBytes
			if remaining > 0 {
				// A healthy probe means the provider can sustain more bytes
				// per part than planned; double the part size (mirroring the
				// cost floor's own doubling step) rather than deriving a
				// candidate from the remaining byte/part-count average, which
				// is bounded above by the current part size by construction
				// and so could never actually grow it (spec §4.6, S2).
				retuned := &plan.TransferPlan{
					Strategy:      plan.StrategyMultipart,
					Size:          e.Plan.Size,
					SameRegion:    e.Plan.SameRegion,
					Profile:       e.Plan.Profile,
					PartSizeBytes: clampPartSize(partSize * 2),
				}
				plan.ApplyCostFloor(retuned)
				if !plan.ExceedsMaxParts(remaining, retuned.PartSizeBytes) {
					partSize = retuned.PartSizeBytes
				}
			}
		case throughput < LowThroughputBytesPerSec:
			concurrency = maxInt(1, concurrency-maxInt(1, concurrency/4))
		}
	}

	if partSize != e.Plan.PartSizeBytes {
		newLayout, layoutErr := plan.LayoutFrom(completedBytes, e.Plan.Size, partSize, int32(probeCount+1))
		if layoutErr != nil {
			return nil, &gateway.Error{Op: "Run", Err: fmt.Errorf("%w: %v", gateway.ErrInvalidPlan, layoutErr)}
		}
		remainingSpecs = newLayout
	}
	if plan.ExceedsMaxParts(e.Plan.Size, partSize) {
		return nil, &gateway.Error{Op: "Run", Err: gateway.ErrInvalidPlan}
	}

	e.Observer.OnStateChange(StateRunning)

	windowSize := e.Plan.WindowSize
	if windowSize <= 0 {
		windowSize = maxInt(2*concurrency, 16)
	}
	var prevThroughput float64
	for i := 0; i < len(remainingSpecs); i += windowSize {
		if err := ctx.Err(); err != nil {
			return nil, gateway.ErrCancelled
		}
		end := minInt(i+windowSize, len(remainingSpecs))
		batch := remainingSpecs[i:end]

		wStart := time.Now()
		recs, wStats, werr := e.runBatch(ctx, uploadID, batch, concurrency)
		if werr != nil {
			return nil, werr
		}
		allRecords = append(allRecords, recs...)

		wElapsed := time.Since(wStart)
		wThroughput := throughputBps(wStats.bytes, wElapsed)
		errorRate := 0.0
		if wStats.total > 0 {
			errorRate = float64(wStats.retriedCount) / float64(wStats.total)
		}
		e.Observer.OnWindowComplete(i/windowSize, concurrency, wThroughput, errorRate)

		concurrency = adaptConcurrency(concurrency, e.Plan.MaxConcurrency, errorRate, wStats.slowDownCount > 0, wThroughput, prevThroughput)
		prevThroughput = wThroughput
	}

	sort.Slice(allRecords, func(i, j int) bool { return allRecords[i].PartNumber < allRecords[j].PartNumber })
	if gapErr := checkContiguous(allRecords); gapErr != nil {
		return nil, &gateway.Error{Op: "Run", Err: fmt.Errorf("%w: %v", gateway.ErrProtocolViolation, gapErr)}
	}

	attrsOut, cerr := e.GW.CompleteMultipart(ctx, e.Dst, uploadID, allRecords)
	if cerr != nil {
		return nil, cerr
	}
	committed = true
	e.Observer.OnStateChange(StateDone)
	return attrsOut, nil
}

// adaptConcurrency applies the per-window rule of spec §4.6: shrink 30% on
// high error rate or any observed slow-down, grow 25% (at least 1) on a
// throughput jump of >10%, otherwise hold.
func adaptConcurrency(current, max int, errorRate float64, sawSlowDown bool, throughput, prevThroughput float64) int {
	switch {
	case errorRate > 0.10 || sawSlowDown:
		return maxInt(1, int(float64(current)*0.7))
	case prevThroughput > 0 && throughput > prevThroughput*1.1 && current < max:
		grown := current + maxInt(1, int(float64(current)*0.25))
		return minInt(max, grown)
	default:
		return current
	}
}

type batchStats struct {
	bytes         int64
	total         int
	slowDownCount int
	retriedCount  int
}

// runBatch drives up to `concurrency` CopyPart calls in flight for specs,
// via a counting semaphore sized to concurrency (spec §5): capacity is
// fixed for the lifetime of the batch, mutated only between batches.
func (e *Executor) runBatch(ctx context.Context, uploadID string, specs []plan.PartSpec, concurrency int) ([]gateway.PartRecord, batchStats, error) {
	if len(specs) == 0 {
		return nil, batchStats{}, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	records := make([]gateway.PartRecord, 0, len(specs))
	stats := batchStats{total: len(specs)}
	var firstErr error

	for _, spec := range specs {
		spec := spec
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			rec, sawSlowDown, retried, err := e.copyPartWithBackoff(batchCtx, uploadID, spec)

			mu.Lock()
			defer mu.Unlock()
			if sawSlowDown {
				stats.slowDownCount++
			}
			if retried {
				stats.retriedCount++
			}
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			records = append(records, rec)
			stats.bytes += rec.Size
			e.Observer.OnPartComplete(rec)
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, stats, firstErr
	}
	return records, stats, nil
}

// copyPartWithBackoff retries a single part on Transient/SlowDown up to
// maxPartAttempts, tracking whether a slow-down was observed at all
// (feeds the probe's majority-slowdown detection and the window's
// error-rate/adapt signal).
func (e *Executor) copyPartWithBackoff(ctx context.Context, uploadID string, spec plan.PartSpec) (gateway.PartRecord, bool, bool, error) {
	sawSlowDown := false
	var lastErr error
	for attempt := 1; attempt <= maxPartAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return gateway.PartRecord{}, sawSlowDown, attempt > 1, err
		}
		rec, err := e.PartGW.CopyPart(ctx, uploadID, spec.PartNumber, e.Src, e.Dst, gateway.ByteRange{Start: spec.Start, End: spec.End})
		if err == nil {
			return rec, sawSlowDown, attempt > 1, nil
		}
		lastErr = err
		if gateway.IsSlowDown(err) {
			sawSlowDown = true
		}
		if !gateway.IsTransient(err) && !gateway.IsSlowDown(err) {
			return gateway.PartRecord{}, sawSlowDown, attempt > 1, err
		}
		if attempt == maxPartAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return gateway.PartRecord{}, sawSlowDown, true, ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return gateway.PartRecord{}, sawSlowDown, true, lastErr
}

func checkContiguous(records []gateway.PartRecord) error {
	for i, r := range records {
		if r.PartNumber != int32(i+1) {
			return fmt.Errorf("part number gap: expected %d, got %d", i+1, r.PartNumber)
		}
	}
	return nil
}

func throughputBps(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds()
}

func clampPartSize(v int64) int64 {
	if v < plan.MinPartSize {
		return plan.MinPartSize
	}
	if v > plan.MaxPartSize {
		return plan.MaxPartSize
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// InjectIdentityTag stamps the source-etag identity tag into opts.Metadata
// for the CreateMultipart call, satisfying spec §4.7's "every multipart
// completion" requirement.
func InjectIdentityTag(opts gateway.Options, srcETag string) gateway.Options {
	merged := map[string]string{}
	for k, v := range opts.Metadata {
		merged[k] = v
	}
	merged[attrs.IdentityTagKey] = srcETag
	opts.Metadata = merged
	return opts
}
