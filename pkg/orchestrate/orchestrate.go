// Package orchestrate implements the top-level glue (C11): resolve
// attributes (C2), consult the shortcut decider (C3), run either the
// single-shot copier (C7) or the multipart executor (C6) after planning
// (C4+C5), then verify (C8). Grounded in the teacher's
// internal/cmd/transfer.go executeTransfer, generalized from a
// manifest-driven bulk transfer into a single source/destination pair
// with an explicit decision tree.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/copier"
	"github.com/3leaps/s3xcopy/pkg/decide"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/plan"
	"github.com/3leaps/s3xcopy/pkg/verify"
)

// Request bundles everything the orchestrator needs to run one copy.
type Request struct {
	Src, Dst gateway.ObjectRef

	Flags   decide.Flags
	Options gateway.Options

	// Auto enables the auto planner (C4+C5); when false, PartSizeBytes and
	// ConcurrencyCap come directly from the caller.
	Auto               bool
	Profile            plan.Profile
	ConcurrencyCap     int
	PartSizeBytes      int64
	DestRegionOverride string

	VerifyMode verify.Mode

	// DryRun plans and reports without mutating the destination.
	DryRun bool

	Observer copier.Observer
}

// Result reports what the orchestrator did.
type Result struct {
	Decision       decide.Decision
	Strategy       plan.Strategy
	DestAttributes *gateway.Attributes
	Verify         *verify.Result
	Plan           *plan.TransferPlan
	DryRun         bool
}

// Orchestrator drives a single copy end to end. GW is used for
// Head/GetTags/PutTags/CopySingle/CreateMultipart/CompleteMultipart/
// AbortMultipart, all of which should be wrapped with gateway.WithRetry.
// PartGW drives CopyPart during the multipart executor's adaptive loop
// undecorated, so SlowDown/Transient reach the loop directly (spec §4.6);
// callers typically pass the same underlying gateway wrapped once for GW
// and unwrapped for PartGW.
type Orchestrator struct {
	GW     gateway.Gateway
	PartGW gateway.Gateway
}

// ErrSourceMissing surfaces attrs.ErrSourceMissing under this package so
// callers (internal/cmd) don't need to import pkg/attrs to classify it.
var ErrSourceMissing = attrs.ErrSourceMissing

// Run executes the full C2->C3->(C7|C4+C5+C6)->C8 pipeline for req.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	sameRegionOverride := req.DestRegionOverride

	pair, err := attrs.Resolve(ctx, o.GW, req.Src, req.Dst, attrs.ResolveOptions{
		ForceCopy:  req.Flags.ForceCopy,
		DestRegion: sameRegionOverride,
	})
	if err != nil {
		return nil, err
	}

	decision := decide.Decide(pair, req.Flags)
	result := &Result{Decision: decision, DryRun: req.DryRun}

	switch decision {
	case decide.DecisionSkip:
		result.Strategy = plan.StrategySkip
		if pair.Dest != nil {
			result.DestAttributes = &pair.Dest.Attributes
		}
		return result, nil

	case decide.DecisionTagOnly:
		result.Strategy = plan.StrategyTagOnly
		if req.DryRun {
			return result, nil
		}
		if err := copier.TagOnly(ctx, o.GW, req.Dst, pair.Source.Tags); err != nil {
			return nil, err
		}
		return result, nil

	case decide.DecisionPropertyCopy:
		result.Strategy = plan.StrategyPropertyCopy
		if req.DryRun {
			return result, nil
		}
		attrsOut, err := copier.PropertyCopy(ctx, o.GW, req.Src, req.Dst, pair.Source.Attributes, req.Options, !req.Flags.NoMetadata)
		if err != nil {
			return nil, err
		}
		result.DestAttributes = attrsOut
		return o.finishWithVerify(ctx, req, pair, result)

	case decide.DecisionFullCopy:
		return o.runFullCopy(ctx, req, pair, result)

	default:
		return nil, fmt.Errorf("orchestrate: unknown decision %q", decision)
	}
}

func (o *Orchestrator) runFullCopy(ctx context.Context, req Request, pair *attrs.Pair, result *Result) (*Result, error) {
	size := pair.Source.Size
	sameRegion := pair.SameRegion(req.DestRegionOverride)

	var p *plan.TransferPlan
	var err error
	if req.Auto {
		p, err = plan.Auto(size, sameRegion, req.Profile, req.ConcurrencyCap)
	} else {
		p, err = manualPlan(size, req.PartSizeBytes, sameRegion, req.ConcurrencyCap)
	}
	if err != nil {
		return nil, &gateway.Error{Op: "Plan", Err: fmt.Errorf("%w: %v", gateway.ErrInvalidPlan, err)}
	}
	result.Plan = p
	result.Strategy = p.Strategy

	if req.DryRun {
		return result, nil
	}

	switch p.Strategy {
	case plan.StrategySingleShot:
		attrsOut, err := copier.CopySingle(ctx, o.GW, req.Src, req.Dst, pair.Source.Attributes, req.Options, !req.Flags.NoMetadata)
		if err != nil {
			return nil, err
		}
		result.DestAttributes = attrsOut

	case plan.StrategyMultipart:
		e := &copier.Executor{
			GW:       o.GW,
			PartGW:   o.PartGW,
			Src:      req.Src,
			Dst:      req.Dst,
			Plan:     p,
			Opts:     copier.InjectIdentityTag(req.Options, pair.Source.ETag),
			Observer: req.Observer,
		}
		attrsOut, err := e.Run(ctx)
		if err != nil {
			return nil, err
		}
		result.DestAttributes = attrsOut

	default:
		return nil, fmt.Errorf("orchestrate: unexpected strategy %q from full-copy decision", p.Strategy)
	}

	return o.finishWithVerify(ctx, req, pair, result)
}

func manualPlan(size, partSize int64, sameRegion bool, concurrencyCap int) (*plan.TransferPlan, error) {
	if size <= plan.SingleShotMax {
		return &plan.TransferPlan{Strategy: plan.StrategySingleShot, Size: size, SameRegion: sameRegion}, nil
	}
	if partSize <= 0 {
		return nil, errors.New("orchestrate: --part-size is required for objects above the single-shot threshold when --auto is not set")
	}
	if partSize < plan.MinPartSize || partSize > plan.MaxPartSize {
		return nil, fmt.Errorf("orchestrate: --part-size must be between %d and %d bytes, got %d", plan.MinPartSize, plan.MaxPartSize, partSize)
	}
	if plan.ExceedsMaxParts(size, partSize) {
		return nil, fmt.Errorf("orchestrate: part size %d would require more than %d parts for a %d byte object", partSize, plan.MaxParts, size)
	}
	if concurrencyCap < 0 || concurrencyCap > plan.DefaultUserCap {
		return nil, fmt.Errorf("orchestrate: --concurrency must be between 1 and %d, got %d", plan.DefaultUserCap, concurrencyCap)
	}
	concurrency := concurrencyCap
	if concurrency <= 0 {
		concurrency = plan.DefaultUserCap
	}
	return &plan.TransferPlan{
		Strategy:           plan.StrategyMultipart,
		PartSizeBytes:      partSize,
		InitialConcurrency: concurrency,
		MaxConcurrency:     concurrency,
		ProbePartCount:     0,
		WindowSize:         concurrency * 2,
		Size:               size,
		SameRegion:         sameRegion,
	}, nil
}

func (o *Orchestrator) finishWithVerify(ctx context.Context, req Request, pair *attrs.Pair, result *Result) (*Result, error) {
	if req.VerifyMode == "" || req.VerifyMode == verify.ModeOff {
		return result, nil
	}
	res, err := verify.Verify(ctx, o.GW, req.Dst, pair.Source.Size, pair.Source.ETag, pair.Source.ChecksumValue, pair.Source.ChecksumAlgorithm, req.VerifyMode)
	if err != nil {
		// A head failure during verification is reported, not fatal to the
		// already-committed copy (spec §4.8/§7).
		res = verify.Result{Mode: req.VerifyMode, Passed: false, Reason: err.Error()}
	}
	result.Verify = &res
	return result, nil
}

// WithCancellation wires SIGINT/SIGTERM into ctx, returning a derived
// context that is cancelled on either signal and a stop func the caller
// must invoke once done (spec §5 "on external cancellation... graceful
// drain then abort").
func WithCancellation(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return ctx, stop
}
