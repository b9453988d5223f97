// Package estimate implements the cost estimator (C9): given a source
// size, region relation, profile and flags, it derives a plan via
// pkg/plan and reports the request/byte/storage counts spec §4.9 names,
// without ever creating or aborting an upload. Grounded in the Rust
// original's estimate.rs cost model, re-expressed against the pkg/pricing
// rate-kind contract of spec §6.3 instead of a baked-in region table.
package estimate

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/s3xcopy/pkg/plan"
	"github.com/3leaps/s3xcopy/pkg/pricing"
)

// Estimate is the machine-readable result of a cost estimation pass.
type Estimate struct {
	Strategy plan.Strategy

	SourceRegion string
	DestRegion   string
	SameRegion   bool
	StorageClass string

	SizeBytes int64
	PartSize  int64
	NumParts  int

	// HeadRequests counts pre-flight heads (source + destination) plus,
	// when verify is enabled, one post-copy verification head.
	HeadRequests int

	// PutCopyRequests counts CreateMultipartUpload + UploadPartCopy× +
	// CompleteMultipartUpload, or 1 for a single-shot CopyObject.
	PutCopyRequests int

	// CrossRegionBytes is SizeBytes when SameRegion is false, else 0.
	CrossRegionBytes int64

	APIRequestCostCents   float64
	DataTransferCostCents float64
	MonthlyStorageCents   float64
}

// Options configures an estimation pass.
type Options struct {
	SourceRegion       string
	DestRegion         string
	Profile            plan.Profile
	UserConcurrencyCap int
	StorageClass       string
	Auto               bool
	PartSizeOverride   int64
	VerifyEnabled      bool
}

// Run derives a plan for sizeBytes via pkg/plan and reports the request/
// byte/storage counts of spec §4.9. It performs no network I/O itself;
// the caller supplies sizeBytes from at most one head call, per §4.9's
// "at most one head per object" constraint.
func Run(sizeBytes int64, opts Options, table *pricing.Table) (*Estimate, error) {
	destRegion := opts.DestRegion
	if destRegion == "" {
		destRegion = opts.SourceRegion
	}
	sameRegion := opts.SourceRegion == destRegion

	var p *plan.TransferPlan
	var err error
	if opts.Auto {
		p, err = plan.Auto(sizeBytes, sameRegion, opts.Profile, opts.UserConcurrencyCap)
		if err != nil {
			return nil, err
		}
	} else {
		p = &plan.TransferPlan{
			Strategy:      strategyForManualPartSize(sizeBytes, opts.PartSizeOverride),
			PartSizeBytes: opts.PartSizeOverride,
			Size:          sizeBytes,
			SameRegion:    sameRegion,
		}
	}

	e := &Estimate{
		Strategy:     p.Strategy,
		SourceRegion: opts.SourceRegion,
		DestRegion:   destRegion,
		SameRegion:   sameRegion,
		StorageClass: opts.StorageClass,
		SizeBytes:    sizeBytes,
	}

	e.HeadRequests = 2 // source + destination pre-flight
	if opts.VerifyEnabled {
		e.HeadRequests++
	}

	switch p.Strategy {
	case plan.StrategySingleShot, plan.StrategyPropertyCopy:
		e.PutCopyRequests = 1
	case plan.StrategyTagOnly:
		e.PutCopyRequests = 0
	case plan.StrategySkip:
		e.PutCopyRequests = 0
	case plan.StrategyMultipart:
		specs, layoutErr := plan.Layout(p.Size, p.PartSizeBytes)
		if layoutErr != nil {
			return nil, layoutErr
		}
		e.PartSize = p.PartSizeBytes
		e.NumParts = len(specs)
		e.PutCopyRequests = 2 + e.NumParts // create + parts + complete
	}

	if !sameRegion {
		e.CrossRegionBytes = sizeBytes
	}

	if table != nil {
		if err := priceEstimate(e, table); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func strategyForManualPartSize(size, partSize int64) plan.Strategy {
	if partSize <= 0 || size <= plan.SingleShotMax {
		return plan.StrategySingleShot
	}
	return plan.StrategyMultipart
}

func priceEstimate(e *Estimate, table *pricing.Table) error {
	putRate, err := table.PutCopyRequestRate(e.DestRegion)
	if err != nil {
		return err
	}
	getRate, err := table.GetHeadRequestRate(e.DestRegion)
	if err != nil {
		return err
	}
	e.APIRequestCostCents = float64(e.HeadRequests)/1000*getRate + float64(e.PutCopyRequests)/1000*putRate

	if e.CrossRegionBytes > 0 {
		dataOutRate, err := table.DataOutRate(e.SourceRegion, e.DestRegion)
		if err != nil {
			return err
		}
		gib := float64(e.CrossRegionBytes) / (1 << 30)
		e.DataTransferCostCents = gib * dataOutRate
	}

	storageRate, err := table.StorageRate(e.DestRegion, e.StorageClass)
	if err != nil {
		return err
	}
	gib := float64(e.SizeBytes) / (1 << 30)
	e.MonthlyStorageCents = gib * storageRate

	return nil
}

// Render formats e as a human-readable multi-line report, using
// dustin/go-humanize for byte sizes; costs are printed as fixed-point
// numbers.
func Render(e *Estimate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source size:      %s\n", humanize.IBytes(uint64(e.SizeBytes)))
	fmt.Fprintf(&b, "Planned strategy: %s\n", e.Strategy)
	if e.Strategy == plan.StrategyMultipart {
		fmt.Fprintf(&b, "Part size:        %s\n", humanize.IBytes(uint64(e.PartSize)))
		fmt.Fprintf(&b, "Part count:       %d\n", e.NumParts)
	}
	if e.SameRegion {
		fmt.Fprintf(&b, "Data transfer:    same-region (no cross-region bytes)\n")
	} else {
		fmt.Fprintf(&b, "Data transfer:    %s -> %s (%s cross-region)\n", e.SourceRegion, e.DestRegion, humanize.IBytes(uint64(e.CrossRegionBytes)))
	}
	fmt.Fprintf(&b, "Head requests:    %d\n", e.HeadRequests)
	fmt.Fprintf(&b, "Put/copy requests: %d\n", e.PutCopyRequests)
	if e.APIRequestCostCents > 0 || e.DataTransferCostCents > 0 || e.MonthlyStorageCents > 0 {
		fmt.Fprintf(&b, "API request cost: $%.6f\n", e.APIRequestCostCents/100)
		fmt.Fprintf(&b, "Data transfer cost: $%.6f\n", e.DataTransferCostCents/100)
		fmt.Fprintf(&b, "Monthly storage:  $%.4f/mo (%s)\n", e.MonthlyStorageCents/100, e.StorageClass)
	}
	return b.String()
}
