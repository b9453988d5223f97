// Package plan implements the auto-tuning planner (C4) and the cost-aware
// part-size floor (C5). It produces a TransferPlan from object size, region
// relation, and a named profile, and shares its logic with pkg/estimate so
// estimates match runtime behavior.
package plan

import (
	"fmt"
)

// Size thresholds from spec §3 invariant 1 and §4.4.
const (
	MinPartSize    int64 = 5 << 20          // 5 MiB
	MaxPartSize    int64 = 5 << 30          // 5 GiB
	MaxParts             = 10000            // spec §3 invariant 2
	SingleShotMax  int64 = 5 << 30          // 5 GiB, spec §3 invariant 4
	DefaultUserCap       = 1000
)

// Strategy is the decision a plan carries forward into execution.
type Strategy string

const (
	StrategySkip         Strategy = "skip"
	StrategyPropertyCopy Strategy = "property_copy"
	StrategyTagOnly      Strategy = "tag_only"
	StrategySingleShot   Strategy = "single_shot"
	StrategyMultipart    Strategy = "multipart"
)

// Profile is a named bundle of planner preferences.
type Profile string

const (
	ProfileBalanced     Profile = "balanced"
	ProfileAggressive   Profile = "aggressive"
	ProfileConservative Profile = "conservative"
	ProfileCostEfficient Profile = "cost-efficient"
)

// ParseProfile validates a profile name from the CLI.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileBalanced, ProfileAggressive, ProfileConservative, ProfileCostEfficient:
		return Profile(s), nil
	case "":
		return ProfileBalanced, nil
	default:
		return "", fmt.Errorf("unknown auto-profile %q", s)
	}
}

// TransferPlan is produced by Auto, refined by ApplyCostFloor, and consumed
// by the executor (pkg/copier) and the estimator (pkg/estimate).
type TransferPlan struct {
	Strategy Strategy

	// Multipart-only fields. Zero for Skip/PropertyCopy/TagOnly/SingleShot.
	PartSizeBytes       int64
	InitialConcurrency  int
	MaxConcurrency      int
	ProbePartCount      int
	WindowSize          int
	Profile             Profile

	// Size is the total object size this plan was derived for.
	Size int64

	// SameRegion records the region relation used to derive this plan.
	SameRegion bool
}

// profileTuning captures the table in spec §4.4, one row per profile.
type profileTuning struct {
	targetMaxParts        int
	initialPartSize       func(size int64) int64
	initialConcurrencyCap int
	maxConcurrencyCap     int
}

var profileTable = map[Profile]profileTuning{
	ProfileAggressive: {
		targetMaxParts: 4000,
		initialPartSize: func(size int64) int64 {
			return clamp(minInt64(256<<20, size/1024), MinPartSize, MaxPartSize)
		},
		initialConcurrencyCap: 64,
		maxConcurrencyCap:     200,
	},
	ProfileBalanced: {
		targetMaxParts: 2000,
		initialPartSize: func(size int64) int64 {
			return clamp(256<<20, MinPartSize, MaxPartSize)
		},
		initialConcurrencyCap: 32,
		maxConcurrencyCap:     100,
	},
	ProfileConservative: {
		targetMaxParts: 1000,
		initialPartSize: func(size int64) int64 {
			return clamp(maxInt64(256<<20, size/800), MinPartSize, MaxPartSize)
		},
		initialConcurrencyCap: 16,
		maxConcurrencyCap:     50,
	},
	ProfileCostEfficient: {
		targetMaxParts: 500,
		initialPartSize: func(size int64) int64 {
			target := int64(500)
			return clamp(maxInt64(size/target, 512<<20), MinPartSize, MaxPartSize)
		},
		initialConcurrencyCap: 8,
		maxConcurrencyCap:     32,
	},
}

// Auto produces a TransferPlan for size bytes under the given profile,
// region relation, and user concurrency cap (spec §4.4).
//
// Strategy is SingleShot iff size <= 5 GiB; otherwise Multipart with
// part size and concurrency derived from the profile table, cross-region
// adjustments, and the cost-aware floor (C5, applied once here).
func Auto(size int64, sameRegion bool, profile Profile, userConcurrencyCap int) (*TransferPlan, error) {
	if size < 0 {
		return nil, fmt.Errorf("plan: negative size %d", size)
	}
	if profile == "" {
		profile = ProfileBalanced
	}
	tuning, ok := profileTable[profile]
	if !ok {
		return nil, fmt.Errorf("plan: unknown profile %q", profile)
	}
	if userConcurrencyCap <= 0 {
		userConcurrencyCap = DefaultUserCap
	}
	userConcurrencyCap = minInt(userConcurrencyCap, DefaultUserCap)

	if size <= SingleShotMax {
		return &TransferPlan{
			Strategy:   StrategySingleShot,
			Size:       size,
			SameRegion: sameRegion,
			Profile:    profile,
		}, nil
	}

	partSize := tuning.initialPartSize(size)

	initialConcurrency := minInt(userConcurrencyCap, tuning.initialConcurrencyCap)
	maxConcurrency := minInt(userConcurrencyCap, tuning.maxConcurrencyCap)
	if !sameRegion {
		// Cross-region: fewer parts preferred (higher per-request latency
		// cost), but keep the pipe full at higher RTT by doubling initial
		// concurrency, clamped back to the cap.
		initialConcurrency = minInt(maxConcurrency, initialConcurrency*2)
	}
	if initialConcurrency < 1 {
		initialConcurrency = 1
	}
	if maxConcurrency < initialConcurrency {
		maxConcurrency = initialConcurrency
	}

	plan := &TransferPlan{
		Strategy:           StrategyMultipart,
		PartSizeBytes:      partSize,
		InitialConcurrency: initialConcurrency,
		MaxConcurrency:     maxConcurrency,
		Profile:            profile,
		Size:               size,
		SameRegion:         sameRegion,
	}

	ApplyCostFloor(plan)

	plan.ProbePartCount = probePartCount(plan.Size, plan.PartSizeBytes)
	plan.WindowSize = windowSize(plan.InitialConcurrency)

	return plan, nil
}

// TargetMaxParts returns the profile's preferred part-count ceiling,
// reduced by 0.75x cross-region (spec §4.4).
func TargetMaxParts(profile Profile, sameRegion bool) int {
	tuning, ok := profileTable[profile]
	if !ok {
		tuning = profileTable[ProfileBalanced]
	}
	target := tuning.targetMaxParts
	if !sameRegion {
		target = int(float64(target) * 0.75)
	}
	if target < 1 {
		target = 1
	}
	return target
}

func probePartCount(size, partSize int64) int {
	if partSize <= 0 {
		return 0
	}
	total := ceilDiv(size, partSize)
	return minInt(8, total)
}

func windowSize(initialConcurrency int) int {
	return maxInt(2*initialConcurrency, 16)
}

func ceilDiv(a, b int64) int {
	if b <= 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return int(q)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
