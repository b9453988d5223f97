// Package verify implements post-copy integrity verification (C8):
// a final, non-fatal check that the destination object matches the
// source under the mode the caller selected. Grounded in the teacher's
// pkg/verify checksum-comparison pattern, generalized from a single
// checksum algorithm into the three-mode contract of spec §4.8.
package verify

import (
	"context"
	"fmt"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// Mode selects how thoroughly the destination is checked after a copy.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeETag     Mode = "etag"
	ModeChecksum Mode = "checksum"
)

// ParseMode validates a --verify-integrity flag value, defaulting to
// ModeETag when empty (spec §6.1).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOff, ModeETag, ModeChecksum:
		return Mode(s), nil
	case "":
		return ModeETag, nil
	default:
		return "", fmt.Errorf("verify: unknown mode %q", s)
	}
}

// Result reports the outcome of a verification pass. A failed
// verification is reported but never triggers an abort: the copy has
// already been committed by the time verification runs (spec §4.8).
type Result struct {
	Mode   Mode
	Passed bool
	Reason string
}

// Verify re-fetches the destination's current attributes and checks them
// against the source under mode. srcETag is the source's ETag at the time
// the copy was planned (the value stamped into the destination's
// source-etag identity tag).
func Verify(ctx context.Context, gw gateway.Gateway, dst gateway.ObjectRef, srcSize int64, srcETag string, srcChecksum, srcChecksumAlgo string, mode Mode) (Result, error) {
	if mode == ModeOff {
		return Result{Mode: ModeOff, Passed: true}, nil
	}

	fresh, err := gw.Head(ctx, dst)
	if err != nil {
		return Result{}, err
	}

	switch mode {
	case ModeETag:
		return verifyETag(fresh, srcSize, srcETag), nil
	case ModeChecksum:
		return verifyChecksum(fresh, srcChecksum, srcChecksumAlgo), nil
	default:
		return Result{}, fmt.Errorf("verify: unknown mode %q", mode)
	}
}

func verifyETag(dst *gateway.Attributes, srcSize int64, srcETag string) Result {
	if dst.Size != srcSize {
		return Result{Mode: ModeETag, Passed: false, Reason: fmt.Sprintf("size mismatch: dest=%d src=%d", dst.Size, srcSize)}
	}
	got := dst.Metadata[attrs.IdentityTagKey]
	if got == "" {
		return Result{Mode: ModeETag, Passed: false, Reason: "destination is missing the source-etag identity tag"}
	}
	if got != srcETag {
		return Result{Mode: ModeETag, Passed: false, Reason: fmt.Sprintf("identity tag mismatch: dest=%s src=%s", got, srcETag)}
	}
	return Result{Mode: ModeETag, Passed: true}
}

func verifyChecksum(dst *gateway.Attributes, srcChecksum, srcAlgo string) Result {
	if srcChecksum == "" {
		return Result{Mode: ModeChecksum, Passed: false, Reason: "source object has no checksum to compare"}
	}
	if dst.ChecksumValue == "" {
		return Result{Mode: ModeChecksum, Passed: false, Reason: "destination object has no checksum to compare"}
	}
	if dst.ChecksumAlgorithm != srcAlgo {
		return Result{Mode: ModeChecksum, Passed: false, Reason: fmt.Sprintf("checksum algorithm mismatch: dest=%s src=%s", dst.ChecksumAlgorithm, srcAlgo)}
	}
	if dst.ChecksumValue != srcChecksum {
		return Result{Mode: ModeChecksum, Passed: false, Reason: fmt.Sprintf("checksum mismatch: dest=%s src=%s", dst.ChecksumValue, srcChecksum)}
	}
	return Result{Mode: ModeChecksum, Passed: true}
}
