// Package decide implements the shortcut decider (C3): given a resolved
// source/destination attribute pair and CLI flags, it decides whether the
// orchestrator can skip the copy entirely, perform a tag-only or
// property-only mutation, or must run a full copy. Grounded in the
// teacher's on_exists/dedup branch logic (pkg/transfer/transfer.go
// transferOne), generalized from a boolean exists-check into the four-way
// decision of spec §4.3.
package decide

import (
	"sort"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// Decision is the shortcut decider's verdict.
type Decision string

const (
	// DecisionSkip means the destination already matches the source; no
	// mutation is required.
	DecisionSkip Decision = "skip"

	// DecisionTagOnly means only the tag set needs to change.
	DecisionTagOnly Decision = "tag_only"

	// DecisionPropertyCopy means an in-place copy with directive=replace
	// suffices to reconcile metadata/storage-class (source <= 5 GiB).
	DecisionPropertyCopy Decision = "property_copy"

	// DecisionFullCopy means the auto planner (C4) must run.
	DecisionFullCopy Decision = "full_copy"
)

// singleShotMax holds the same 5 GiB value as plan.SingleShotMax, kept as
// a local literal so this package does not import pkg/plan.
const singleShotMax int64 = 5 << 30

// Flags carries the subset of CLI flags the decider consults.
type Flags struct {
	ForceCopy      bool
	NoTags         bool
	NoMetadata     bool
	ReplicateClass bool
	VerifyChecksum bool
}

// Decide applies the rules of spec §4.3 to a resolved pair.
func Decide(pair *attrs.Pair, flags Flags) Decision {
	if flags.ForceCopy {
		return DecisionFullCopy
	}
	if pair.Dest == nil {
		return DecisionFullCopy
	}

	src := pair.Source.Attributes
	dst := pair.Dest.Attributes

	if src.Size != dst.Size {
		return DecisionFullCopy
	}

	// A missing identity tag forces the decision to fall through to copy,
	// never skip on size alone (spec §4.3 rule 1).
	if pair.Dest.IdentityTag == "" {
		return DecisionFullCopy
	}
	identityMatches := pair.Dest.IdentityTag == pair.Source.ETag

	propsMatch := propertiesMatch(src, dst, flags)
	tagsMatch := flags.NoTags || tagSetsEqual(src.Tags, dst.Tags)
	checksumMatches := !flags.VerifyChecksum || (src.ChecksumValue != "" && src.ChecksumValue == dst.ChecksumValue)

	if identityMatches && propsMatch && tagsMatch && checksumMatches {
		return DecisionSkip
	}

	if identityMatches && propsMatch && checksumMatches && !tagsMatch {
		return DecisionTagOnly
	}

	if identityMatches && !propsMatch {
		if src.Size <= singleShotMax {
			return DecisionPropertyCopy
		}
		// Larger objects can't have properties mutated in place beyond
		// tags; a full copy is required (spec §4.3 rule 3).
		return DecisionFullCopy
	}

	return DecisionFullCopy
}

// propertiesMatch compares the replicated properties named in spec §4.3
// rule 1: content-type, cache-control, content-disposition,
// content-encoding, content-language, user metadata (excluding the
// identity tag), storage class (when replication is enabled).
func propertiesMatch(src, dst gateway.Attributes, flags Flags) bool {
	if src.ContentType != dst.ContentType ||
		src.CacheControl != dst.CacheControl ||
		src.ContentDisposition != dst.ContentDisposition ||
		src.ContentEncoding != dst.ContentEncoding ||
		src.ContentLanguage != dst.ContentLanguage {
		return false
	}
	if flags.ReplicateClass && src.StorageClass != dst.StorageClass {
		return false
	}
	if !flags.NoMetadata && !metadataMatches(src.Metadata, dst.Metadata) {
		return false
	}
	return true
}

func metadataMatches(src, dst map[string]string) bool {
	filtered := func(m map[string]string) map[string]string {
		out := make(map[string]string, len(m))
		for k, v := range m {
			if k == attrs.IdentityTagKey {
				continue
			}
			out[k] = v
		}
		return out
	}
	a, b := filtered(src), filtered(dst)
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func tagSetsEqual(a, b []gateway.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	sorted := func(tags []gateway.Tag) []gateway.Tag {
		cp := append([]gateway.Tag(nil), tags...)
		sort.Slice(cp, func(i, j int) bool { return cp[i].Key < cp[j].Key })
		return cp
	}
	sa, sb := sorted(a), sorted(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
