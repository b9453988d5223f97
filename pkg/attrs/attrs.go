// Package attrs implements the metadata resolver (C2): it fetches and
// normalizes source/destination object attributes, tags, and checksums,
// resolving missing bucket regions via a location probe. Grounded in the
// teacher's pkg/preflight staged-check shape (pkg/preflight/preflight.go),
// generalized from a single read-safe list probe into the parallel
// source/destination head this engine needs before every copy decision.
package attrs

import (
	"context"
	"errors"

	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// IdentityTagKey is the user-metadata key the persistent identity tag is
// stored under (spec §3, §4.7, §9).
const IdentityTagKey = "source-etag"

// SourceAttributes is the normalized shape of the source object, read once
// at entry and treated as immutable for the rest of the invocation.
type SourceAttributes struct {
	gateway.Attributes
	Ref gateway.ObjectRef
}

// DestAttributes is the normalized shape of the destination object. A nil
// *DestAttributes means the destination did not exist at resolution time.
type DestAttributes struct {
	gateway.Attributes
	Ref gateway.ObjectRef

	// IdentityTag is the source-etag user-metadata entry, if present.
	// Server-side entity tags of multipart objects depend on part layout
	// and are therefore not a portable identity signal (spec §3); this is.
	IdentityTag string
}

// ErrSourceMissing indicates the source head returned NotFound.
var ErrSourceMissing = errors.New("source object missing")

// Pair is the resolved (src, dst?) attribute pair the shortcut decider and
// planner consume.
type Pair struct {
	Source SourceAttributes
	Dest   *DestAttributes // nil if the destination does not exist
}

// ResolveOptions controls resolution behavior.
type ResolveOptions struct {
	// ForceCopy skips the destination head entirely (spec §4.3 tie-break
	// "--force-copy overrides 1-3"): Dest is always nil when set.
	ForceCopy bool

	// SourceRegion/DestRegion are explicit region overrides. Empty means
	// resolve via HeadBucketRegion.
	SourceRegion string
	DestRegion   string
}

// Resolve performs a parallel head of source and destination (unless
// ForceCopy), resolving missing bucket regions via a bucket-location
// probe. Fails with ErrSourceMissing if the source head is NotFound;
// propagates access-denied and other errors unchanged.
func Resolve(ctx context.Context, gw gateway.Gateway, src, dst gateway.ObjectRef, opts ResolveOptions) (*Pair, error) {
	type srcResult struct {
		attrs  *gateway.Attributes
		region string
		err    error
	}
	type dstResult struct {
		attrs  *gateway.Attributes
		region string
		err    error
	}

	srcCh := make(chan srcResult, 1)
	go func() {
		attrs, err := gw.Head(ctx, src)
		if err != nil {
			srcCh <- srcResult{err: err}
			return
		}
		region := opts.SourceRegion
		if region == "" {
			region, _ = gw.HeadBucketRegion(ctx, src.Bucket)
		}
		srcCh <- srcResult{attrs: attrs, region: region}
	}()

	var dstCh chan dstResult
	if !opts.ForceCopy {
		dstCh = make(chan dstResult, 1)
		go func() {
			attrs, err := gw.Head(ctx, dst)
			if err != nil {
				dstCh <- dstResult{err: err}
				return
			}
			region := opts.DestRegion
			if region == "" {
				region, _ = gw.HeadBucketRegion(ctx, dst.Bucket)
			}
			dstCh <- dstResult{attrs: attrs, region: region}
		}()
	}

	sr := <-srcCh
	if sr.err != nil {
		if gateway.IsNotFound(sr.err) {
			return nil, ErrSourceMissing
		}
		return nil, sr.err
	}

	pair := &Pair{
		Source: SourceAttributes{Attributes: *sr.attrs, Ref: src},
	}
	pair.Source.Region = sr.region

	if dstCh == nil {
		return pair, nil
	}

	dr := <-dstCh
	if dr.err != nil {
		if gateway.IsNotFound(dr.err) {
			return pair, nil
		}
		return nil, dr.err
	}

	da := DestAttributes{Attributes: *dr.attrs, Ref: dst}
	da.Region = dr.region
	if tag, ok := da.Metadata[IdentityTagKey]; ok {
		da.IdentityTag = tag
	}
	pair.Dest = &da

	return pair, nil
}

// SameRegion reports whether the resolved pair's source and destination
// live in the same region. When the destination doesn't exist yet, it
// falls back to the explicit destRegion override, if any.
func (p *Pair) SameRegion(destRegionOverride string) bool {
	destRegion := destRegionOverride
	if p.Dest != nil && destRegion == "" {
		destRegion = p.Dest.Region
	}
	if destRegion == "" {
		return true
	}
	return p.Source.Region == destRegion
}
