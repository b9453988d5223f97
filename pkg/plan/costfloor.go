package plan

// ApplyCostFloor enforces the cost-aware part-size floor (C5, spec §4.5):
// it raises PartSizeBytes until the part count implied by Size fits within
// the profile's target ceiling (TargetMaxParts), then applies a hard check
// so invariant 2 (<=10000 parts) holds regardless of profile preference.
//
// Idempotent: calling it twice on the same plan produces the same result,
// since it only ever raises PartSizeBytes and stops as soon as the bound
// is satisfied (spec §8 property 4).
func ApplyCostFloor(p *TransferPlan) {
	if p == nil || p.Strategy != StrategyMultipart {
		return
	}
	if p.PartSizeBytes <= 0 {
		p.PartSizeBytes = MinPartSize
	}

	target := TargetMaxParts(p.Profile, p.SameRegion)
	for ceilDiv(p.Size, p.PartSizeBytes) > target && p.PartSizeBytes < MaxPartSize {
		p.PartSizeBytes *= 2
		if p.PartSizeBytes > MaxPartSize {
			p.PartSizeBytes = MaxPartSize
		}
	}

	// Hard check: invariant 2 always wins over profile preference.
	for ceilDiv(p.Size, p.PartSizeBytes) > MaxParts && p.PartSizeBytes < MaxPartSize {
		p.PartSizeBytes *= 2
		if p.PartSizeBytes > MaxPartSize {
			p.PartSizeBytes = MaxPartSize
		}
	}

	if p.PartSizeBytes < MinPartSize {
		p.PartSizeBytes = MinPartSize
	}
	if p.PartSizeBytes > MaxPartSize {
		p.PartSizeBytes = MaxPartSize
	}
}

// ExceedsMaxParts reports whether size laid out at partSize would need
// more than MaxParts parts, the final guard invariant 2 enforces.
func ExceedsMaxParts(size, partSize int64) bool {
	return ceilDiv(size, partSize) > MaxParts
}
