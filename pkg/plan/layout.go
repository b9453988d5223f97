package plan

import "fmt"

// PartSpec is a single entry in a part layout: a part number paired with
// the inclusive byte range [Start, End] it covers (spec §4.6 ordering rules).
type PartSpec struct {
	PartNumber int32
	Start      int64
	End        int64 // inclusive
}

// Len returns the number of bytes this part covers.
func (p PartSpec) Len() int64 { return p.End - p.Start + 1 }

// LayoutFrom partitions [offset, size) into contiguous parts of partSize
// bytes, numbered starting at startPartNumber. The final part may be
// shorter than partSize but never shorter than 1 byte (spec §3 invariant 1).
//
// Used both for the initial layout (offset=0, startPartNumber=1) and for
// post-probe retune, which re-lays out only the unfinished suffix of the
// object starting at the number of bytes already completed (spec §4.6).
func LayoutFrom(offset, size, partSize int64, startPartNumber int32) ([]PartSpec, error) {
	if partSize <= 0 {
		return nil, fmt.Errorf("plan: part size must be positive, got %d", partSize)
	}
	if offset < 0 || offset > size {
		return nil, fmt.Errorf("plan: offset %d out of range for size %d", offset, size)
	}
	remaining := size - offset
	if remaining == 0 {
		return nil, nil
	}

	count := ceilDiv(remaining, partSize)
	if count > MaxParts {
		return nil, fmt.Errorf("plan: layout would need %d parts, exceeds max %d", count, MaxParts)
	}

	specs := make([]PartSpec, 0, count)
	num := startPartNumber
	for start := offset; start < size; start += partSize {
		end := start + partSize - 1
		if end >= size {
			end = size - 1
		}
		specs = append(specs, PartSpec{PartNumber: num, Start: start, End: end})
		num++
	}
	return specs, nil
}

// Layout is LayoutFrom with offset=0 and part numbering starting at 1 — the
// plan's initial full-object layout.
func Layout(size, partSize int64) ([]PartSpec, error) {
	return LayoutFrom(0, size, partSize, 1)
}
