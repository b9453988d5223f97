// Package gateway defines the façade over cloud object-store operations
// that the copy engine drives. Implementations talk to a single S3-compatible
// API; the interface stays deliberately thin so the engine never depends on
// SDK types directly.
package gateway

import (
	"context"
)

// ObjectRef identifies a single object by bucket and key.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Options configures a copy-producing call (CopySingle, CreateMultipart).
// Zero-value fields mean "use provider/destination defaults."
type Options struct {
	// StorageClass is the target storage class. Empty means inherit.
	StorageClass string

	// SSE selects server-side encryption: "", "AES256", or "aws:kms".
	SSE string

	// SSEKMSKeyID is required when SSE is "aws:kms".
	SSEKMSKeyID string

	// ChecksumAlgorithm requests a specific checksum family on write.
	// One of "", "CRC32", "CRC32C", "SHA1", "SHA256".
	ChecksumAlgorithm string

	// MetadataDirective selects "COPY" or "REPLACE" semantics for
	// CopySingle/CreateMultipart. Empty defaults to "COPY".
	MetadataDirective string

	// Metadata is the user-metadata to apply when MetadataDirective is
	// "REPLACE" (or always, for CreateMultipart which has no COPY mode).
	Metadata map[string]string

	// Tagging is an URL-encoded tag set ("k1=v1&k2=v2") applied on write.
	Tagging string

	// FullControlACL requests bucket-owner-full-control, used for
	// cross-account copies.
	FullControlACL bool

	// ContentType, CacheControl, etc. mirror the replicated headers of
	// spec §3. CopySingle applies them only when MetadataDirective is
	// "REPLACE"; CreateMultipart always applies them.
	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
}

// PartRecord is the (part number, completion tag, size) triple appended
// once per successful copy-part call. Immutable once created.
type PartRecord struct {
	PartNumber int32
	ETag       string
	Size       int64
}

// Tag is a single object tag (name unique within a tag set).
type Tag struct {
	Key   string
	Value string
}

// Gateway is the façade over the provider operations the engine drives.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Head returns metadata for a single object.
	Head(ctx context.Context, ref ObjectRef) (*Attributes, error)

	// HeadBucketRegion resolves the region a bucket lives in.
	HeadBucketRegion(ctx context.Context, bucket string) (string, error)

	// GetTags returns the object tag set.
	GetTags(ctx context.Context, ref ObjectRef) ([]Tag, error)

	// PutTags replaces the object tag set.
	PutTags(ctx context.Context, ref ObjectRef, tags []Tag) error

	// CopySingle performs a server-side single-operation copy. Fails if
	// the source object exceeds 5 GiB.
	CopySingle(ctx context.Context, src, dst ObjectRef, opts Options) (*Attributes, error)

	// CreateMultipart starts a multipart upload and returns its id.
	CreateMultipart(ctx context.Context, dst ObjectRef, opts Options) (string, error)

	// CopyPart copies byteRange of src into the given part of an
	// in-progress multipart upload on dst.
	CopyPart(ctx context.Context, uploadID string, partNumber int32, src, dst ObjectRef, byteRange ByteRange) (PartRecord, error)

	// CompleteMultipart finalizes an upload from ordered part records.
	CompleteMultipart(ctx context.Context, dst ObjectRef, uploadID string, parts []PartRecord) (*Attributes, error)

	// AbortMultipart aborts an in-progress upload. Idempotent from the
	// caller's perspective: aborting an already-aborted/completed upload
	// must not be treated as a fatal error by callers.
	AbortMultipart(ctx context.Context, dst ObjectRef, uploadID string) error
}

// ByteRange is a closed byte range [Start, End], both ends inclusive, matching the
// HTTP Range header convention used by copy-part calls.
type ByteRange struct {
	Start int64
	End   int64 // inclusive
}

// Len returns the number of bytes the range covers.
func (r ByteRange) Len() int64 { return r.End - r.Start + 1 }

// Attributes is the normalized metadata shape shared by SourceAttributes
// and DestAttributes (spec §3); the resolver in pkg/attrs adds the
// source/dest-specific fields on top of this.
type Attributes struct {
	Size               int64
	ETag               string
	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	Metadata           map[string]string
	Tags               []Tag
	StorageClass       string
	ChecksumAlgorithm  string
	ChecksumValue      string
	Region             string
}
