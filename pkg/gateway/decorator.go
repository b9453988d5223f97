package gateway

import "context"

// WithRetry wraps g so every primitive retries transient/slow-down errors
// with exponential backoff and jitter (spec §4.1). Concrete implementations
// (e.g. pkg/gateway/s3gw) classify errors into the taxonomy in errors.go but
// do not retry themselves; retry is layered on here so it applies uniformly
// regardless of which provider backs the gateway.
func WithRetry(g Gateway, cfg RetryConfig) Gateway {
	return &retrying{g: g, cfg: cfg}
}

type retrying struct {
	g   Gateway
	cfg RetryConfig
}

func (r *retrying) Head(ctx context.Context, ref ObjectRef) (*Attributes, error) {
	var out *Attributes
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.Head(ctx, ref)
		return err
	})
	return out, err
}

func (r *retrying) HeadBucketRegion(ctx context.Context, bucket string) (string, error) {
	var out string
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.HeadBucketRegion(ctx, bucket)
		return err
	})
	return out, err
}

func (r *retrying) GetTags(ctx context.Context, ref ObjectRef) ([]Tag, error) {
	var out []Tag
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.GetTags(ctx, ref)
		return err
	})
	return out, err
}

func (r *retrying) PutTags(ctx context.Context, ref ObjectRef, tags []Tag) error {
	return withRetry(ctx, r.cfg, func() error {
		return r.g.PutTags(ctx, ref, tags)
	})
}

func (r *retrying) CopySingle(ctx context.Context, src, dst ObjectRef, opts Options) (*Attributes, error) {
	var out *Attributes
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.CopySingle(ctx, src, dst, opts)
		return err
	})
	return out, err
}

func (r *retrying) CreateMultipart(ctx context.Context, dst ObjectRef, opts Options) (string, error) {
	var out string
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.CreateMultipart(ctx, dst, opts)
		return err
	})
	return out, err
}

func (r *retrying) CopyPart(ctx context.Context, uploadID string, partNumber int32, src, dst ObjectRef, byteRange ByteRange) (PartRecord, error) {
	var out PartRecord
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.CopyPart(ctx, uploadID, partNumber, src, dst, byteRange)
		return err
	})
	return out, err
}

func (r *retrying) CompleteMultipart(ctx context.Context, dst ObjectRef, uploadID string, parts []PartRecord) (*Attributes, error) {
	var out *Attributes
	err := withRetry(ctx, r.cfg, func() error {
		var err error
		out, err = r.g.CompleteMultipart(ctx, dst, uploadID, parts)
		return err
	})
	return out, err
}

func (r *retrying) AbortMultipart(ctx context.Context, dst ObjectRef, uploadID string) error {
	// Abort is idempotent from the caller's perspective; still worth
	// retrying transient failures so an orphan upload doesn't survive a
	// single flaky response.
	return withRetry(ctx, r.cfg, func() error {
		return r.g.AbortMultipart(ctx, dst, uploadID)
	})
}

var _ Gateway = (*retrying)(nil)
