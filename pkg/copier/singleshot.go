package copier

import (
	"context"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// CopySingle performs the SingleShot strategy (C7): a server-side
// single-operation copy stamping the persistent source-etag identity tag
// onto the destination (spec §4.7). Because S3's COPY metadata directive
// forbids adding new user-metadata, injecting the identity tag always
// requires directive REPLACE; unset header fields in opts fall back to the
// source's own values so REPLACE never silently blanks a header the user
// didn't ask to change.
//
// replicateMetadata controls whether src's user-metadata is carried over
// (--no-metadata sets it false); the identity tag is written regardless.
func CopySingle(ctx context.Context, gw gateway.Gateway, src, dst gateway.ObjectRef, srcAttrs gateway.Attributes, opts gateway.Options, replicateMetadata bool) (*gateway.Attributes, error) {
	return replaceCopy(ctx, gw, src, dst, srcAttrs, opts, replicateMetadata)
}

// PropertyCopy performs the PropertyCopy strategy: a single-operation copy
// from src onto the existing destination key with directive REPLACE, to
// change headers/storage-class (spec §4.3 decision 3, §4.7).
func PropertyCopy(ctx context.Context, gw gateway.Gateway, src, dst gateway.ObjectRef, srcAttrs gateway.Attributes, opts gateway.Options, replicateMetadata bool) (*gateway.Attributes, error) {
	return replaceCopy(ctx, gw, src, dst, srcAttrs, opts, replicateMetadata)
}

// TagOnly performs the TagOnly strategy: replace the destination's tag set
// without touching data or other properties.
func TagOnly(ctx context.Context, gw gateway.Gateway, dst gateway.ObjectRef, tags []gateway.Tag) error {
	return gw.PutTags(ctx, dst, tags)
}

func replaceCopy(ctx context.Context, gw gateway.Gateway, src, dst gateway.ObjectRef, srcAttrs gateway.Attributes, opts gateway.Options, replicateMetadata bool) (*gateway.Attributes, error) {
	opts.MetadataDirective = "REPLACE"

	merged := map[string]string{}
	if replicateMetadata {
		for k, v := range srcAttrs.Metadata {
			if k == attrs.IdentityTagKey {
				continue
			}
			merged[k] = v
		}
	}
	for k, v := range opts.Metadata {
		merged[k] = v
	}
	merged[attrs.IdentityTagKey] = srcAttrs.ETag
	opts.Metadata = merged

	opts.ContentType = firstNonEmpty(opts.ContentType, srcAttrs.ContentType)
	opts.CacheControl = firstNonEmpty(opts.CacheControl, srcAttrs.CacheControl)
	opts.ContentDisposition = firstNonEmpty(opts.ContentDisposition, srcAttrs.ContentDisposition)
	opts.ContentEncoding = firstNonEmpty(opts.ContentEncoding, srcAttrs.ContentEncoding)
	opts.ContentLanguage = firstNonEmpty(opts.ContentLanguage, srcAttrs.ContentLanguage)
	if opts.StorageClass == "" {
		opts.StorageClass = srcAttrs.StorageClass
	}

	return gw.CopySingle(ctx, src, dst, opts)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
