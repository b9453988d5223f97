package s3gw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/s3xcopy/pkg/gateway"
)

// Gateway implements gateway.Gateway against a single S3 client. It does
// not retry internally; wrap it with gateway.WithRetry for the
// backoff-with-jitter contract of spec §4.1.
type Gateway struct {
	client *s3.Client
}

var _ gateway.Gateway = (*Gateway)(nil)

// New builds a Gateway using the AWS SDK v2 default credential chain
// unless cfg supplies explicit long-term credentials.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &gateway.Error{Op: "New", Err: err}
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			// Disable the SDK's own retryer; retries happen in
			// gateway.WithRetry or the executor's adaptive loop.
			o.Retryer = aws.NopRetryer{}
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}

	return &Gateway{client: s3.NewFromConfig(awsCfg, opts...)}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, awsCfg.Region)
	return awsCfg, nil
}

func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}

// Head returns metadata for a single object.
func (g *Gateway) Head(ctx context.Context, ref gateway.ObjectRef) (*gateway.Attributes, error) {
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, g.wrapError("Head", ref.Bucket, ref.Key, err)
	}

	attrs := &gateway.Attributes{
		Size:               aws.ToInt64(out.ContentLength),
		ETag:               cleanETag(aws.ToString(out.ETag)),
		ContentType:        aws.ToString(out.ContentType),
		CacheControl:       aws.ToString(out.CacheControl),
		ContentDisposition: aws.ToString(out.ContentDisposition),
		ContentEncoding:    aws.ToString(out.ContentEncoding),
		ContentLanguage:    aws.ToString(out.ContentLanguage),
		Metadata:           out.Metadata,
		StorageClass:       string(out.StorageClass),
	}
	if attrs.Metadata == nil {
		attrs.Metadata = map[string]string{}
	}
	if out.ChecksumSHA256 != nil {
		attrs.ChecksumAlgorithm, attrs.ChecksumValue = "SHA256", *out.ChecksumSHA256
	} else if out.ChecksumSHA1 != nil {
		attrs.ChecksumAlgorithm, attrs.ChecksumValue = "SHA1", *out.ChecksumSHA1
	} else if out.ChecksumCRC32C != nil {
		attrs.ChecksumAlgorithm, attrs.ChecksumValue = "CRC32C", *out.ChecksumCRC32C
	} else if out.ChecksumCRC32 != nil {
		attrs.ChecksumAlgorithm, attrs.ChecksumValue = "CRC32", *out.ChecksumCRC32
	}

	tags, err := g.GetTags(ctx, ref)
	if err == nil {
		attrs.Tags = tags
	}

	return attrs, nil
}

// HeadBucketRegion resolves the region a bucket lives in via the
// location-constraint probe.
func (g *Gateway) HeadBucketRegion(ctx context.Context, bucket string) (string, error) {
	out, err := g.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return "", g.wrapError("HeadBucketRegion", bucket, "", err)
	}
	region := string(out.LocationConstraint)
	if region == "" {
		// An empty LocationConstraint means us-east-1 (S3's historical quirk).
		region = "us-east-1"
	}
	return region, nil
}

// GetTags returns the object tag set.
func (g *Gateway) GetTags(ctx context.Context, ref gateway.ObjectRef) ([]gateway.Tag, error) {
	out, err := g.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, g.wrapError("GetTags", ref.Bucket, ref.Key, err)
	}
	tags := make([]gateway.Tag, 0, len(out.TagSet))
	for _, t := range out.TagSet {
		tags = append(tags, gateway.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)})
	}
	return tags, nil
}

// PutTags replaces the object tag set.
func (g *Gateway) PutTags(ctx context.Context, ref gateway.ObjectRef, tags []gateway.Tag) error {
	set := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		set = append(set, types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	_, err := g.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(ref.Bucket),
		Key:     aws.String(ref.Key),
		Tagging: &types.Tagging{TagSet: set},
	})
	if err != nil {
		return g.wrapError("PutTags", ref.Bucket, ref.Key, err)
	}
	return nil
}

// CopySingle performs a server-side single-operation copy (<=5 GiB).
func (g *Gateway) CopySingle(ctx context.Context, src, dst gateway.ObjectRef, opts gateway.Options) (*gateway.Attributes, error) {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Bucket),
		Key:        aws.String(dst.Key),
		CopySource: aws.String(copySource(src)),
	}
	applyOptions(input, opts)

	out, err := g.client.CopyObject(ctx, input)
	if err != nil {
		return nil, g.wrapError("CopySingle", dst.Bucket, dst.Key, err)
	}

	attrs := &gateway.Attributes{}
	if out.CopyObjectResult != nil {
		attrs.ETag = cleanETag(aws.ToString(out.CopyObjectResult.ETag))
	}
	return attrs, nil
}

// CreateMultipart starts a multipart upload and returns its id.
func (g *Gateway) CreateMultipart(ctx context.Context, dst gateway.ObjectRef, opts gateway.Options) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(dst.Bucket),
		Key:    aws.String(dst.Key),
	}
	applyCreateOptions(input, opts)

	out, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", g.wrapError("CreateMultipart", dst.Bucket, dst.Key, err)
	}
	return aws.ToString(out.UploadId), nil
}

// CopyPart copies byteRange of src into partNumber of an in-progress
// multipart upload on dst.
func (g *Gateway) CopyPart(ctx context.Context, uploadID string, partNumber int32, src, dst gateway.ObjectRef, byteRange gateway.ByteRange) (gateway.PartRecord, error) {
	out, err := g.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(dst.Bucket),
		Key:             aws.String(dst.Key),
		UploadId:        aws.String(uploadID),
		PartNumber:      aws.Int32(partNumber),
		CopySource:      aws.String(copySource(src)),
		CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", byteRange.Start, byteRange.End)),
	})
	if err != nil {
		return gateway.PartRecord{}, g.wrapError("CopyPart", dst.Bucket, dst.Key, err)
	}
	if out.CopyPartResult == nil || out.CopyPartResult.ETag == nil {
		return gateway.PartRecord{}, &gateway.Error{Op: "CopyPart", Bucket: dst.Bucket, Key: dst.Key, Err: gateway.ErrProtocolViolation}
	}
	return gateway.PartRecord{
		PartNumber: partNumber,
		ETag:       cleanETag(aws.ToString(out.CopyPartResult.ETag)),
		Size:       byteRange.Len(),
	}, nil
}

// CompleteMultipart finalizes an upload from ordered part records.
func (g *Gateway) CompleteMultipart(ctx context.Context, dst gateway.ObjectRef, uploadID string, parts []gateway.PartRecord) (*gateway.Attributes, error) {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	out, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(dst.Bucket),
		Key:             aws.String(dst.Key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, g.wrapError("CompleteMultipart", dst.Bucket, dst.Key, err)
	}

	return &gateway.Attributes{ETag: cleanETag(aws.ToString(out.ETag))}, nil
}

// AbortMultipart aborts an in-progress upload. Idempotent from the
// caller's perspective: a NoSuchUpload response is treated as success.
func (g *Gateway) AbortMultipart(ctx context.Context, dst gateway.ObjectRef, uploadID string) error {
	_, err := g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(dst.Bucket),
		Key:      aws.String(dst.Key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		wrapped := g.wrapError("AbortMultipart", dst.Bucket, dst.Key, err)
		if gateway.IsNotFound(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

func copySource(ref gateway.ObjectRef) string {
	return ref.Bucket + "/" + strings.TrimPrefix(ref.Key, "/")
}

func applyCreateOptions(input *s3.CreateMultipartUploadInput, opts gateway.Options) {
	if opts.StorageClass != "" {
		input.StorageClass = types.StorageClass(opts.StorageClass)
	}
	applySSE(&input.ServerSideEncryption, &input.SSEKMSKeyId, opts)
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}
	if opts.Tagging != "" {
		input.Tagging = aws.String(opts.Tagging)
	}
	if opts.FullControlACL {
		input.ACL = types.ObjectCannedACLBucketOwnerFullControl
	}
	input.ContentType = strOrNil(opts.ContentType)
	input.CacheControl = strOrNil(opts.CacheControl)
	input.ContentDisposition = strOrNil(opts.ContentDisposition)
	input.ContentEncoding = strOrNil(opts.ContentEncoding)
	input.ContentLanguage = strOrNil(opts.ContentLanguage)
}

func applyOptions(input *s3.CopyObjectInput, opts gateway.Options) {
	if opts.StorageClass != "" {
		input.StorageClass = types.StorageClass(opts.StorageClass)
	}
	applySSE(&input.ServerSideEncryption, &input.SSEKMSKeyId, opts)
	if opts.MetadataDirective == "REPLACE" {
		input.MetadataDirective = types.MetadataDirectiveReplace
		if len(opts.Metadata) > 0 {
			input.Metadata = opts.Metadata
		}
		input.ContentType = strOrNil(opts.ContentType)
		input.CacheControl = strOrNil(opts.CacheControl)
		input.ContentDisposition = strOrNil(opts.ContentDisposition)
		input.ContentEncoding = strOrNil(opts.ContentEncoding)
		input.ContentLanguage = strOrNil(opts.ContentLanguage)
	} else {
		input.MetadataDirective = types.MetadataDirectiveCopy
	}
	if opts.Tagging != "" {
		input.Tagging = aws.String(opts.Tagging)
		input.TaggingDirective = types.TaggingDirectiveReplace
	}
	if opts.FullControlACL {
		input.ACL = types.ObjectCannedACLBucketOwnerFullControl
	}
}

func applySSE(sse *types.ServerSideEncryption, kmsKeyID **string, opts gateway.Options) {
	switch opts.SSE {
	case "AES256":
		*sse = types.ServerSideEncryptionAes256
	case "aws:kms":
		*sse = types.ServerSideEncryptionAwsKms
		if opts.SSEKMSKeyID != "" {
			*kmsKeyID = aws.String(opts.SSEKMSKeyID)
		}
	}
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

// cleanETag removes surrounding quotes S3 always wraps ETags in.
func cleanETag(etag string) string { return strings.Trim(etag, "\"") }

// wrapError converts SDK errors into the gateway's sentinel taxonomy
// (spec §7), following the teacher's provider.wrapError precedence:
// typed SDK errors first, then smithy error codes, then a message-based
// fallback for transports that don't surface a typed error.
func (g *Gateway) wrapError(op, bucket, key string, err error) error {
	wrapped := &gateway.Error{Op: op, Bucket: bucket, Key: key, Err: err}

	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	var notFound *types.NotFound
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		wrapped.Err = gateway.ErrNotFound
		return wrapped
	case errors.As(err, &noSuchBucket):
		wrapped.Err = gateway.ErrBucketNotFound
		return wrapped
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchUpload":
			wrapped.Err = gateway.ErrNotFound
		case "NoSuchBucket":
			wrapped.Err = gateway.ErrBucketNotFound
		case "AccessDenied", "Forbidden":
			wrapped.Err = gateway.ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			wrapped.Err = gateway.ErrInvalidCredentials
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded":
			wrapped.Err = gateway.ErrSlowDown
		case "ServiceUnavailable", "InternalError", "RequestTimeout":
			wrapped.Err = gateway.ErrTransient
		case "InvalidArgument", "InvalidRequest", "EntityTooLarge":
			// Left wrapping the raw error: caller-facing UserInput errors
			// aren't part of the retry/abort taxonomy.
		}
		return wrapped
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404"):
		wrapped.Err = gateway.ErrNotFound
	case strings.Contains(msg, "NoSuchBucket"):
		wrapped.Err = gateway.ErrBucketNotFound
	case strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "403"):
		wrapped.Err = gateway.ErrAccessDenied
	case strings.Contains(msg, "SlowDown") || strings.Contains(msg, "429"):
		wrapped.Err = gateway.ErrSlowDown
	case strings.Contains(msg, "503") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout"):
		wrapped.Err = gateway.ErrTransient
	}
	return wrapped
}
