package orchestrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/decide"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/gateway/gwtest"
	"github.com/3leaps/s3xcopy/pkg/orchestrate"
	"github.com/3leaps/s3xcopy/pkg/plan"
	"github.com/3leaps/s3xcopy/pkg/verify"
)

func TestRun_SkipWhenIdentical(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 100, ETag: "abc"})
	fake.PutObject(dst, gateway.Attributes{Size: 100, Metadata: map[string]string{attrs.IdentityTagKey: "abc"}})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{Src: src, Dst: dst})
	require.NoError(t, err)
	assert.Equal(t, decide.DecisionSkip, res.Decision)
	assert.Zero(t, fake.CreateCalls.Load())
}

func TestRun_SourceMissingReturnsSentinel(t *testing.T) {
	fake := gwtest.New()
	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	_, err := o.Run(context.Background(), orchestrate.Request{
		Src: gateway.ObjectRef{Bucket: "src", Key: "missing"},
		Dst: gateway.ObjectRef{Bucket: "dst", Key: "k"},
	})
	assert.ErrorIs(t, err, orchestrate.ErrSourceMissing)
}

func TestRun_SingleShotBelowThreshold(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 1 << 20, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, Auto: true, Profile: plan.ProfileBalanced,
	})
	require.NoError(t, err)
	assert.Equal(t, decide.DecisionFullCopy, res.Decision)
	assert.Equal(t, plan.StrategySingleShot, res.Strategy)
	require.NotNil(t, res.DestAttributes)
	assert.Equal(t, "abc", res.DestAttributes.Metadata[attrs.IdentityTagKey])
}

func TestRun_MultipartAboveThreshold(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	size := int64(6) << 30 // above the 5 GiB single-shot threshold
	fake.PutObject(src, gateway.Attributes{Size: size, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, Auto: true, Profile: plan.ProfileBalanced, ConcurrencyCap: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.StrategyMultipart, res.Strategy)
	require.NotNil(t, res.DestAttributes)
	assert.EqualValues(t, size, res.DestAttributes.Size)
	assert.Zero(t, fake.OpenUploads())
}

func TestRun_DryRunNeverMutates(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 1 << 20, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, Auto: true, DryRun: true,
	})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Nil(t, res.DestAttributes)
	assert.Zero(t, fake.CreateCalls.Load())
}

func TestRun_VerifyRunsAfterCopy(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 1 << 20, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, Auto: true, VerifyMode: verify.ModeETag,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Verify)
	assert.True(t, res.Verify.Passed)
}

func TestRun_TagOnlyReplacesDestinationTags(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 100, ETag: "etag1", Tags: []gateway.Tag{{Key: "a", Value: "1"}}})
	fake.PutObject(dst, gateway.Attributes{
		Size:     100,
		Metadata: map[string]string{attrs.IdentityTagKey: "etag1"},
		Tags:     []gateway.Tag{{Key: "a", Value: "2"}},
	})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{Src: src, Dst: dst})
	require.NoError(t, err)
	assert.Equal(t, decide.DecisionTagOnly, res.Decision)
	assert.Equal(t, plan.StrategyTagOnly, res.Strategy)

	tags, tagErr := fake.GetTags(context.Background(), dst)
	require.NoError(t, tagErr)
	require.Len(t, tags, 1)
	assert.Equal(t, gateway.Tag{Key: "a", Value: "1"}, tags[0])
}

func TestRun_TagOnlyDryRunNeverMutates(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 100, ETag: "etag1", Tags: []gateway.Tag{{Key: "a", Value: "1"}}})
	fake.PutObject(dst, gateway.Attributes{
		Size:     100,
		Metadata: map[string]string{attrs.IdentityTagKey: "etag1"},
		Tags:     []gateway.Tag{{Key: "a", Value: "2"}},
	})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{Src: src, Dst: dst, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, plan.StrategyTagOnly, res.Strategy)

	tags, tagErr := fake.GetTags(context.Background(), dst)
	require.NoError(t, tagErr)
	assert.Empty(t, tags, "dry-run must not call PutTags")
}

func TestRun_PropertyCopyReplacesHeadersInPlace(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: 100, ETag: "etag2", ContentType: "text/plain"})
	fake.PutObject(dst, gateway.Attributes{
		Size:        100,
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{attrs.IdentityTagKey: "etag2"},
	})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{Src: src, Dst: dst})
	require.NoError(t, err)
	assert.Equal(t, decide.DecisionPropertyCopy, res.Decision)
	assert.Equal(t, plan.StrategyPropertyCopy, res.Strategy)
	require.NotNil(t, res.DestAttributes)
	assert.Equal(t, "text/plain", res.DestAttributes.ContentType)
}

func TestRun_ManualPartSizeRequiredAboveThreshold(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: int64(6) << 30, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	_, err := o.Run(context.Background(), orchestrate.Request{Src: src, Dst: dst})
	assert.Error(t, err)
}

func TestRun_ManualPartSizeOutOfRangeIsRejected(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: int64(6) << 30, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	_, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, PartSizeBytes: 1 << 20, // below plan.MinPartSize (5 MiB)
	})
	require.Error(t, err)
	assert.True(t, gateway.IsInvalidPlan(err))
}

func TestRun_ManualMultipartSucceedsWithoutSpuriousRetune(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	size := int64(6) << 30 // above the 5 GiB single-shot threshold
	fake.PutObject(src, gateway.Attributes{Size: size, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	res, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, PartSizeBytes: 64 << 20, ConcurrencyCap: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, plan.StrategyMultipart, res.Strategy)
	require.NotNil(t, res.DestAttributes)
	assert.EqualValues(t, size, res.DestAttributes.Size)
	assert.Zero(t, fake.OpenUploads())
	// Manual mode disables probing (ProbePartCount == 0): the whole
	// object lays out at the requested part size, none of it re-cut by
	// a spurious throughput-based retune.
	assert.EqualValues(t, 96, fake.CopyPartCalls.Load())
}

func TestRun_ManualConcurrencyOutOfRangeIsRejected(t *testing.T) {
	fake := gwtest.New()
	src := gateway.ObjectRef{Bucket: "src", Key: "k"}
	dst := gateway.ObjectRef{Bucket: "dst", Key: "k"}
	fake.PutObject(src, gateway.Attributes{Size: int64(6) << 30, ETag: "abc"})

	o := &orchestrate.Orchestrator{GW: fake, PartGW: fake}
	_, err := o.Run(context.Background(), orchestrate.Request{
		Src: src, Dst: dst, PartSizeBytes: 64 << 20, ConcurrencyCap: 50000,
	})
	require.Error(t, err)
	assert.True(t, gateway.IsInvalidPlan(err))
}
