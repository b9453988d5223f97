package attrs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3xcopy/pkg/attrs"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/gateway/gwtest"
)

func TestResolve_SourceMissing(t *testing.T) {
	fake := gwtest.New()
	_, err := attrs.Resolve(context.Background(), fake,
		gateway.ObjectRef{Bucket: "src", Key: "missing"},
		gateway.ObjectRef{Bucket: "dst", Key: "k"},
		attrs.ResolveOptions{})
	assert.ErrorIs(t, err, attrs.ErrSourceMissing)
}

func TestResolve_DestMissingYieldsNilDest(t *testing.T) {
	fake := gwtest.New()
	fake.PutObject(gateway.ObjectRef{Bucket: "src", Key: "k"}, gateway.Attributes{Size: 100, ETag: "abc"})

	pair, err := attrs.Resolve(context.Background(), fake,
		gateway.ObjectRef{Bucket: "src", Key: "k"},
		gateway.ObjectRef{Bucket: "dst", Key: "k"},
		attrs.ResolveOptions{})
	require.NoError(t, err)
	assert.Nil(t, pair.Dest)
	assert.EqualValues(t, 100, pair.Source.Size)
}

func TestResolve_ForceCopySkipsDestHead(t *testing.T) {
	fake := gwtest.New()
	fake.PutObject(gateway.ObjectRef{Bucket: "src", Key: "k"}, gateway.Attributes{Size: 100})
	fake.PutObject(gateway.ObjectRef{Bucket: "dst", Key: "k"}, gateway.Attributes{Size: 100})

	pair, err := attrs.Resolve(context.Background(), fake,
		gateway.ObjectRef{Bucket: "src", Key: "k"},
		gateway.ObjectRef{Bucket: "dst", Key: "k"},
		attrs.ResolveOptions{ForceCopy: true})
	require.NoError(t, err)
	assert.Nil(t, pair.Dest)
}

func TestResolve_IdentityTagExtracted(t *testing.T) {
	fake := gwtest.New()
	fake.PutObject(gateway.ObjectRef{Bucket: "src", Key: "k"}, gateway.Attributes{Size: 100, ETag: "src-etag"})
	fake.PutObject(gateway.ObjectRef{Bucket: "dst", Key: "k"}, gateway.Attributes{
		Size:     100,
		Metadata: map[string]string{attrs.IdentityTagKey: "src-etag"},
	})

	pair, err := attrs.Resolve(context.Background(), fake,
		gateway.ObjectRef{Bucket: "src", Key: "k"},
		gateway.ObjectRef{Bucket: "dst", Key: "k"},
		attrs.ResolveOptions{})
	require.NoError(t, err)
	require.NotNil(t, pair.Dest)
	assert.Equal(t, "src-etag", pair.Dest.IdentityTag)
}

func TestResolve_AccessDeniedPropagates(t *testing.T) {
	fake := gwtest.New()
	// The source exists, so whichever of the two parallel heads consumes
	// the one-shot failure, access-denied is the only error Resolve sees.
	fake.PutObject(gateway.ObjectRef{Bucket: "src", Key: "k"}, gateway.Attributes{Size: 100})
	fake.FailNext["Head"] = &gateway.Error{Op: "Head", Err: gateway.ErrAccessDenied}

	_, err := attrs.Resolve(context.Background(), fake,
		gateway.ObjectRef{Bucket: "src", Key: "k"},
		gateway.ObjectRef{Bucket: "dst", Key: "k"},
		attrs.ResolveOptions{})
	require.Error(t, err)
	assert.True(t, gateway.IsAccessDenied(err))
}

func TestPair_SameRegion(t *testing.T) {
	pair := &attrs.Pair{Source: attrs.SourceAttributes{Attributes: gateway.Attributes{Region: "us-east-1"}}}
	assert.True(t, pair.SameRegion(""))
	assert.True(t, pair.SameRegion("us-east-1"))
	assert.False(t, pair.SameRegion("eu-west-1"))
}
