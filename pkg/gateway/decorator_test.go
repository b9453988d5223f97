package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/gateway/gwtest"
)

func TestWithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	fake := gwtest.New()
	fake.PutObject(gateway.ObjectRef{Bucket: "b", Key: "k"}, gateway.Attributes{Size: 10})
	fake.FailNext["Head"] = gateway.ErrTransient

	g := gateway.WithRetry(fake, gateway.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	attrs, err := g.Head(context.Background(), gateway.ObjectRef{Bucket: "b", Key: "k"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, attrs.Size)
}

func TestWithRetry_NonTransientFailsFast(t *testing.T) {
	fake := gwtest.New()
	fake.FailNext["Head"] = &gateway.Error{Op: "Head", Err: gateway.ErrAccessDenied}

	g := gateway.WithRetry(fake, gateway.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	_, err := g.Head(context.Background(), gateway.ObjectRef{Bucket: "b", Key: "k"})
	require.Error(t, err)
	assert.True(t, gateway.IsAccessDenied(err))
	assert.EqualValues(t, 1, fake.HeadCalls.Load())
}

func TestWithRetry_AbortSucceedsAfterTransient(t *testing.T) {
	fake := gwtest.New()
	g := gateway.WithRetry(fake, gateway.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})

	id, err := g.CreateMultipart(context.Background(), gateway.ObjectRef{Bucket: "b", Key: "k"}, gateway.Options{})
	require.NoError(t, err)

	fake.FailNext["AbortMultipart"] = gateway.ErrTransient
	err = g.AbortMultipart(context.Background(), gateway.ObjectRef{Bucket: "b", Key: "k"}, id)
	require.NoError(t, err, "abort should succeed after the injected transient failure is retried")
}

func TestErrorWrapping(t *testing.T) {
	err := &gateway.Error{Op: "Head", Bucket: "b", Key: "k", Err: gateway.ErrNotFound}
	assert.Contains(t, err.Error(), "Head")
	assert.Contains(t, err.Error(), "b/k")
	assert.True(t, gateway.IsNotFound(err))
	assert.False(t, gateway.IsAccessDenied(err))
}
