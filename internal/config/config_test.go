package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3xcopy/internal/config"
)

func newBoundFlagSet() func([]string) (*config.Config, error) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := config.New()
	config.BindFlags(fs, v)
	return func(args []string) (*config.Config, error) {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return config.Load(v)
	}
}

func TestLoad_RequiredFlags(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{})
	assert.Error(t, err)
}

func TestLoad_MinimalValidInvocation(t *testing.T) {
	load := newBoundFlagSet()
	cfg, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
	})
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.SourceBucket)
	assert.Equal(t, "etag", cfg.VerifyIntegrity)
	assert.Equal(t, "balanced", cfg.AutoProfile)
}

func TestLoad_GetPriceSkipsObjectFlags(t *testing.T) {
	load := newBoundFlagSet()
	cfg, err := load([]string{"--get-price", "--region=us-east-1"})
	require.NoError(t, err)
	assert.True(t, cfg.GetPrice)
}

func TestValidate_FullControlAndNoACLConflict(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--full-control", "--no-acl",
	})
	assert.Error(t, err)
}

func TestValidate_SSEKMSRequiresKeyID(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--sse=aws:kms",
	})
	assert.Error(t, err)
}

func TestValidate_RejectsUnknownProfile(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--auto-profile=bogus",
	})
	assert.Error(t, err)
}

func TestEnvOverride_AppliedWhenFlagNotSet(t *testing.T) {
	t.Setenv("S3XFER_SOURCE_BUCKET", "from-env")
	load := newBoundFlagSet()
	cfg, err := load([]string{
		"--source-key=k", "--dest-bucket=dst", "--dest-key=k",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SourceBucket)
}

func TestPartSizeBytes_ConvertsMiB(t *testing.T) {
	load := newBoundFlagSet()
	cfg, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--part-size=64",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 64<<20, cfg.PartSizeBytes())
}

func TestValidate_RejectsPartSizeOutOfRange(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--part-size=1",
	})
	assert.Error(t, err)

	load = newBoundFlagSet()
	_, err = load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--part-size=6000",
	})
	assert.Error(t, err)
}

func TestValidate_RejectsConcurrencyOutOfRange(t *testing.T) {
	load := newBoundFlagSet()
	_, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--concurrency=50000",
	})
	assert.Error(t, err)
}

func TestGatewayOptions_NoStorageClassOmitsField(t *testing.T) {
	load := newBoundFlagSet()
	cfg, err := load([]string{
		"--source-bucket=src", "--source-key=k",
		"--dest-bucket=dst", "--dest-key=k",
		"--storage-class=GLACIER", "--no-storage-class",
	})
	require.NoError(t, err)
	assert.Empty(t, cfg.GatewayOptions().StorageClass)
}
