// Package config binds the CLI's flags and environment overrides into a
// single Config, a CLI-shaped sibling of the teacher's server-shaped
// internal/config: the teacher binds a long-running server's listener,
// timeouts, and metrics ports; this package binds one copy invocation's
// source/destination coordinates and transfer options, with the same
// viper-backed precedence order (flags > env > defaults).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/3leaps/s3xcopy/pkg/decide"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/plan"
	"github.com/3leaps/s3xcopy/pkg/verify"
)

// EnvPrefix is prepended to every bound flag name to form its environment
// variable, following the teacher's GONIMBUS_-prefix convention
// (uppercased, dashes to underscores: --dest-region -> S3XFER_DEST_REGION).
const EnvPrefix = "S3XFER"

// Config is the fully-resolved set of options for one copy or price
// invocation, after flag/env/default precedence has been applied.
type Config struct {
	SourceBucket string
	SourceKey    string
	DestBucket   string
	DestKey      string

	Region     string
	DestRegion string

	PartSizeMiB       int64
	Concurrency       int
	Auto              bool
	AutoProfile       string
	StorageClass      string
	NoMetadata        bool
	NoTags            bool
	NoStorageClass    bool
	FullControl       bool
	NoACL             bool
	SSE               string
	SSEKMSKeyID       string
	ChecksumAlgorithm string
	VerifyIntegrity   string
	ForceCopy         bool
	DryRun            bool
	Estimate          bool
	GetPrice          bool
	Quiet             bool
	Verbose           bool

	// Endpoint/Profile/ForcePathStyle support S3-compatible stores and
	// non-default credential profiles; unexposed by the primary CLI table
	// in spec §6.1 but required for pkg/gateway/s3gw.Config construction.
	Endpoint       string
	AWSProfile     string
	ForcePathStyle bool
}

// BindFlags registers every CLI flag onto fs and binds it into v with the
// EnvPrefix environment override, matching the teacher's
// viper.BindPFlag-per-flag pattern.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.String("source-bucket", "", "source bucket name")
	fs.String("source-key", "", "source object key")
	fs.String("dest-bucket", "", "destination bucket name")
	fs.String("dest-key", "", "destination object key")
	fs.String("region", "", "default region for source and destination")
	fs.String("dest-region", "", "destination region override")
	fs.Int64("part-size", 0, "part size override in MiB (5-5120); ignored with --auto")
	fs.Int("concurrency", 0, "upper bound on in-flight parts (1-1000)")
	fs.Bool("auto", false, "enable the auto planner")
	fs.String("auto-profile", string(plan.ProfileBalanced), "balanced|aggressive|conservative|cost-efficient")
	fs.String("storage-class", "", "target storage class; empty inherits source")
	fs.Bool("no-metadata", false, "skip user-metadata replication")
	fs.Bool("no-tags", false, "skip tag-set replication")
	fs.Bool("no-storage-class", false, "use destination default storage class")
	fs.Bool("full-control", false, "apply bucket-owner-full-control ACL")
	fs.Bool("no-acl", false, "suppress ACL application")
	fs.String("sse", "", "AES256 or aws:kms")
	fs.String("sse-kms-key-id", "", "required when --sse aws:kms")
	fs.String("checksum-algorithm", "", "CRC32|CRC32C|SHA1|SHA256")
	fs.String("verify-integrity", string(verify.ModeETag), "off|etag|checksum")
	fs.Bool("force-copy", false, "disable the shortcut decider")
	fs.Bool("dry-run", false, "plan and print, do not mutate destination")
	fs.Bool("estimate", false, "run the cost estimator and exit; do not mutate")
	fs.Bool("get-price", false, "print pricing for region and storage class, then exit")
	fs.Bool("quiet", false, "suppress non-essential output")
	fs.Bool("verbose", false, "enable debug logging")
	fs.String("endpoint", "", "custom S3-compatible endpoint URL")
	fs.String("aws-profile", "", "AWS shared-config profile")
	fs.Bool("force-path-style", false, "force path-style bucket addressing")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// New builds a Viper instance that reads EnvPrefix-prefixed environment
// variables, dashes mapped to underscores, matching the teacher's
// getEnvSpecs env-var naming.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves a Config from v after BindFlags has registered the flag
// set and pflag.Parse (or cobra's execution) has run.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		SourceBucket:      v.GetString("source-bucket"),
		SourceKey:         v.GetString("source-key"),
		DestBucket:        v.GetString("dest-bucket"),
		DestKey:           v.GetString("dest-key"),
		Region:            v.GetString("region"),
		DestRegion:        v.GetString("dest-region"),
		PartSizeMiB:       v.GetInt64("part-size"),
		Concurrency:       v.GetInt("concurrency"),
		Auto:              v.GetBool("auto"),
		AutoProfile:       v.GetString("auto-profile"),
		StorageClass:      v.GetString("storage-class"),
		NoMetadata:        v.GetBool("no-metadata"),
		NoTags:            v.GetBool("no-tags"),
		NoStorageClass:    v.GetBool("no-storage-class"),
		FullControl:       v.GetBool("full-control"),
		NoACL:             v.GetBool("no-acl"),
		SSE:               v.GetString("sse"),
		SSEKMSKeyID:       v.GetString("sse-kms-key-id"),
		ChecksumAlgorithm: v.GetString("checksum-algorithm"),
		VerifyIntegrity:   v.GetString("verify-integrity"),
		ForceCopy:         v.GetBool("force-copy"),
		DryRun:            v.GetBool("dry-run"),
		Estimate:          v.GetBool("estimate"),
		GetPrice:          v.GetBool("get-price"),
		Quiet:             v.GetBool("quiet"),
		Verbose:           v.GetBool("verbose"),
		Endpoint:          v.GetString("endpoint"),
		AWSProfile:        v.GetString("aws-profile"),
		ForcePathStyle:    v.GetBool("force-path-style"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that a single flag can't
// express, matching spec §9's directive to flag --full-control/--no-acl
// conflicts at CLI parse rather than guess a precedence.
func (c *Config) Validate() error {
	if !c.GetPrice {
		if c.SourceBucket == "" || c.SourceKey == "" || c.DestBucket == "" || c.DestKey == "" {
			return fmt.Errorf("--source-bucket, --source-key, --dest-bucket, and --dest-key are required")
		}
	}
	if c.FullControl && c.NoACL {
		return fmt.Errorf("--full-control and --no-acl are mutually exclusive")
	}
	if c.SSE == "aws:kms" && c.SSEKMSKeyID == "" {
		return fmt.Errorf("--sse-kms-key-id is required when --sse aws:kms")
	}
	if c.SSE != "" && c.SSE != "AES256" && c.SSE != "aws:kms" {
		return fmt.Errorf("--sse must be AES256 or aws:kms, got %q", c.SSE)
	}
	if _, err := plan.ParseProfile(c.AutoProfile); err != nil {
		return err
	}
	if _, err := verify.ParseMode(c.VerifyIntegrity); err != nil {
		return err
	}
	if c.PartSizeMiB != 0 {
		minMiB, maxMiB := plan.MinPartSize>>20, plan.MaxPartSize>>20
		if c.PartSizeMiB < minMiB || c.PartSizeMiB > maxMiB {
			return fmt.Errorf("--part-size must be between %d and %d MiB, got %d", minMiB, maxMiB, c.PartSizeMiB)
		}
	}
	if c.Concurrency != 0 && (c.Concurrency < 1 || c.Concurrency > plan.DefaultUserCap) {
		return fmt.Errorf("--concurrency must be between 1 and %d, got %d", plan.DefaultUserCap, c.Concurrency)
	}
	return nil
}

// GatewayOptions translates the copy-affecting flags into a
// gateway.Options for CopySingle/CreateMultipart calls.
func (c *Config) GatewayOptions() gateway.Options {
	opts := gateway.Options{
		SSE:               c.SSE,
		SSEKMSKeyID:       c.SSEKMSKeyID,
		ChecksumAlgorithm: c.ChecksumAlgorithm,
		FullControlACL:    c.FullControl,
	}
	if !c.NoStorageClass {
		opts.StorageClass = c.StorageClass
	}
	if !c.NoMetadata {
		opts.MetadataDirective = "REPLACE"
	}
	return opts
}

// DecideFlags translates the shortcut-relevant flags into decide.Flags.
func (c *Config) DecideFlags() decide.Flags {
	return decide.Flags{
		ForceCopy:      c.ForceCopy,
		NoTags:         c.NoTags,
		NoMetadata:     c.NoMetadata,
		ReplicateClass: !c.NoStorageClass,
	}
}

// PartSizeBytes converts the MiB-denominated --part-size flag to bytes.
func (c *Config) PartSizeBytes() int64 {
	return c.PartSizeMiB << 20
}
