package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3xcopy/internal/config"
	"github.com/3leaps/s3xcopy/internal/observability"
	"github.com/3leaps/s3xcopy/pkg/estimate"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/gateway/s3gw"
	"github.com/3leaps/s3xcopy/pkg/orchestrate"
	"github.com/3leaps/s3xcopy/pkg/plan"
	"github.com/3leaps/s3xcopy/pkg/pricing"
	"github.com/3leaps/s3xcopy/pkg/progress"
	"github.com/3leaps/s3xcopy/pkg/verify"
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy a single object between S3 locations",
	Long:  "copy is the default action: given --source-bucket/--source-key and --dest-bucket/--dest-key, it resolves the cheapest applicable strategy (skip, tag-only, property-copy, single-shot, or adaptive multipart) and executes it.",
	RunE:  runCopy,
}

func init() {
	rootCmd.AddCommand(copyCmd)
}

func runCopy(c *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.GetPrice {
		return runPriceWithConfig(cfg)
	}

	ctx, stop := orchestrate.WithCancellation(c.Context())
	defer stop()

	gw, err := newGateway(ctx, cfg)
	if err != nil {
		return exitError(ExitInternal, "failed to construct S3 gateway", err)
	}
	retrying := gateway.WithRetry(gw, gateway.DefaultRetryConfig())

	src := gateway.ObjectRef{Bucket: cfg.SourceBucket, Key: cfg.SourceKey}
	dst := gateway.ObjectRef{Bucket: cfg.DestBucket, Key: cfg.DestKey}

	if cfg.Estimate {
		return runEstimate(ctx, retrying, cfg, src)
	}

	verifyMode, err := verify.ParseMode(cfg.VerifyIntegrity)
	if err != nil {
		return exitError(ExitUserError, "invalid --verify-integrity", err)
	}
	profile, err := plan.ParseProfile(cfg.AutoProfile)
	if err != nil {
		return exitError(ExitUserError, "invalid --auto-profile", err)
	}

	jobID := uuid.New().String()
	var obs = progress.NewJSONLObserver(os.Stdout, jobID, 20)
	if cfg.Quiet {
		obs = progress.NewJSONLObserver(discardWriter{}, jobID, 0)
	}

	o := &orchestrate.Orchestrator{GW: retrying, PartGW: gw}
	req := orchestrate.Request{
		Src: src, Dst: dst,
		Flags:              cfg.DecideFlags(),
		Options:            cfg.GatewayOptions(),
		Auto:               cfg.Auto,
		Profile:            profile,
		ConcurrencyCap:     cfg.Concurrency,
		PartSizeBytes:      cfg.PartSizeBytes(),
		DestRegionOverride: cfg.DestRegion,
		VerifyMode:         verifyMode,
		DryRun:             cfg.DryRun,
		Observer:           obs,
	}

	res, err := o.Run(ctx, req)
	if err != nil {
		return classifyRunError(err)
	}

	printResult(cfg, res)

	if res.Verify != nil && !res.Verify.Passed {
		return exitError(ExitVerificationFailed, "verification failed: "+res.Verify.Reason, nil)
	}
	return nil
}

func runEstimate(ctx context.Context, gw gateway.Gateway, cfg *config.Config, src gateway.ObjectRef) error {
	attrsOut, err := gw.Head(ctx, src)
	if err != nil {
		return classifyRunError(err)
	}
	sourceRegion := cfg.Region
	if sourceRegion == "" {
		sourceRegion, _ = gw.HeadBucketRegion(ctx, src.Bucket)
	}
	destRegion := cfg.DestRegion
	if destRegion == "" {
		destRegion = sourceRegion
	}

	profile, err := plan.ParseProfile(cfg.AutoProfile)
	if err != nil {
		return exitError(ExitUserError, "invalid --auto-profile", err)
	}
	verifyMode, err := verify.ParseMode(cfg.VerifyIntegrity)
	if err != nil {
		return exitError(ExitUserError, "invalid --verify-integrity", err)
	}

	table, err := loadPricingTable(cfg)
	if err != nil {
		return exitError(ExitUserError, "failed to load pricing table", err)
	}

	e, err := estimate.Run(attrsOut.Size, estimate.Options{
		SourceRegion:       sourceRegion,
		DestRegion:         destRegion,
		Profile:            profile,
		UserConcurrencyCap: cfg.Concurrency,
		StorageClass:       cfg.StorageClass,
		Auto:               cfg.Auto,
		PartSizeOverride:   cfg.PartSizeBytes(),
		VerifyEnabled:      verifyMode != verify.ModeOff,
	}, table)
	if err != nil {
		return exitError(ExitInternal, "estimate failed", err)
	}

	fmt.Print(estimate.Render(e))
	return nil
}

func loadPricingTable(cfg *config.Config) (*pricing.Table, error) {
	if cfg.GetPrice || cfg.Estimate {
		if p := os.Getenv("S3XFER_PRICING_FILE"); p != "" {
			return pricing.Load(p)
		}
	}
	return pricing.Default()
}

func newGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, error) {
	return s3gw.New(ctx, s3gw.Config{
		Region:         cfg.Region,
		Endpoint:       cfg.Endpoint,
		Profile:        cfg.AWSProfile,
		ForcePathStyle: cfg.ForcePathStyle || cfg.Endpoint != "",
	})
}

func classifyRunError(err error) error {
	switch {
	case gateway.IsAccessDenied(err) || gateway.IsInvalidCredentials(err):
		return exitError(ExitAccessDenied, "access denied", err)
	case errors.Is(err, orchestrate.ErrSourceMissing) || gateway.IsNotFound(err):
		return exitError(ExitSourceMissing, "source object missing", err)
	case gateway.IsCancelled(err):
		return exitError(ExitTransferFailed, "transfer cancelled", err)
	case gateway.IsInvalidPlan(err):
		return exitError(ExitUserError, "invalid transfer plan", err)
	case gateway.IsTransient(err) || gateway.IsSlowDown(err) || gateway.IsProtocolViolation(err):
		return exitError(ExitTransferFailed, "transfer failed", err)
	default:
		return exitError(ExitInternal, "unexpected error", err)
	}
}

func printResult(cfg *config.Config, res *orchestrate.Result) {
	if cfg.Quiet {
		return
	}
	if res.DryRun {
		fmt.Printf("dry-run: decision=%s strategy=%s (no mutation)\n", res.Decision, res.Strategy)
		return
	}
	fmt.Printf("decision=%s strategy=%s\n", res.Decision, res.Strategy)
	if res.Verify != nil {
		fmt.Printf("verify: mode=%s passed=%v\n", res.Verify.Mode, res.Verify.Passed)
	}
	observability.CLILogger.Debug("copy complete", zap.String("decision", string(res.Decision)), zap.String("strategy", string(res.Strategy)))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
