package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3leaps/s3xcopy/internal/config"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Print pricing for a region and storage class, then exit",
	Long:  "price looks up the per-request, per-GiB-transfer, and per-GiB-month storage rates for --region (and --dest-region, for cross-region transfer pricing) without touching any object.",
	RunE:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runPriceWithConfig(cfg)
}

func runPriceWithConfig(cfg *config.Config) error {
	if cfg.Region == "" {
		return exitError(ExitUserError, "--region is required for pricing lookups", nil)
	}
	table, err := loadPricingTable(cfg)
	if err != nil {
		return exitError(ExitUserError, "failed to load pricing table", err)
	}

	destRegion := cfg.DestRegion
	if destRegion == "" {
		destRegion = cfg.Region
	}
	storageClass := cfg.StorageClass

	putRate, err := table.PutCopyRequestRate(cfg.Region)
	if err != nil {
		return exitError(ExitUserError, "unknown region", err)
	}
	getRate, err := table.GetHeadRequestRate(cfg.Region)
	if err != nil {
		return exitError(ExitUserError, "unknown region", err)
	}
	dataOutRate, err := table.DataOutRate(cfg.Region, destRegion)
	if err != nil {
		return exitError(ExitUserError, "unknown region", err)
	}
	storageRate, err := table.StorageRate(cfg.Region, storageClass)
	if err != nil {
		return exitError(ExitUserError, "unknown region or storage class", err)
	}

	if !cfg.Quiet {
		fmt.Printf("Region:                      %s\n", cfg.Region)
		fmt.Printf("Dest region:                 %s\n", destRegion)
		fmt.Printf("Storage class:               %s\n", displayStorageClass(storageClass))
		fmt.Printf("Put/copy request per 1000:   %.4f cents\n", putRate)
		fmt.Printf("Get/head request per 1000:   %.4f cents\n", getRate)
		fmt.Printf("Data out per GiB:            %.4f cents\n", dataOutRate)
		fmt.Printf("Storage per GiB-month:       %.4f cents\n", storageRate)
	}
	return nil
}

func displayStorageClass(s string) string {
	if s == "" {
		return "STANDARD"
	}
	return s
}
