// Package pricing implements the external pricing-record collaborator of
// spec §6.3: a mapping from (region, rate-kind) to cents, backed by a
// compiled-in default table with an optional user-supplied override file.
// Grounded in the teacher's pkg/manifest dual-format (YAML/JSON) loader
// (pkg/manifest/loader.go), simplified to this package's flatter shape.
package pricing

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.json
var defaultTableJSON []byte

// RegionRates holds every rate kind of spec §6.3 for a single region.
type RegionRates struct {
	PutCopyRequestPer1000Cents float64            `json:"put_copy_request_per_1000_cents" yaml:"put_copy_request_per_1000_cents"`
	GetHeadRequestPer1000Cents float64            `json:"get_head_request_per_1000_cents" yaml:"get_head_request_per_1000_cents"`
	DataOutPerGiBCents         map[string]float64 `json:"data_out_per_gib_cents" yaml:"data_out_per_gib_cents"`
	StoragePerGiBMonthCents    map[string]float64 `json:"storage_per_gib_month_cents" yaml:"storage_per_gib_month_cents"`
}

// Table is a full pricing record: rates for every known region.
type Table struct {
	Regions map[string]RegionRates `json:"regions" yaml:"regions"`
}

// ErrRegionUnknown indicates the table has no entry for a requested region.
type ErrRegionUnknown struct{ Region string }

func (e *ErrRegionUnknown) Error() string { return fmt.Sprintf("pricing: no rates for region %q", e.Region) }

// Default returns the compiled-in default pricing table.
func Default() (*Table, error) {
	return parseJSON(defaultTableJSON)
}

// Load reads a pricing table from path, overriding the default. Format is
// determined by extension (.yaml/.yml or .json); an unrecognized extension
// tries YAML first, then JSON, mirroring the teacher's manifest loader.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pricing file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}
	return parse(data, path)
}

func parse(data []byte, path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		if t, err := parseYAML(data); err == nil {
			return t, nil
		}
		t, err := parseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pricing table (tried YAML and JSON): %w", err)
		}
		return t, nil
	}
}

func parseJSON(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid JSON in pricing table: %w", err)
	}
	return &t, nil
}

func parseYAML(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid YAML in pricing table: %w", err)
	}
	return &t, nil
}

func (t *Table) rates(region string) (RegionRates, error) {
	r, ok := t.Regions[region]
	if !ok {
		return RegionRates{}, &ErrRegionUnknown{Region: region}
	}
	return r, nil
}

// PutCopyRequestRate returns cents per 1000 put/copy requests in region.
func (t *Table) PutCopyRequestRate(region string) (float64, error) {
	r, err := t.rates(region)
	if err != nil {
		return 0, err
	}
	return r.PutCopyRequestPer1000Cents, nil
}

// GetHeadRequestRate returns cents per 1000 get/head requests in region.
func (t *Table) GetHeadRequestRate(region string) (float64, error) {
	r, err := t.rates(region)
	if err != nil {
		return 0, err
	}
	return r.GetHeadRequestPer1000Cents, nil
}

// DataOutRate returns cents per GiB transferred out of region to toRegion.
// Falls back to the region's "*" entry when a specific pair is unlisted.
func (t *Table) DataOutRate(region, toRegion string) (float64, error) {
	r, err := t.rates(region)
	if err != nil {
		return 0, err
	}
	if v, ok := r.DataOutPerGiBCents[toRegion]; ok {
		return v, nil
	}
	if v, ok := r.DataOutPerGiBCents["*"]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("pricing: no data-out rate for %s -> %s", region, toRegion)
}

// StorageRate returns cents per GiB-month for storageClass in region.
func (t *Table) StorageRate(region, storageClass string) (float64, error) {
	r, err := t.rates(region)
	if err != nil {
		return 0, err
	}
	if storageClass == "" {
		storageClass = "STANDARD"
	}
	v, ok := r.StoragePerGiBMonthCents[storageClass]
	if !ok {
		return 0, fmt.Errorf("pricing: no storage rate for class %q in %s", storageClass, region)
	}
	return v, nil
}
