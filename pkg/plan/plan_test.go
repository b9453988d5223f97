package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuto_SingleShotBelowThreshold(t *testing.T) {
	p, err := Auto(4<<30, true, ProfileBalanced, 0)
	require.NoError(t, err)
	assert.Equal(t, StrategySingleShot, p.Strategy)
	assert.Zero(t, p.PartSizeBytes)
}

func TestAuto_S2_BalancedHundredGiB(t *testing.T) {
	// S2: size = 100 GiB, same region, auto, balanced.
	size := int64(100) << 30
	p, err := Auto(size, true, ProfileBalanced, 0)
	require.NoError(t, err)
	require.Equal(t, StrategyMultipart, p.Strategy)
	assert.Equal(t, int64(256)<<20, p.PartSizeBytes)

	parts := ceilDiv(size, p.PartSizeBytes)
	assert.Equal(t, 400, parts)
	assert.LessOrEqual(t, parts, MaxParts)
}

func TestAuto_S3_CostEfficientCrossRegionEightTiB(t *testing.T) {
	// S3: size = 8 TiB, cross region, cost-efficient -> part size clamps to
	// the 5 GiB cap and part count invariant 2 still holds.
	size := int64(8) << 40
	p, err := Auto(size, false, ProfileCostEfficient, 0)
	require.NoError(t, err)
	require.Equal(t, StrategyMultipart, p.Strategy)
	assert.Equal(t, MaxPartSize, p.PartSizeBytes)

	parts := ceilDiv(size, p.PartSizeBytes)
	assert.Equal(t, 1639, parts)
	assert.LessOrEqual(t, parts, MaxParts)
}

func TestApplyCostFloor_Idempotent(t *testing.T) {
	p, err := Auto(500<<30, true, ProfileAggressive, 0)
	require.NoError(t, err)

	once := *p
	ApplyCostFloor(p)
	assert.Equal(t, once, *p, "applying the floor twice must be a no-op")
}

func TestApplyCostFloor_NeverExceedsMaxParts(t *testing.T) {
	sizes := []int64{1 << 30, 50 << 30, 1 << 40, 8 << 40, 20 << 40}
	for _, profile := range []Profile{ProfileAggressive, ProfileBalanced, ProfileConservative, ProfileCostEfficient} {
		for _, size := range sizes {
			for _, sameRegion := range []bool{true, false} {
				p, err := Auto(size, sameRegion, profile, 0)
				require.NoError(t, err)
				if p.Strategy != StrategyMultipart {
					continue
				}
				parts := ceilDiv(p.Size, p.PartSizeBytes)
				assert.LessOrEqualf(t, parts, MaxParts, "profile=%s size=%d sameRegion=%v", profile, size, sameRegion)
				assert.GreaterOrEqual(t, p.PartSizeBytes, MinPartSize)
				assert.LessOrEqual(t, p.PartSizeBytes, MaxPartSize)
			}
		}
	}
}

func TestPlannerMonotonicity(t *testing.T) {
	// Property 5: for fixed profile/region, part_size is non-decreasing in
	// size once size > 5 GiB.
	for _, profile := range []Profile{ProfileAggressive, ProfileBalanced, ProfileConservative, ProfileCostEfficient} {
		var prev int64
		for _, size := range []int64{6 << 30, 50 << 30, 200 << 30, 1 << 40, 5 << 40, 20 << 40} {
			p, err := Auto(size, true, profile, 0)
			require.NoError(t, err)
			require.Equal(t, StrategyMultipart, p.Strategy)
			assert.GreaterOrEqualf(t, p.PartSizeBytes, prev, "profile=%s size=%d", profile, size)
			prev = p.PartSizeBytes
		}
	}
}

func TestConcurrencyCapRespected(t *testing.T) {
	p, err := Auto(200<<30, true, ProfileAggressive, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.InitialConcurrency, 10)
	assert.LessOrEqual(t, p.MaxConcurrency, 10)
	assert.LessOrEqual(t, p.InitialConcurrency, p.MaxConcurrency)
}

func TestCrossRegionDoublesInitialConcurrency(t *testing.T) {
	same, err := Auto(200<<30, true, ProfileBalanced, 0)
	require.NoError(t, err)
	cross, err := Auto(200<<30, false, ProfileBalanced, 0)
	require.NoError(t, err)
	assert.Greater(t, cross.InitialConcurrency, same.InitialConcurrency)
}

func TestParsProfile(t *testing.T) {
	p, err := ParseProfile("")
	require.NoError(t, err)
	assert.Equal(t, ProfileBalanced, p)

	_, err = ParseProfile("nonsense")
	assert.Error(t, err)
}

func TestLayout_TotalityAndOrdering(t *testing.T) {
	sizes := []int64{1, 5 << 20, 257 << 20, 10<<30 + 17}
	for _, size := range sizes {
		specs, err := Layout(size, 256<<20)
		require.NoError(t, err)

		var total int64
		for i, s := range specs {
			total += s.Len()
			assert.Equal(t, int32(i+1), s.PartNumber)
			if i < len(specs)-1 {
				assert.GreaterOrEqual(t, s.Len(), MinPartSize)
			}
			assert.Greater(t, s.Len(), int64(0))
		}
		assert.Equal(t, size, total)
		assert.LessOrEqual(t, len(specs), MaxParts)
	}
}

func TestLayoutFrom_ContinuesNumbering(t *testing.T) {
	size := int64(100) << 20
	completed := int64(40) << 20
	specs, err := LayoutFrom(completed, size, 10<<20, 5)
	require.NoError(t, err)
	require.NotEmpty(t, specs)
	assert.Equal(t, int32(5), specs[0].PartNumber)
	assert.Equal(t, completed, specs[0].Start)

	var total int64
	for _, s := range specs {
		total += s.Len()
	}
	assert.Equal(t, size-completed, total)
}
