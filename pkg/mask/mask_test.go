package mask

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacific-earth/fcover/pkg/raster"
)

const nodata uint8 = 255

func maskDataset(t *testing.T, w, h int, water []uint8, fc map[string][]uint8) *raster.Dataset[uint8] {
	t.Helper()

	box := raster.GeoBox{
		SRID:      3832,
		Transform: raster.Affine{XOrigin: 0, YOrigin: 0, XRes: 30, YRes: -30},
		Width:     w,
		Height:    h,
	}

	ds := raster.New[uint8](box, []time.Time{time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)})

	for name, data := range fc {
		require.NoError(t, ds.AddBand(name, &raster.Band[uint8]{Data: data, Nodata: nodata}))
	}
	require.NoError(t, ds.AddBand("water", &raster.Band[uint8]{Data: water, Nodata: nodata}))

	return ds
}

func TestClearDryIsValid(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	ds := maskDataset(t, 2, 1,
		[]uint8{0, 0},
		map[string][]uint8{"bs": {40, 60}})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 1}, ds.Band("valid").Data)
	assert.Equal(t, []uint8{0, 0}, ds.Band("wet").Data)
	assert.Equal(t, []uint8{40, 60}, ds.Band("bs").Data, "valid pixels keep their values")
}

func TestClearWetIsWetNotValid(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	ds := maskDataset(t, 2, 1,
		[]uint8{ClearWet, 0},
		map[string][]uint8{"bs": {40, 60}})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 1}, ds.Band("valid").Data)
	assert.Equal(t, []uint8{1, 0}, ds.Band("wet").Data)
	assert.Equal(t, []uint8{nodata, 60}, ds.Band("bs").Data, "wet pixels are masked out")
}

func TestTerrainSlopeIsDiscounted(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	ds := maskDataset(t, 2, 1,
		[]uint8{BitTerrainSlope, BitTerrainSlope | ClearWet},
		map[string][]uint8{"bs": {40, 60}})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 0}, ds.Band("valid").Data, "slope alone does not invalidate")
	assert.Equal(t, []uint8{0, 1}, ds.Band("wet").Data, "slope plus wet is still wet")
}

func TestCloudInvalidates(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	ds := maskDataset(t, 3, 1,
		[]uint8{BitCloud, BitCloudShadow, 0},
		map[string][]uint8{"bs": {40, 50, 60}})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 0, 1}, ds.Band("valid").Data)
	assert.Equal(t, []uint8{nodata, nodata, 60}, ds.Band("bs").Data)
}

func TestCloudDilationReachesNeighbours(t *testing.T) {
	c := &Classifier{
		CloudFilters: map[string]int{"cloud": 2},
		Nodata:       nodata,
	}

	// one cloudy pixel in the middle of a clear 7x1 strip
	water := []uint8{0, 0, 0, BitCloud, 0, 0, 0}
	bs := []uint8{10, 10, 10, 10, 10, 10, 10}

	ds := maskDataset(t, 7, 1, water, map[string][]uint8{"bs": bs})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 0, 0, 0, 0, 0, 1}, ds.Band("valid").Data,
		"dilation knocks out two pixels either side")
	assert.Equal(t, []uint8{10, nodata, nodata, nodata, nodata, nodata, 10}, ds.Band("bs").Data)
}

func TestUnconfiguredLabelIsNotDilated(t *testing.T) {
	c := &Classifier{
		CloudFilters: map[string]int{"cloud": 2},
		Nodata:       nodata,
	}

	water := []uint8{0, 0, BitCloudShadow, 0, 0}
	bs := []uint8{10, 10, 10, 10, 10}

	ds := maskDataset(t, 5, 1, water, map[string][]uint8{"bs": bs})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 1, 0, 1, 1}, ds.Band("valid").Data,
		"shadow still invalidates its own pixel, but does not grow")
}

func TestUeThreshold(t *testing.T) {
	ue := uint8(30)
	c := &Classifier{UeThreshold: &ue, Nodata: nodata}

	ds := maskDataset(t, 3, 1,
		[]uint8{0, 0, 0},
		map[string][]uint8{
			"bs": {40, 50, 60},
			"ue": {29, 30, 31},
		})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 0, 0}, ds.Band("valid").Data, "threshold is exclusive")
	assert.False(t, ds.HasBand("ue"), "ue is consumed")
}

func TestUeThresholdWithoutBand(t *testing.T) {
	ue := uint8(30)
	c := &Classifier{UeThreshold: &ue, Nodata: nodata}

	ds := maskDataset(t, 1, 1, []uint8{0}, map[string][]uint8{"bs": {40}})

	_, err := c.NativeTransform(context.Background(), ds)
	assert.Error(t, err)
}

func TestClipRangeLeavesNodataAlone(t *testing.T) {
	clip := [2]uint8{0, 100}
	c := &Classifier{ClipRange: &clip, Nodata: nodata}

	ds := maskDataset(t, 3, 1,
		[]uint8{0, 0, 0},
		map[string][]uint8{"bs": {101, 100, nodata}})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{100, 100, nodata}, ds.Band("bs").Data,
		"the sentinel is a fixed point of the clip")
}

func TestMaxSumLimit(t *testing.T) {
	limit := 120
	c := &Classifier{MaxSumLimit: &limit, Nodata: nodata}

	ds := maskDataset(t, 3, 1,
		[]uint8{0, 0, 0},
		map[string][]uint8{
			"bs":  {40, 60, nodata},
			"pv":  {40, 60, 10},
			"npv": {39, 60, 10},
		})

	_, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []uint8{1, 0, 1}, ds.Band("valid").Data,
		"sum 119 passes, 180 fails, NODATA never poisons the sum")
}

func TestWaterBandRequired(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	box := raster.GeoBox{Width: 1, Height: 1, Transform: raster.Affine{XRes: 30, YRes: -30}}
	ds := raster.New[uint8](box, []time.Time{time.Now()})
	require.NoError(t, ds.AddBand("bs", &raster.Band[uint8]{Data: []uint8{1}}))

	_, err := c.NativeTransform(context.Background(), ds)
	assert.Error(t, err)
}

func TestMaskedBandsAfterTransform(t *testing.T) {
	c := &Classifier{Nodata: nodata}

	ds := maskDataset(t, 1, 1, []uint8{0}, map[string][]uint8{"bs": {40}})

	out, err := c.NativeTransform(context.Background(), ds)
	require.NoError(t, err)

	assert.Same(t, ds, out, "transform is in place")
	assert.Equal(t, []string{"bs", "wet", "valid"}, out.BandNames())
}
