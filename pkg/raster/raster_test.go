package raster

import (
	"bytes"
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func testBox(w, h int) GeoBox {
	return GeoBox{
		SRID: 3832,
		Transform: Affine{
			XOrigin: 1_000_000,
			YOrigin: -500_000,
			XRes:    30,
			YRes:    -30,
		},
		Width:  w,
		Height: h,
	}
}

func TestGeoBoxWorld(t *testing.T) {
	box := testBox(3200, 3200)

	x, y := box.World(0, 0)
	assert.Equal(t, 1_000_015.0, x, "pixel center, not corner")
	assert.Equal(t, -500_015.0, y)

	x, y = box.World(3199, 3199)
	assert.Equal(t, 1_000_000.0+3199.5*30, x)
	assert.Equal(t, -500_000.0-3199.5*30, y)
}

func TestGeoBoxBound(t *testing.T) {
	box := testBox(100, 200)
	b := box.Bound()

	assert.Equal(t, 1_000_000.0, b.Min[0])
	assert.Equal(t, 1_003_000.0, b.Max[0])
	assert.Equal(t, -506_000.0, b.Min[1])
	assert.Equal(t, -500_000.0, b.Max[1])
}

func TestProjTransform(t *testing.T) {
	box := testBox(10, 10)

	assert.Equal(t, [6]float64{30, 0, 1_000_000, 0, -30, -500_000}, box.ProjTransform())
}

func TestDatasetAddBand(t *testing.T) {
	box := testBox(4, 4)
	times := []time.Time{time.Now(), time.Now().Add(time.Hour)}
	ds := New[uint8](box, times)

	err := ds.AddBand("bs", &Band[uint8]{Data: make([]uint8, 2*16), Nodata: 255})
	require.NoError(t, err)

	err = ds.AddBand("pv", &Band[uint8]{Data: make([]uint8, 16), Nodata: 255})
	assert.Error(t, err, "band shorter than times*pixels")

	assert.Equal(t, []string{"bs"}, ds.BandNames())
	assert.True(t, ds.HasBand("bs"))
	assert.False(t, ds.HasBand("pv"))
}

func TestDatasetBandOrder(t *testing.T) {
	ds := New[uint8](testBox(2, 2), []time.Time{time.Now()})

	for _, name := range []string{"bs", "pv", "npv", "ue"} {
		require.NoError(t, ds.AddBand(name, &Band[uint8]{Data: make([]uint8, 4)}))
	}

	assert.Equal(t, []string{"bs", "pv", "npv", "ue"}, ds.BandNames())

	ds.DropBands("pv")
	assert.Equal(t, []string{"bs", "npv", "ue"}, ds.BandNames())

	ds.Rename("npv", "renamed")
	assert.Equal(t, []string{"bs", "renamed", "ue"}, ds.BandNames())
	assert.True(t, ds.HasBand("renamed"))
	assert.False(t, ds.HasBand("npv"))
}

func TestDatasetSlice(t *testing.T) {
	box := testBox(2, 2)
	ds := New[uint8](box, []time.Time{time.Now(), time.Now()})

	b := &Band[uint8]{Data: []uint8{1, 2, 3, 4, 5, 6, 7, 8}}
	require.NoError(t, ds.AddBand("x", b))

	assert.Equal(t, []uint8{1, 2, 3, 4}, ds.Slice(b, 0))
	assert.Equal(t, []uint8{5, 6, 7, 8}, ds.Slice(b, 1))

	// a slice is a view, not a copy
	ds.Slice(b, 1)[0] = 99
	assert.Equal(t, uint8(99), b.Data[4])
}

func TestEachSlice(t *testing.T) {
	ds := New[uint8](testBox(1, 1), make([]time.Time, 8))

	visited := make([]bool, 8)
	err := ds.EachSlice(context.Background(), 3, func(ti int) error {
		visited[ti] = true
		return nil
	})

	require.NoError(t, err)
	for ti, seen := range visited {
		assert.True(t, seen, "slice %d not visited", ti)
	}
}

func TestWindowsCoverGrid(t *testing.T) {
	box := testBox(100, 70)
	windows := Windows(box, Chunks{X: 32, Y: 32})

	covered := make([]int, box.Pixels())
	for _, w := range windows {
		for y := w.Y0; y < w.Y0+w.H; y++ {
			for x := w.X0; x < w.X0+w.W; x++ {
				covered[y*box.Width+x]++
			}
		}
	}

	for i, n := range covered {
		require.Equal(t, 1, n, "pixel %d covered %d times", i, n)
	}

	assert.Len(t, windows, 4*3)
}

func TestWindowsDefaultIsWholeGrid(t *testing.T) {
	box := testBox(50, 40)
	windows := Windows(box, Chunks{})

	require.Len(t, windows, 1)
	assert.Equal(t, Window{X0: 0, Y0: 0, W: 50, H: 40}, windows[0])
}

func encodeGray(t *testing.T, pix []uint8, w, h int) []byte {
	t.Helper()

	img := &image.Gray{Pix: pix, Stride: w, Rect: image.Rect(0, 0, w, h)}

	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))

	return buf.Bytes()
}

func encodeGray16(t *testing.T, pix []uint16, w, h int) []byte {
	t.Helper()

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range pix {
		img.Pix[2*i] = uint8(v >> 8)
		img.Pix[2*i+1] = uint8(v)
	}

	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))

	return buf.Bytes()
}

func TestDecodeTIFFGray(t *testing.T) {
	box := testBox(3, 2)
	src := []uint8{0, 50, 100, 150, 200, 255}

	out, err := DecodeTIFF[uint8](encodeGray(t, src, 3, 2), box)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestDecodeTIFFGray16(t *testing.T) {
	box := testBox(2, 2)
	src := []uint16{0, 7273, 14545, 65535}

	out, err := DecodeTIFF[uint16](encodeGray16(t, src, 2, 2), box)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestDecodeTIFFWrongShape(t *testing.T) {
	box := testBox(4, 4)

	_, err := DecodeTIFF[uint8](encodeGray(t, make([]uint8, 6), 3, 2), box)
	assert.Error(t, err)
}

func TestDecodeTIFFNarrowing(t *testing.T) {
	box := testBox(2, 2)

	_, err := DecodeTIFF[uint8](encodeGray16(t, make([]uint16, 4), 2, 2), box)
	assert.ErrorContains(t, err, "8-bit")
}
