package raster

import (
	"bytes"
	"fmt"
	"image"

	"golang.org/x/image/tiff"
)

// DecodeTIFF reads one single-band TIFF into a pixel slice. 8-bit sources
// are widened when T is uint16; 16-bit sources only fit a uint16 T.
func DecodeTIFF[T Pixel](data []byte, box GeoBox) ([]T, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}

	b := img.Bounds()
	if b.Dx() != box.Width || b.Dy() != box.Height {
		return nil, fmt.Errorf("tiff is %dx%d, grid is %dx%d", b.Dx(), b.Dy(), box.Width, box.Height)
	}

	out := make([]T, box.Pixels())

	switch im := img.(type) {
	case *image.Gray:
		for i, p := range im.Pix {
			out[i] = T(p)
		}
	case *image.Gray16:
		var zero T
		if _, narrow := any(zero).(uint8); narrow {
			return nil, fmt.Errorf("16-bit tiff cannot load into an 8-bit band")
		}

		for i := 0; i < len(im.Pix); i += 2 {
			out[i/2] = T(uint16(im.Pix[i])<<8 | uint16(im.Pix[i+1]))
		}
	default:
		return nil, fmt.Errorf("unsupported tiff sample format %T", img)
	}

	return out, nil
}
