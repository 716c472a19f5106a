package internal

import (
	"fmt"

	"github.com/disintegration/imaging"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// Converter はデコード済みフレームをパック形式RGB24へ変換する
// 変換元/変換先のフォーマットはグローバルではなくこの構造体が保持する
type Converter struct {
	dst     media.PixelFormat
	formats map[media.PixelFormat]bool
}

// NewConverter returns a converter to packed 8-bit RGB.
func NewConverter() *Converter {
	return &Converter{
		dst: media.PixFmtRGB24,
		formats: map[media.PixelFormat]bool{
			media.PixFmtYUV420P: true,
			media.PixFmtYUV422P: true,
			media.PixFmtYUV444P: true,
			media.PixFmtGray8:   true,
			media.PixFmtRGB24:   true,
		},
	}
}

// Supports reports whether frames of format src can be converted.
func (c *Converter) Supports(src media.PixelFormat) bool {
	return c.formats[src]
}

// ToRGB24 returns packed RGB pixels for frame and the stride of the result.
// Frames already in RGB24 are returned as-is.
func (c *Converter) ToRGB24(frame *media.Frame) ([]byte, int, error) {
	if !c.Supports(frame.Format) {
		return nil, 0, fmt.Errorf("%w: %s to %s", media.ErrConversion, frame.Format, c.dst)
	}
	if frame.Format == c.dst {
		if len(frame.Planes) == 0 || len(frame.Strides) == 0 {
			return nil, 0, fmt.Errorf("%w: %s frame has no planes", media.ErrConversion, frame.Format)
		}
		return frame.Planes[0], frame.Strides[0], nil
	}

	src, ok := frame.Image()
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s frame has incomplete planes", media.ErrConversion, frame.Format)
	}

	nrgba := imaging.Clone(src)
	stride := frame.Width * 3
	out := make([]byte, stride*frame.Height)
	for y := 0; y < frame.Height; y++ {
		in := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+frame.Width*4]
		row := out[y*stride : (y+1)*stride]
		for x := 0; x < frame.Width; x++ {
			row[x*3] = in[x*4]
			row[x*3+1] = in[x*4+1]
			row[x*3+2] = in[x*4+2]
		}
	}
	return out, stride, nil
}
