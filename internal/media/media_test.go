package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameImageYCbCr(t *testing.T) {
	t.Parallel()
	f := &Frame{
		Width:   4,
		Height:  2,
		Format:  PixFmtYUV420P,
		Planes:  [][]byte{make([]byte, 16), {1, 2, 0, 0}, {3, 4, 0, 0}},
		Strides: []int{8, 4, 4},
	}

	img, ok := f.Image()
	require.True(t, ok)
	ycc, ok := img.(*image.YCbCr)
	require.True(t, ok)
	assert.Equal(t, image.YCbCrSubsampleRatio420, ycc.SubsampleRatio)
	assert.Equal(t, 8, ycc.YStride)
	assert.Equal(t, 4, ycc.CStride)
	assert.Equal(t, image.Rect(0, 0, 4, 2), ycc.Bounds())
}

func TestFrameImageGray(t *testing.T) {
	t.Parallel()
	f := &Frame{Width: 2, Height: 1, Format: PixFmtGray8, Planes: [][]byte{{7, 8}}, Strides: []int{2}}
	img, ok := f.Image()
	require.True(t, ok)
	assert.IsType(t, &image.Gray{}, img)
}

func TestFrameImageUnsupported(t *testing.T) {
	t.Parallel()
	_, ok := (&Frame{Width: 1, Height: 1, Format: PixFmtRGB24, Planes: [][]byte{{1, 2, 3}}, Strides: []int{3}}).Image()
	assert.False(t, ok)

	_, ok = (&Frame{Width: 1, Height: 1, Format: PixFmtYUV444P, Planes: [][]byte{{1}}, Strides: []int{1}}).Image()
	assert.False(t, ok)
}

func TestPixelFormat(t *testing.T) {
	t.Parallel()
	assert.True(t, PixFmtYUV422P.IsPlanarYUV())
	assert.False(t, PixFmtRGB24.IsPlanarYUV())
	assert.False(t, PixFmtGray8.IsPlanarYUV())
	assert.Equal(t, "yuv444p", PixFmtYUV444P.String())
	assert.Equal(t, "unknown", PixelFormat(99).String())
}

func TestDecodeError(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("extract: %w", &DecodeError{FrameNumber: 3, Err: io.ErrUnexpectedEOF})

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, 3, decErr.FrameNumber)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "extract: decode failed at frame 3: unexpected EOF", err.Error())
}

func TestKindAndRationalString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "video", KindVideo.String())
	assert.Equal(t, "audio", KindAudio.String())
	assert.Equal(t, "other", KindOther.String())
	assert.Equal(t, "1/90000", Rational{Num: 1, Den: 90000}.String())
}
