package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

func TestConverterRGB24Passthrough(t *testing.T) {
	t.Parallel()
	plane := []byte{1, 2, 3, 4, 5, 6, 0, 0}
	frame := &media.Frame{
		Width:   2,
		Height:  1,
		Format:  media.PixFmtRGB24,
		Planes:  [][]byte{plane},
		Strides: []int{8},
	}

	pix, stride, err := NewConverter().ToRGB24(frame)
	require.NoError(t, err)
	assert.Equal(t, 8, stride)
	assert.Equal(t, plane, pix)
}

func TestConverterYUV420Neutral(t *testing.T) {
	t.Parallel()
	// 中間色(Cb=Cr=128)ならR=G=B=Y
	frame := &media.Frame{
		Width:  2,
		Height: 2,
		Format: media.PixFmtYUV420P,
		Planes: [][]byte{
			{0, 255, 128, 64},
			{128},
			{128},
		},
		Strides: []int{2, 1, 1},
	}

	pix, stride, err := NewConverter().ToRGB24(frame)
	require.NoError(t, err)
	assert.Equal(t, 6, stride)
	assert.Equal(t, []byte{
		0, 0, 0, 255, 255, 255,
		128, 128, 128, 64, 64, 64,
	}, pix)
}

func TestConverterYUV444WithPadding(t *testing.T) {
	t.Parallel()
	frame := &media.Frame{
		Width:  1,
		Height: 2,
		Format: media.PixFmtYUV444P,
		Planes: [][]byte{
			{200, 9, 9, 9, 50},
			{128, 9, 9, 9, 128},
			{128, 9, 9, 9, 128},
		},
		Strides: []int{4, 4, 4},
	}

	pix, stride, err := NewConverter().ToRGB24(frame)
	require.NoError(t, err)
	assert.Equal(t, 3, stride)
	assert.Equal(t, []byte{200, 200, 200, 50, 50, 50}, pix)
}

func TestConverterGray(t *testing.T) {
	t.Parallel()
	frame := &media.Frame{
		Width:   3,
		Height:  1,
		Format:  media.PixFmtGray8,
		Planes:  [][]byte{{0, 77, 255}},
		Strides: []int{3},
	}

	pix, _, err := NewConverter().ToRGB24(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 77, 77, 77, 255, 255, 255}, pix)
}

func TestConverterUnsupportedFormat(t *testing.T) {
	t.Parallel()
	c := NewConverter()
	assert.False(t, c.Supports(media.PixFmtUnknown))

	_, _, err := c.ToRGB24(&media.Frame{Width: 1, Height: 1, Format: media.PixFmtUnknown})
	assert.ErrorIs(t, err, media.ErrConversion)
}

func TestConverterIncompletePlanes(t *testing.T) {
	t.Parallel()
	frame := &media.Frame{
		Width:   2,
		Height:  2,
		Format:  media.PixFmtYUV420P,
		Planes:  [][]byte{{0, 0, 0, 0}},
		Strides: []int{2},
	}

	_, _, err := NewConverter().ToRGB24(frame)
	assert.ErrorIs(t, err, media.ErrConversion)
}
