package internal

import (
	"fmt"
	"strings"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

const rawVideoPrefix = "rawvideo/"

// RawVideoCodec はデコード済みピクセルをそのまま運ぶストリームのコーデックIDを返す
func RawVideoCodec(format media.PixelFormat) string {
	return rawVideoPrefix + format.String()
}

func parseRawVideoCodec(codec string) (media.PixelFormat, bool) {
	if !strings.HasPrefix(codec, rawVideoPrefix) {
		return media.PixFmtUnknown, false
	}
	switch strings.TrimPrefix(codec, rawVideoPrefix) {
	case "yuv420p":
		return media.PixFmtYUV420P, true
	case "yuv422p":
		return media.PixFmtYUV422P, true
	case "yuv444p":
		return media.PixFmtYUV444P, true
	case "gray":
		return media.PixFmtGray8, true
	case "rgb24":
		return media.PixFmtRGB24, true
	}
	return media.PixFmtUnknown, false
}

// planeLayout returns bytes-per-row and row count for every plane of a
// tightly packed image.
func planeLayout(format media.PixelFormat, width, height int) (rowBytes, rows []int) {
	chromaW, chromaH := width, height
	switch format {
	case media.PixFmtYUV420P:
		chromaW, chromaH = (width+1)/2, (height+1)/2
	case media.PixFmtYUV422P:
		chromaW = (width + 1) / 2
	}

	switch format {
	case media.PixFmtYUV420P, media.PixFmtYUV422P, media.PixFmtYUV444P:
		return []int{width, chromaW, chromaW}, []int{height, chromaH, chromaH}
	case media.PixFmtGray8:
		return []int{width}, []int{height}
	case media.PixFmtRGB24:
		return []int{width * 3}, []int{height}
	}
	return nil, nil
}

func rawFrameSize(format media.PixelFormat, width, height int) int {
	rowBytes, rows := planeLayout(format, width, height)
	size := 0
	for i := range rowBytes {
		size += rowBytes[i] * rows[i]
	}
	return size
}

// RawVideoDecoder は非圧縮ピクセルのパケットをフレームとして切り出す
// ffmpeg/MPEG-1ソースのようにライブラリ側でデコードが完了している場合と
// MatroskaのV_UNCOMPRESSEDトラックで使う
type RawVideoDecoder struct {
	width       int
	height      int
	format      media.PixelFormat
	frameNumber int
	pending     []*media.Frame
}

// NewRawVideoDecoder creates a decoder for a rawvideo/* stream.
func NewRawVideoDecoder(stream media.StreamDescriptor) (media.Decoder, error) {
	format, ok := parseRawVideoCodec(stream.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, stream.Codec)
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", stream.Width, stream.Height)
	}
	return &RawVideoDecoder{
		width:  stream.Width,
		height: stream.Height,
		format: format,
	}, nil
}

func (d *RawVideoDecoder) Feed(pkt *media.Packet) error {
	want := rawFrameSize(d.format, d.width, d.height)
	if len(pkt.Data) != want {
		return fmt.Errorf("rawvideo %s %dx%d: packet is %d bytes, want %d",
			d.format, d.width, d.height, len(pkt.Data), want)
	}

	rowBytes, rows := planeLayout(d.format, d.width, d.height)
	frame := &media.Frame{
		Width:       d.width,
		Height:      d.height,
		Format:      d.format,
		Planes:      make([][]byte, len(rowBytes)),
		Strides:     make([]int, len(rowBytes)),
		PTS:         pkt.PTS,
		PictureType: 'I',
		Keyframe:    true,
	}
	off := 0
	for i := range rowBytes {
		n := rowBytes[i] * rows[i]
		frame.Planes[i] = pkt.Data[off : off+n]
		frame.Strides[i] = rowBytes[i]
		off += n
	}

	d.frameNumber++
	frame.Number = d.frameNumber
	d.pending = append(d.pending, frame)
	return nil
}

func (d *RawVideoDecoder) Drain() ([]*media.Frame, error) {
	frames := d.pending
	d.pending = nil
	return frames, nil
}

func (d *RawVideoDecoder) FrameNumber() int {
	return d.frameNumber
}

func (d *RawVideoDecoder) Close() error {
	d.pending = nil
	return nil
}
