// Package media はコンテナ/デコーダーとフレーム抽出パイプラインの間で
// 受け渡す型とインターフェースを定義する
package media

import (
	"fmt"
	"image"
)

// MediaKind はエレメンタリーストリームの種別
type MediaKind int

const (
	KindOther MediaKind = iota
	KindVideo
	KindAudio
)

func (k MediaKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "other"
	}
}

// Rational is a time base such as 1/1000.
type Rational struct {
	Num int
	Den int
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// StreamDescriptor はコンテナ内の1ストリームを表す（ヘッダー読み込み後は不変）
type StreamDescriptor struct {
	Index    int
	Kind     MediaKind
	Codec    string
	Width    int
	Height   int
	TimeBase Rational
}

// Packet は圧縮データ1単位
type Packet struct {
	StreamIndex int
	PTS         int64
	Keyframe    bool
	Data        []byte
}

// PixelFormat identifies the memory layout of a decoded frame.
type PixelFormat int

const (
	PixFmtUnknown PixelFormat = iota
	PixFmtYUV420P
	PixFmtYUV422P
	PixFmtYUV444P
	PixFmtGray8
	PixFmtRGB24
)

func (f PixelFormat) String() string {
	switch f {
	case PixFmtYUV420P:
		return "yuv420p"
	case PixFmtYUV422P:
		return "yuv422p"
	case PixFmtYUV444P:
		return "yuv444p"
	case PixFmtGray8:
		return "gray"
	case PixFmtRGB24:
		return "rgb24"
	default:
		return "unknown"
	}
}

// IsPlanarYUV reports whether plane 0 of the format is luma.
func (f PixelFormat) IsPlanarYUV() bool {
	switch f {
	case PixFmtYUV420P, PixFmtYUV422P, PixFmtYUV444P:
		return true
	}
	return false
}

// Frame はデコード済みピクチャ
// Planes/Stridesはデコーダーの所有物で、シンクへの1回の書き込みの間だけ有効
type Frame struct {
	Number      int
	Width       int
	Height      int
	Format      PixelFormat
	Planes      [][]byte
	Strides     []int
	PTS         int64
	PictureType byte
	Keyframe    bool
}

// Image returns an image.Image view over the frame planes without copying.
// ok is false for formats that have no standard library equivalent.
func (f *Frame) Image() (img image.Image, ok bool) {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixFmtYUV420P, PixFmtYUV422P, PixFmtYUV444P:
		if len(f.Planes) < 3 || len(f.Strides) < 3 {
			return nil, false
		}
		ratio := image.YCbCrSubsampleRatio420
		switch f.Format {
		case PixFmtYUV422P:
			ratio = image.YCbCrSubsampleRatio422
		case PixFmtYUV444P:
			ratio = image.YCbCrSubsampleRatio444
		}
		return &image.YCbCr{
			Y:              f.Planes[0],
			Cb:             f.Planes[1],
			Cr:             f.Planes[2],
			YStride:        f.Strides[0],
			CStride:        f.Strides[1],
			SubsampleRatio: ratio,
			Rect:           rect,
		}, true
	case PixFmtGray8:
		if len(f.Planes) < 1 || len(f.Strides) < 1 {
			return nil, false
		}
		return &image.Gray{Pix: f.Planes[0], Stride: f.Strides[0], Rect: rect}, true
	}
	return nil, false
}

// Source はコンテナを開いた後のパケット列を提供する
// NextPacketは前方向のみで、終端ではio.EOFを返す
type Source interface {
	Streams() []StreamDescriptor
	NextPacket() (*Packet, error)
	Close() error
}

// Decoder はパケットを受け取りフレームを生成する
// 1回のFeedに対して0個以上のフレームがDrainで得られる
type Decoder interface {
	Feed(pkt *Packet) error
	Drain() ([]*Frame, error)
	FrameNumber() int
	Close() error
}

// SourceOpener opens a container at path.
type SourceOpener func(path string) (Source, error)

// DecoderFactory creates a decoder bound to the codec of stream.
type DecoderFactory func(stream StreamDescriptor) (Decoder, error)
