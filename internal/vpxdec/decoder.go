// Package vpxdec はlibvpxでVP8/VP9をデコードするmedia.Decoder
// cgoが必要なので他のパッケージから分離している
package vpxdec

import (
	"fmt"
	"unsafe"

	"github.com/Azunyan1111/libvpx-go/vpx"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// Codecs lists the container codec IDs this package decodes:
// Matroska CodecID and IVF FourCC for VP8 and VP9.
var Codecs = []string{"V_VP8", "VP80", "V_VP9", "VP90"}

// Decoder はlibvpxのデコーダーコンテキストを保持する
type Decoder struct {
	ctx         *vpx.CodecCtx
	codec       string
	frameNumber int
	lastPTS     int64
	lastKey     bool
}

// New はストリームのコーデックに合わせてデコーダーを初期化する
func New(stream media.StreamDescriptor) (media.Decoder, error) {
	var iface *vpx.CodecIface
	switch stream.Codec {
	case "V_VP8", "VP80":
		iface = vpx.DecoderIfaceVP8()
	case "V_VP9", "VP90":
		iface = vpx.DecoderIfaceVP9()
	default:
		return nil, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, stream.Codec)
	}

	ctx := vpx.NewCodecCtx()
	if err := vpx.Error(vpx.CodecDecInitVer(ctx, iface, nil, 0, vpx.DecoderABIVersion)); err != nil {
		return nil, fmt.Errorf("failed to initialize VPX decoder: %w", err)
	}
	return &Decoder{ctx: ctx, codec: stream.Codec}, nil
}

// Feed はパケットをlibvpxに渡す
func (d *Decoder) Feed(pkt *media.Packet) error {
	if len(pkt.Data) == 0 {
		return nil
	}
	if err := vpx.Error(vpx.CodecDecode(d.ctx, string(pkt.Data), uint32(len(pkt.Data)), nil, 0)); err != nil {
		if detail := vpx.CodecErrorDetail(d.ctx); detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	d.lastPTS = pkt.PTS
	d.lastKey = pkt.Keyframe || d.isVP8Keyframe(pkt.Data)
	return nil
}

func (d *Decoder) isVP8Keyframe(data []byte) bool {
	// VP8フレームタグの最下位ビットが0ならキーフレーム
	return (d.codec == "V_VP8" || d.codec == "VP80") && len(data) > 0 && data[0]&0x01 == 0
}

// Drain は直前のFeedで得られたフレームをすべて取り出す
// プレーンはlibvpxのバッファからコピーするので、次のFeed後も有効
func (d *Decoder) Drain() ([]*media.Frame, error) {
	var frames []*media.Frame
	var iter vpx.CodecIter
	for {
		img := vpx.CodecGetFrame(d.ctx, &iter)
		if img == nil {
			break
		}
		img.Deref()

		frame, err := copyImage(img)
		if err != nil {
			return frames, err
		}
		d.frameNumber++
		frame.Number = d.frameNumber
		frame.PTS = d.lastPTS
		frame.Keyframe = d.lastKey
		frame.PictureType = 'P'
		if d.lastKey {
			frame.PictureType = 'I'
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (d *Decoder) FrameNumber() int {
	return d.frameNumber
}

func (d *Decoder) Close() error {
	if d.ctx != nil {
		vpx.CodecDestroy(d.ctx)
		d.ctx = nil
	}
	return nil
}

func copyImage(img *vpx.Image) (*media.Frame, error) {
	w := int(img.DW)
	h := int(img.DH)

	format := media.PixFmtUnknown
	chromaW, chromaH := w, h
	switch img.Fmt {
	case vpx.ImageFormatI420:
		format = media.PixFmtYUV420P
		chromaW, chromaH = (w+1)/2, (h+1)/2
	case vpx.ImageFormatI422:
		format = media.PixFmtYUV422P
		chromaW = (w + 1) / 2
	case vpx.ImageFormatI444:
		format = media.PixFmtYUV444P
	default:
		return nil, fmt.Errorf("unsupported VPX image format %d", img.Fmt)
	}

	frame := &media.Frame{
		Width:   w,
		Height:  h,
		Format:  format,
		Planes:  make([][]byte, 3),
		Strides: make([]int, 3),
	}
	// Y, U, V
	for i := 0; i < 3; i++ {
		rowBytes, rows := w, h
		if i > 0 {
			rowBytes, rows = chromaW, chromaH
		}
		stride := int(img.Stride[i])
		n := stride*(rows-1) + rowBytes
		src := unsafe.Slice((*byte)(unsafe.Pointer(img.Planes[i])), n)

		// ストライド（行末パディング）はそのまま残す
		frame.Planes[i] = append([]byte(nil), src...)
		frame.Strides[i] = stride
	}
	return frame, nil
}
