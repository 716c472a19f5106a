package internal

import (
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"github.com/gen2brain/mpeg"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// mpegTimeBase expresses frame times (seconds) in 90kHz ticks.
var mpegTimeBase = media.Rational{Num: 1, Den: 90000}

// MPEGSource はMPEG-1プログラムストリームを読むSource
// gen2brain/mpegはデマックスとデコードを分離できないため、
// ライブラリがデコードしたピクチャをrawvideo/yuv420pパケットとして渡す
type MPEGSource struct {
	file    *os.File
	mpg     *mpeg.MPEG
	stream  media.StreamDescriptor
	pending *media.Packet
	hasNone bool
}

// OpenMPEG opens an MPEG-1 program stream and decodes its first picture to
// learn the frame size.
func OpenMPEG(path string) (*MPEGSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	mpg, err := mpeg.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("couldn't open mpeg file: %w", err)
	}

	s := &MPEGSource{file: f, mpg: mpg}
	first, err := s.decodeNext()
	if err == io.EOF {
		// 映像ピクチャが1枚もない（音声のみのストリームなど）
		s.hasNone = true
		return s, nil
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	s.pending = first
	return s, nil
}

func (s *MPEGSource) decodeNext() (*media.Packet, error) {
	for {
		frame := s.mpg.DecodeVideo()
		if frame != nil {
			ycbcr := frame.YCbCr()
			if s.stream.Width == 0 {
				s.stream = media.StreamDescriptor{
					Index:    0,
					Kind:     media.KindVideo,
					Codec:    RawVideoCodec(media.PixFmtYUV420P),
					Width:    ycbcr.Rect.Dx(),
					Height:   ycbcr.Rect.Dy(),
					TimeBase: mpegTimeBase,
				}
			}
			return &media.Packet{
				StreamIndex: 0,
				PTS:         int64(math.Round(frame.Time * float64(mpegTimeBase.Den))),
				Keyframe:    true,
				Data:        packYUV420(ycbcr, s.stream.Width, s.stream.Height),
			}, nil
		}
		if s.mpg.HasEnded() {
			return nil, io.EOF
		}
	}
}

// packYUV420 copies the visible area of img into a tightly packed I420 buffer.
func packYUV420(img *image.YCbCr, width, height int) []byte {
	cw, ch := (width+1)/2, (height+1)/2
	buf := make([]byte, 0, width*height+2*cw*ch)
	for y := 0; y < height; y++ {
		off := y * img.YStride
		buf = append(buf, img.Y[off:off+width]...)
	}
	for _, plane := range [][]byte{img.Cb, img.Cr} {
		for y := 0; y < ch; y++ {
			off := y * img.CStride
			buf = append(buf, plane[off:off+cw]...)
		}
	}
	return buf
}

func (s *MPEGSource) Streams() []media.StreamDescriptor {
	if s.hasNone {
		return nil
	}
	return []media.StreamDescriptor{s.stream}
}

func (s *MPEGSource) NextPacket() (*media.Packet, error) {
	if s.hasNone {
		return nil, io.EOF
	}
	if s.pending != nil {
		pkt := s.pending
		s.pending = nil
		return pkt, nil
	}
	return s.decodeNext()
}

func (s *MPEGSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
