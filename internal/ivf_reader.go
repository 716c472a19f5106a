package internal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// IVFSource はIVFファイル（VP8/VP9/AV1のエレメンタリーストリーム）を読むSource
// IVFは映像ストリームを1本だけ持つ
type IVFSource struct {
	closer io.Closer
	reader *ivfreader.IVFReader
	stream media.StreamDescriptor
}

// OpenIVF opens an IVF file and parses its 32-byte file header.
func OpenIVF(path string) (*IVFSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewIVFSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewIVFSource reads the IVF file header from r.
func NewIVFSource(r io.Reader) (*IVFSource, error) {
	reader, header, err := ivfreader.NewWith(r)
	if err != nil {
		return nil, fmt.Errorf("couldn't open ivf file: %w", err)
	}

	return &IVFSource{
		reader: reader,
		stream: media.StreamDescriptor{
			Index:  0,
			Kind:   media.KindVideo,
			Codec:  strings.TrimRight(header.FourCC, "\x00 "),
			Width:  int(header.Width),
			Height: int(header.Height),
			TimeBase: media.Rational{
				Num: int(header.TimebaseNumerator),
				Den: int(header.TimebaseDenominator),
			},
		},
	}, nil
}

func (s *IVFSource) Streams() []media.StreamDescriptor {
	return []media.StreamDescriptor{s.stream}
}

func (s *IVFSource) NextPacket() (*media.Packet, error) {
	payload, header, err := s.reader.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	return &media.Packet{
		StreamIndex: 0,
		PTS:         int64(header.Timestamp),
		Keyframe:    s.stream.Codec == "VP80" && len(payload) > 0 && payload[0]&0x01 == 0,
		Data:        payload,
	}, nil
}

func (s *IVFSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
