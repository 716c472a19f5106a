package internal

import (
	"fmt"
	"io"
	"math"
	"os/exec"

	vidio "github.com/AlexEidt/Vidio"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// FFmpegSource は上記以外のコンテナ（MP4など）をffmpegサブプロセスでデコードする
// Vidioがffmpegの出力をフレームバッファに読み込むので、
// 各フレームをrawvideo/rgb24パケットとして渡す
type FFmpegSource struct {
	video  frameReader
	close  func()
	stream media.StreamDescriptor
	index  int64
}

// frameReader is the part of *vidio.Video the source reads from.
type frameReader interface {
	Read() bool
	FrameBuffer() []byte
	Frames() int
}

// OpenFFmpeg probes path with ffprobe and starts an ffmpeg decoder process.
// ffmpeg and ffprobe must be on PATH.
func OpenFFmpeg(path string) (*FFmpegSource, error) {
	// ffmpegが無い場合はここで失敗させる
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg could not open the file: %w", err)
	}

	den := int(math.Round(video.FPS()))
	if den <= 0 {
		den = 1
	}
	return &FFmpegSource{
		video: video,
		close: func() { video.Close() },
		stream: media.StreamDescriptor{
			Index:    0,
			Kind:     media.KindVideo,
			Codec:    RawVideoCodec(media.PixFmtRGB24),
			Width:    video.Width(),
			Height:   video.Height(),
			TimeBase: media.Rational{Num: 1, Den: den},
		},
	}, nil
}

func (s *FFmpegSource) Streams() []media.StreamDescriptor {
	return []media.StreamDescriptor{s.stream}
}

func (s *FFmpegSource) NextPacket() (*media.Packet, error) {
	if !s.video.Read() {
		// 1フレームも読めずに終わるのはffmpegのデコード失敗
		if s.index == 0 && s.video.Frames() > 0 {
			return nil, fmt.Errorf("ffmpeg produced no frames (expected %d)", s.video.Frames())
		}
		return nil, io.EOF
	}

	data, err := toRGB24(s.video.FrameBuffer(), s.stream.Width, s.stream.Height)
	if err != nil {
		return nil, err
	}
	pkt := &media.Packet{
		StreamIndex: 0,
		PTS:         s.index,
		Keyframe:    true,
		Data:        data,
	}
	s.index++
	return pkt, nil
}

// toRGB24 copies an ffmpeg frame buffer (RGB or RGBA depending on the Vidio
// version) into a new packed RGB24 buffer.
func toRGB24(buf []byte, width, height int) ([]byte, error) {
	pixels := width * height
	if pixels == 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	switch len(buf) / pixels {
	case 3:
		out := make([]byte, pixels*3)
		copy(out, buf)
		return out, nil
	case 4:
		out := make([]byte, pixels*3)
		for i := 0; i < pixels; i++ {
			copy(out[i*3:i*3+3], buf[i*4:i*4+3])
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected frame buffer size %d for %dx%d", len(buf), width, height)
}

func (s *FFmpegSource) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
