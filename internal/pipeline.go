package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// Pipeline はコンテナを開き、映像ストリームを選び、規定数のフレームを
// デコードしてFrameSinkへ渡す
// すべての処理は呼び出し元のgoroutineで同期的に行う
type Pipeline struct {
	open       media.SourceOpener
	newDecoder media.DecoderFactory
	sink       FrameSink
	fallback   media.SourceOpener
	logger     *zap.Logger
	metrics    *Metrics
}

// NewPipeline は新しいPipelineを作成
func NewPipeline(open media.SourceOpener, newDecoder media.DecoderFactory, sink FrameSink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		open:       open,
		newDecoder: newDecoder,
		sink:       sink,
		logger:     logger,
		metrics:    NewMetrics(),
	}
}

// Metrics returns the counters collected by Run.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// SetFallback sets the opener retried when the primary opener cannot give a
// decodable video stream (unknown codec, no picture, or a container it fails
// to parse). Missing files are never retried.
func (p *Pipeline) SetFallback(open media.SourceOpener) {
	p.fallback = open
}

// Run は抽出を実行し、書き込んだフレーム数を返す
// クォータに達した時点でデコーダーのフラッシュは行わずに終了する
func (p *Pipeline) Run(ctx context.Context, cfg *Config) (written int, err error) {
	log := p.logger.With(zap.String("input", cfg.InputPath))

	src, stream, dec, err := p.openVideo(log, p.open, cfg)
	if err != nil && p.fallback != nil && shouldFallback(err) {
		log.Warn("cannot decode with the built-in readers, retrying with ffmpeg", zap.Error(err))
		var ferr error
		src, stream, dec, ferr = p.openVideo(log, p.fallback, cfg)
		if ferr != nil {
			log.Error("ffmpeg fallback failed", zap.Error(ferr))
			return 0, err
		}
		err = nil
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		log.Info("releasing all the resources", zap.Int("frames_written", written))
		if cerr := src.Close(); cerr != nil {
			log.Warn("cannot close input", zap.Error(cerr))
		}
	}()
	defer func() {
		if cerr := dec.Close(); cerr != nil {
			log.Warn("cannot close decoder", zap.Error(cerr))
		}
	}()

	remaining := cfg.Quota
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		pkt, err := src.NextPacket()
		if errors.Is(err, io.EOF) {
			log.Info("end of stream reached", zap.Int("remaining_quota", remaining))
			break
		}
		if err != nil {
			return written, fmt.Errorf("read packet: %w", err)
		}
		p.metrics.PacketsRead.Inc()

		if pkt.StreamIndex != stream.Index {
			p.metrics.PacketsSkipped.Inc()
			continue
		}
		log.Debug("packet",
			zap.Int64("pts", pkt.PTS),
			zap.Int("size", len(pkt.Data)),
			zap.Bool("keyframe", pkt.Keyframe),
		)

		start := time.Now()
		frames, err := feedAndDrain(dec, pkt)
		p.metrics.DecodeSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			log.Error("error while decoding packet", zap.Error(err))
			return written, err
		}

		for _, frame := range frames {
			p.logFrame(log, frame, len(pkt.Data))

			if _, err := p.sink.Write(frame, frame.Number); err != nil {
				log.Error("failed to write frame", zap.Int("frame", frame.Number), zap.Error(err))
				return written, err
			}
			p.metrics.FramesWritten.Inc()
			written++
			remaining--
			if remaining == 0 {
				break
			}
		}
	}

	return written, nil
}

// openVideo はソースを開き、映像ストリームを選んでデコーダーを作る
// 失敗した場合、開いたソースは閉じてから返す
func (p *Pipeline) openVideo(log *zap.Logger, open media.SourceOpener, cfg *Config) (media.Source, media.StreamDescriptor, media.Decoder, error) {
	var none media.StreamDescriptor

	log.Info("opening the input file and loading format (container) header")
	src, err := open(cfg.InputPath)
	if err != nil {
		return nil, none, nil, fmt.Errorf("%w: %s: %w", media.ErrOpen, cfg.InputPath, err)
	}

	streams := src.Streams()
	log.Info("finding stream info from format", zap.Int("streams", len(streams)))
	for _, s := range streams {
		log.Info("stream",
			zap.Int("index", s.Index),
			zap.Stringer("kind", s.Kind),
			zap.String("codec", s.Codec),
			zap.Int("width", s.Width),
			zap.Int("height", s.Height),
			zap.Stringer("time_base", s.TimeBase),
		)
	}

	stream, ok := SelectVideoStream(streams, cfg.StreamPolicy)
	if !ok {
		src.Close()
		log.Error("file does not contain a video stream")
		return nil, none, nil, fmt.Errorf("%w: %s", media.ErrNoVideoStream, cfg.InputPath)
	}
	log.Info("selected video stream",
		zap.Int("index", stream.Index),
		zap.String("codec", stream.Codec),
		zap.String("policy", cfg.StreamPolicy),
	)

	dec, err := p.newDecoder(stream)
	if err != nil {
		src.Close()
		if !errors.Is(err, media.ErrUnsupportedCodec) {
			err = fmt.Errorf("%w: %s: %w", media.ErrUnsupportedCodec, stream.Codec, err)
		}
		log.Error("failed to open decoder", zap.Error(err))
		return nil, none, nil, err
	}
	return src, stream, dec, nil
}

// shouldFallback reports whether err may go away with another reader.
func shouldFallback(err error) bool {
	switch {
	case errors.Is(err, media.ErrUnsupportedCodec), errors.Is(err, media.ErrNoVideoStream):
		return true
	case errors.Is(err, media.ErrOpen):
		return !errors.Is(err, os.ErrNotExist)
	}
	return false
}

func feedAndDrain(dec media.Decoder, pkt *media.Packet) ([]*media.Frame, error) {
	if err := dec.Feed(pkt); err != nil {
		return nil, &media.DecodeError{FrameNumber: dec.FrameNumber(), Err: err}
	}
	frames, err := dec.Drain()
	if err != nil {
		return nil, &media.DecodeError{FrameNumber: dec.FrameNumber(), Err: err}
	}
	return frames, nil
}

func (p *Pipeline) logFrame(log *zap.Logger, frame *media.Frame, packetSize int) {
	pictType := frame.PictureType
	if pictType == 0 {
		pictType = '?'
	}
	log.Info("frame",
		zap.Int("number", frame.Number),
		zap.String("type", string(rune(pictType))),
		zap.Int("packet_size", packetSize),
		zap.Stringer("format", frame.Format),
		zap.Int64("pts", frame.PTS),
		zap.Bool("key_frame", frame.Keyframe),
	)
	if !frame.Format.IsPlanarYUV() {
		log.Warn("the generated grayscale file may not be a grayscale image, " +
			"but could e.g. be just the R component if the video format is RGB",
			zap.Stringer("format", frame.Format))
	}
}

// SelectVideoStream は方針に従って映像ストリームを1つ選ぶ
// "first"（デフォルト）は最初に見つかった映像ストリーム、
// "largest"は解像度が最大のもの（同じなら先頭優先）
func SelectVideoStream(streams []media.StreamDescriptor, policy string) (media.StreamDescriptor, bool) {
	var (
		best  media.StreamDescriptor
		found bool
	)
	for _, s := range streams {
		if s.Kind != media.KindVideo {
			continue
		}
		if !found {
			best, found = s, true
			if policy != StreamPolicyLargest {
				break
			}
			continue
		}
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best, found
}
