package internal

import (
	"fmt"
	"os"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// MultiSink は登録順にすべてのFrameWriterを呼ぶ
type MultiSink struct {
	writers []FrameWriter
}

func NewMultiSink(writers ...FrameWriter) *MultiSink {
	return &MultiSink{writers: writers}
}

func (s *MultiSink) Write(frame *media.Frame, seq int) ([]string, error) {
	paths := make([]string, 0, len(s.writers))
	for _, w := range s.writers {
		path, err := w.WriteFrame(frame, seq)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NewSink は設定に従ってグレースケール/カラーの出力先を組み立てる
// デフォルトでは1フレームにつきPGMとPPMの両方を書く
func NewSink(cfg *Config) (*MultiSink, error) {
	if cfg.OutputDir != "" && cfg.OutputDir != "." {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %v", media.ErrFileCreate, err)
		}
	}

	var writers []FrameWriter
	if cfg.WriteGray {
		writers = append(writers, NewGrayWriter(cfg.OutputDir, cfg.GrayPattern))
	}
	if cfg.WriteColor {
		writers = append(writers, NewColorWriter(cfg.OutputDir, cfg.ColorPattern, NewConverter()))
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("no output writer enabled")
	}
	return NewMultiSink(writers...), nil
}
