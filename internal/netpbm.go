package internal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// EncodeNetpbm は最小限のNetpbmヘッダーとピクセル行を書き込む
// 各行はstrideごとに先頭rowBytesだけを出力し、行末のパディングは捨てる
func EncodeNetpbm(w io.Writer, magic string, width, height int, pix []byte, stride, rowBytes int) error {
	if stride < rowBytes {
		return fmt.Errorf("stride %d is smaller than row size %d", stride, rowBytes)
	}
	if _, err := fmt.Fprintf(w, "%s\n%d %d\n255\n", magic, width, height); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		off := y * stride
		if off+rowBytes > len(pix) {
			return fmt.Errorf("plane too short: row %d needs %d bytes, have %d", y, off+rowBytes, len(pix))
		}
		if _, err := w.Write(pix[off : off+rowBytes]); err != nil {
			return err
		}
	}
	return nil
}

func writeNetpbmFile(path, magic string, width, height int, pix []byte, stride, rowBytes int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", media.ErrFileCreate, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", media.ErrFileCreate, cerr)
		}
	}()

	bw := bufio.NewWriterSize(f, 64*1024)
	if err := EncodeNetpbm(bw, magic, width, height, pix, stride, rowBytes); err != nil {
		return fmt.Errorf("%w: %s: %v", media.ErrFileCreate, path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %v", media.ErrFileCreate, path, err)
	}
	return nil
}

// GrayWriter はplane 0をPGM(P5)で保存する
// YUV系以外のフォーマットでもplane 0をそのまま書く（RGBならR成分などになる）
type GrayWriter struct {
	dir     string
	pattern string
}

// NewGrayWriter creates a writer producing dir/pattern files, pattern
// taking the frame sequence number (e.g. "frame-%d.pgm").
func NewGrayWriter(dir, pattern string) *GrayWriter {
	return &GrayWriter{dir: dir, pattern: pattern}
}

func (w *GrayWriter) WriteFrame(frame *media.Frame, seq int) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf(w.pattern, seq))
	if len(frame.Planes) == 0 || len(frame.Strides) == 0 {
		return "", fmt.Errorf("frame %d has no planes", seq)
	}
	if err := writeNetpbmFile(path, "P5", frame.Width, frame.Height,
		frame.Planes[0], frame.Strides[0], frame.Width); err != nil {
		return "", err
	}
	return path, nil
}

// ColorWriter はフレームをRGB24に変換してPPM(P6)で保存する
type ColorWriter struct {
	dir       string
	pattern   string
	converter *Converter
}

func NewColorWriter(dir, pattern string, converter *Converter) *ColorWriter {
	return &ColorWriter{dir: dir, pattern: pattern, converter: converter}
}

func (w *ColorWriter) WriteFrame(frame *media.Frame, seq int) (string, error) {
	rgb, stride, err := w.converter.ToRGB24(frame)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, fmt.Sprintf(w.pattern, seq))
	if err := writeNetpbmFile(path, "P6", frame.Width, frame.Height, rgb, stride, frame.Width*3); err != nil {
		return "", err
	}
	return path, nil
}
