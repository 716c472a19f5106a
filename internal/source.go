package internal

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

type containerKind int

const (
	containerUnknown containerKind = iota
	containerMatroska
	containerIVF
	containerMPEGPS
)

var (
	magicEBML   = []byte{0x1A, 0x45, 0xDF, 0xA3}
	magicIVF    = []byte("DKIF")
	magicMPEGPS = []byte{0x00, 0x00, 0x01, 0xBA}
)

// sniffContainer はマジックバイト、次に拡張子でコンテナ形式を判定する
func sniffContainer(path string, header []byte) containerKind {
	switch {
	case bytes.HasPrefix(header, magicEBML):
		return containerMatroska
	case bytes.HasPrefix(header, magicIVF):
		return containerIVF
	case bytes.HasPrefix(header, magicMPEGPS):
		return containerMPEGPS
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv", ".webm", ".mka":
		return containerMatroska
	case ".ivf":
		return containerIVF
	case ".mpg", ".mpeg":
		return containerMPEGPS
	}
	return containerUnknown
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return header[:n], nil
}

// OpenSource implements media.SourceOpener. Matroska/WebM, IVF and MPEG-1
// are read in-process; anything else goes through ffmpeg.
func OpenSource(path string) (media.Source, error) {
	header, err := readHeader(path)
	if err != nil {
		return nil, err
	}

	switch sniffContainer(path, header) {
	case containerMatroska:
		return asSource(OpenMKV(path))
	case containerIVF:
		return asSource(OpenIVF(path))
	case containerMPEGPS:
		return asSource(OpenMPEG(path))
	}
	return asSource(OpenFFmpeg(path))
}

// OpenFFmpegSource implements media.SourceOpener with ffmpeg only. It is the
// fallback for files whose container the built-in readers parse but whose
// codec they cannot decode (H.264 in Matroska, MPEG-2 program streams).
func OpenFFmpegSource(path string) (media.Source, error) {
	return asSource(OpenFFmpeg(path))
}

// asSource avoids returning a typed nil pointer inside a non-nil interface.
func asSource[T media.Source](s T, err error) (media.Source, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
