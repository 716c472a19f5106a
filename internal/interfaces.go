package internal

import (
	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// FrameSink はデコード済みフレームを受け取って保存するインターフェース
type FrameSink interface {
	// Write はフレームを書き込み、作成したファイルのパスを返す
	// seqは出力ファイル名に使う通し番号（1始まり）
	Write(frame *media.Frame, seq int) ([]string, error)
}

// FrameWriter は1つのラスタ形式でフレームを書き込むインターフェース
type FrameWriter interface {
	WriteFrame(frame *media.Frame, seq int) (string, error)
}
