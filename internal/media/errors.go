package media

import (
	"errors"
	"fmt"
)

var (
	ErrOpen             = errors.New("cannot open media container")
	ErrNoVideoStream    = errors.New("no video stream found")
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrFileCreate       = errors.New("cannot create output file")
	ErrConversion       = errors.New("cannot convert pixel format")
)

// DecodeError はデコーダーがパケットを拒否した、またはフレーム取り出しに失敗したことを示す
type DecodeError struct {
	// FrameNumber is the decoder frame counter when the failure happened.
	FrameNumber int
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed at frame %d: %v", e.FrameNumber, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
