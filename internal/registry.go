package internal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// DecoderRegistry はコーデックIDからデコーダーを作る
// rawvideo/*は最初から登録済み
type DecoderRegistry struct {
	factories map[string]media.DecoderFactory
}

func NewDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{factories: make(map[string]media.DecoderFactory)}
	for _, f := range []media.PixelFormat{
		media.PixFmtYUV420P,
		media.PixFmtYUV422P,
		media.PixFmtYUV444P,
		media.PixFmtGray8,
		media.PixFmtRGB24,
	} {
		r.Register(RawVideoCodec(f), NewRawVideoDecoder)
	}
	return r
}

// Register binds codec (case-sensitive, as found in the container) to factory.
func (r *DecoderRegistry) Register(codec string, factory media.DecoderFactory) {
	r.factories[codec] = factory
}

// Codecs returns the registered codec IDs in sorted order.
func (r *DecoderRegistry) Codecs() []string {
	codecs := make([]string, 0, len(r.factories))
	for c := range r.factories {
		codecs = append(codecs, c)
	}
	sort.Strings(codecs)
	return codecs
}

// NewDecoder implements media.DecoderFactory.
func (r *DecoderRegistry) NewDecoder(stream media.StreamDescriptor) (media.Decoder, error) {
	factory, ok := r.factories[stream.Codec]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			media.ErrUnsupportedCodec, stream.Codec, strings.Join(r.Codecs(), ", "))
	}
	return factory(stream)
}
