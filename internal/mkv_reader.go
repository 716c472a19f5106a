package internal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/remko/go-mkvparse"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

// EBML/Matroska element IDs used in this stream path.
const (
	ebmlIDTracks        mkvparse.ElementID = 0x1654AE6B
	ebmlIDCluster       mkvparse.ElementID = 0x1F43B675
	ebmlIDTrackEntry    mkvparse.ElementID = 0xAE
	ebmlIDTrackNumber   mkvparse.ElementID = 0xD7
	ebmlIDTrackType     mkvparse.ElementID = 0x83
	ebmlIDCodecID       mkvparse.ElementID = 0x86
	ebmlIDPixelWidth    mkvparse.ElementID = 0xB0
	ebmlIDPixelHeight   mkvparse.ElementID = 0xBA
	ebmlIDColourSpace   mkvparse.ElementID = 0x2EB524
	ebmlIDTimecode      mkvparse.ElementID = 0xE7
	ebmlIDTimecodeScale mkvparse.ElementID = 0x2AD7B1
	ebmlIDSimpleBlock   mkvparse.ElementID = 0xA3
	ebmlIDBlock         mkvparse.ElementID = 0xA1

	mkvTrackTypeVideo = 1
	mkvTrackTypeAudio = 2

	defaultTimecodeScale = 1000000 // 1ms
	defaultParserBufSize = 256 * 1024
	mkvPacketQueueSize   = 16
)

var errParseStopped = errors.New("matroska parser stopped")

// MKVSource はMatroska/WebMファイルからパケットを取り出すSource
// パースはgo-mkvparseのコールバックで行い、別goroutineから
// 有界チャネル経由で1パケットずつ渡す（Closeでパーサーを止める）
type MKVSource struct {
	file       *os.File
	streams    []media.StreamDescriptor
	trackIndex map[int64]int
	packets    chan *media.Packet
	ready      chan struct{}
	done       chan struct{}
	finished   chan struct{}
	err        error
	readyOnce  sync.Once
	closeOnce  sync.Once
}

// OpenMKV opens a Matroska or WebM file and reads its track list.
func OpenMKV(path string) (*MKVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s := newMKVSource(f, f)
	if len(s.streams) == 0 {
		// ヘッダーすら読めなかった場合はパース結果を待ってエラーを返す
		<-s.finished
		if s.err != nil {
			err := s.err
			s.Close()
			return nil, fmt.Errorf("couldn't open matroska file: %w", err)
		}
	}
	return s, nil
}

func newMKVSource(r io.Reader, f *os.File) *MKVSource {
	s := &MKVSource{
		file:       f,
		trackIndex: make(map[int64]int),
		packets:    make(chan *media.Packet, mkvPacketQueueSize),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
	}
	go s.parse(r)
	<-s.ready
	return s
}

func (s *MKVSource) parse(r io.Reader) {
	defer close(s.finished)

	h := &mkvHandler{
		source:    s,
		timescale: defaultTimecodeScale,
	}
	err := mkvparse.Parse(bufio.NewReaderSize(r, defaultParserBufSize), h)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	h.publish()
	close(s.packets)
}

func (s *MKVSource) Streams() []media.StreamDescriptor {
	return s.streams
}

func (s *MKVSource) NextPacket() (*media.Packet, error) {
	pkt, ok := <-s.packets
	if !ok {
		if s.err != nil && !errors.Is(s.err, errParseStopped) {
			return nil, s.err
		}
		return nil, io.EOF
	}
	return pkt, nil
}

func (s *MKVSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		// パーサーがチャネル送信で止まっている場合に備えて読み捨てる
		for range s.packets {
		}
		<-s.finished
		if s.file != nil {
			err = s.file.Close()
		}
	})
	return err
}

type mkvTrack struct {
	number      int64
	trackType   int64
	codecID     string
	width       int
	height      int
	colourSpace string
}

type mkvHandler struct {
	source      *MKVSource
	streams     []media.StreamDescriptor
	trackIndex  map[int64]int
	track       *mkvTrack
	published   bool
	timescale   int64
	clusterTime int64
}

// publish はトラック一覧を確定させ、OpenMKVの待機を解除する
func (h *mkvHandler) publish() {
	h.source.readyOnce.Do(func() {
		h.published = true
		h.source.streams = h.streams
		if h.trackIndex != nil {
			h.source.trackIndex = h.trackIndex
		}
		for i := range h.source.streams {
			h.source.streams[i].TimeBase = media.Rational{Num: int(h.timescale), Den: int(time.Second)}
		}
		close(h.source.ready)
	})
}

func (h *mkvHandler) HandleMasterBegin(id mkvparse.ElementID, info mkvparse.ElementInfo) (bool, error) {
	switch id {
	case ebmlIDTrackEntry:
		h.track = &mkvTrack{}
	case ebmlIDCluster:
		// Tracksの後ろにClusterが来たらヘッダーは読み終わっている
		h.publish()
	}
	return true, nil
}

func (h *mkvHandler) HandleMasterEnd(id mkvparse.ElementID, info mkvparse.ElementInfo) error {
	switch id {
	case ebmlIDTrackEntry:
		if h.track != nil && !h.published {
			h.addTrack(h.track)
		}
		h.track = nil
	case ebmlIDTracks:
		h.publish()
	}
	return nil
}

func (h *mkvHandler) addTrack(t *mkvTrack) {
	kind := media.KindOther
	switch {
	case t.trackType == mkvTrackTypeVideo:
		kind = media.KindVideo
	case t.trackType == mkvTrackTypeAudio:
		kind = media.KindAudio
	case t.trackType == 0 && strings.HasPrefix(t.codecID, "V_"):
		kind = media.KindVideo
	case t.trackType == 0 && strings.HasPrefix(t.codecID, "A_"):
		kind = media.KindAudio
	}

	codec := t.codecID
	if codec == "V_UNCOMPRESSED" {
		codec = uncompressedCodec(t.colourSpace)
	}

	if h.trackIndex == nil {
		h.trackIndex = make(map[int64]int)
	}
	idx := len(h.streams)
	h.trackIndex[t.number] = idx
	h.streams = append(h.streams, media.StreamDescriptor{
		Index:  idx,
		Kind:   kind,
		Codec:  codec,
		Width:  t.width,
		Height: t.height,
	})
}

// uncompressedCodec maps a V_UNCOMPRESSED ColourSpace FourCC to a rawvideo codec.
func uncompressedCodec(fourcc string) string {
	switch fourcc {
	case "I420", "IYUV":
		return RawVideoCodec(media.PixFmtYUV420P)
	case "Y42B":
		return RawVideoCodec(media.PixFmtYUV422P)
	case "Y444":
		return RawVideoCodec(media.PixFmtYUV444P)
	case "Y800", "GREY":
		return RawVideoCodec(media.PixFmtGray8)
	case "RGB2", "RV24":
		return RawVideoCodec(media.PixFmtRGB24)
	}
	return "V_UNCOMPRESSED/" + fourcc
}

func (h *mkvHandler) HandleString(id mkvparse.ElementID, value string, info mkvparse.ElementInfo) error {
	switch id {
	case ebmlIDCodecID:
		if h.track != nil {
			h.track.codecID = value
		}
	case ebmlIDColourSpace:
		if h.track != nil {
			h.track.colourSpace = strings.TrimRight(value, "\x00")
		}
	}
	return nil
}

func (h *mkvHandler) HandleInteger(id mkvparse.ElementID, value int64, info mkvparse.ElementInfo) error {
	switch id {
	case ebmlIDTrackNumber:
		if h.track != nil {
			h.track.number = value
		}
	case ebmlIDTrackType:
		if h.track != nil {
			h.track.trackType = value
		}
	case ebmlIDPixelWidth:
		if h.track != nil {
			h.track.width = int(value)
		}
	case ebmlIDPixelHeight:
		if h.track != nil {
			h.track.height = int(value)
		}
	case ebmlIDTimecode:
		h.clusterTime = value
	case ebmlIDTimecodeScale:
		if value > 0 && !h.published {
			h.timescale = value
		}
	}
	return nil
}

func (h *mkvHandler) HandleFloat(id mkvparse.ElementID, value float64, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvHandler) HandleDate(id mkvparse.ElementID, value time.Time, info mkvparse.ElementInfo) error {
	return nil
}

func (h *mkvHandler) HandleBinary(id mkvparse.ElementID, value []byte, info mkvparse.ElementInfo) error {
	switch id {
	case ebmlIDColourSpace:
		return h.HandleString(id, string(value), info)
	case ebmlIDSimpleBlock, ebmlIDBlock:
		pkts, err := h.parseBlock(value, id == ebmlIDSimpleBlock)
		if err != nil {
			return err
		}
		for _, pkt := range pkts {
			if err := h.send(pkt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Block header flags
const (
	blockFlagKeyframe  = 0x80
	blockLacingMask    = 0x06
	blockLacingXiph    = 0x02
	blockLacingFixed   = 0x04
	blockLacingEBML    = 0x06
	blockHeaderMinSize = 3 // timecode(2) + flags(1)
)

// parseBlock はSimpleBlock/Blockを1つ以上のパケットに分解する
// レーシングされたブロックはフレームごとに分割し、全フレームにブロックのPTSを付ける
func (h *mkvHandler) parseBlock(data []byte, simple bool) ([]*media.Packet, error) {
	trackNum, trackNumSize := parseVint(data)
	if trackNumSize == 0 {
		return nil, fmt.Errorf("invalid track number in block")
	}
	if len(data) < trackNumSize+blockHeaderMinSize {
		return nil, fmt.Errorf("block too short after track number")
	}

	h.publish()
	idx, ok := h.source.trackIndex[int64(trackNum)]
	if !ok {
		return nil, nil
	}

	relativeTs := int16(binary.BigEndian.Uint16(data[trackNumSize : trackNumSize+2]))
	flags := data[trackNumSize+2]
	body := data[trackNumSize+blockHeaderMinSize:]

	frames, err := splitLaces(body, flags&blockLacingMask)
	if err != nil {
		return nil, fmt.Errorf("track %d: %w", trackNum, err)
	}

	pkts := make([]*media.Packet, 0, len(frames))
	for _, frame := range frames {
		pkts = append(pkts, &media.Packet{
			StreamIndex: idx,
			PTS:         h.clusterTime + int64(relativeTs),
			Keyframe:    simple && flags&blockFlagKeyframe != 0,
			Data:        append([]byte(nil), frame...),
		})
	}
	return pkts, nil
}

// splitLaces returns the frames of a block body. Without lacing the whole
// body is one frame.
func splitLaces(body []byte, lacing byte) ([][]byte, error) {
	if lacing == 0 {
		return [][]byte{body}, nil
	}
	if len(body) < 1 {
		return nil, fmt.Errorf("laced block without frame count")
	}
	count := int(body[0]) + 1
	rest := body[1:]

	sizes := make([]int, count-1)
	switch lacing {
	case blockLacingXiph:
		for i := range sizes {
			for {
				if len(rest) == 0 {
					return nil, fmt.Errorf("truncated xiph lace sizes")
				}
				b := rest[0]
				rest = rest[1:]
				sizes[i] += int(b)
				if b != 0xFF {
					break
				}
			}
		}
	case blockLacingFixed:
		if len(rest)%count != 0 {
			return nil, fmt.Errorf("fixed lacing: %d bytes do not split into %d frames", len(rest), count)
		}
		for i := range sizes {
			sizes[i] = len(rest) / count
		}
	case blockLacingEBML:
		if count > 1 {
			first, n := parseVint(rest)
			if n == 0 {
				return nil, fmt.Errorf("invalid ebml lace size")
			}
			rest = rest[n:]
			sizes[0] = int(first)
			for i := 1; i < len(sizes); i++ {
				diff, n := parseSignedVint(rest)
				if n == 0 {
					return nil, fmt.Errorf("invalid ebml lace size difference")
				}
				rest = rest[n:]
				sizes[i] = sizes[i-1] + int(diff)
			}
		}
	}

	frames := make([][]byte, 0, count)
	for _, size := range sizes {
		if size < 0 || size > len(rest) {
			return nil, fmt.Errorf("lace size %d exceeds block (%d bytes left)", size, len(rest))
		}
		frames = append(frames, rest[:size])
		rest = rest[size:]
	}
	return append(frames, rest), nil
}

func (h *mkvHandler) send(pkt *media.Packet) error {
	select {
	case h.source.packets <- pkt:
		return nil
	case <-h.source.done:
		return errParseStopped
	}
}

// parseVint はEBMLの可変長整数（1〜8バイト）を読み、値と長さを返す
// 不正または途中で切れている場合の長さは0
func parseVint(data []byte) (uint64, int) {
	if len(data) == 0 || data[0] == 0 {
		return 0, 0
	}
	size := bits.LeadingZeros8(data[0]) + 1
	if len(data) < size {
		return 0, 0
	}

	value := uint64(data[0] & (0xFF >> size))
	for _, b := range data[1:size] {
		value = value<<8 | uint64(b)
	}
	return value, size
}

// parseSignedVint reads the signed form used by EBML lacing, where the raw
// value is biased by 2^(7*size-1)-1.
func parseSignedVint(data []byte) (int64, int) {
	v, n := parseVint(data)
	if n == 0 {
		return 0, 0
	}
	bias := int64(1)<<(7*n-1) - 1
	return int64(v) - bias, n
}
