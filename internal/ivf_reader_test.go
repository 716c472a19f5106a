package internal

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azunyan1111/go-frame-extractor/internal/media"
)

type ivfTestFrame struct {
	timestamp uint64
	payload   []byte
}

func buildIVF(fourcc string, width, height uint16, den, num uint32, frames ...ivfTestFrame) []byte {
	var buf bytes.Buffer
	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0)
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], fourcc)
	binary.LittleEndian.PutUint16(header[12:14], width)
	binary.LittleEndian.PutUint16(header[14:16], height)
	binary.LittleEndian.PutUint32(header[16:20], den)
	binary.LittleEndian.PutUint32(header[20:24], num)
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(frames)))
	buf.Write(header)

	for _, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:4], uint32(len(f.payload)))
		binary.LittleEndian.PutUint64(fh[4:12], f.timestamp)
		buf.Write(fh)
		buf.Write(f.payload)
	}
	return buf.Bytes()
}

func TestIVFSource(t *testing.T) {
	t.Parallel()
	data := buildIVF("VP80", 320, 240, 30, 1,
		ivfTestFrame{timestamp: 0, payload: []byte{0x10, 0x02, 0x00}}, // キーフレーム
		ivfTestFrame{timestamp: 1, payload: []byte{0x11, 0x02}},
	)

	s, err := NewIVFSource(bytes.NewReader(data))
	require.NoError(t, err)
	defer s.Close()

	streams := s.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, media.StreamDescriptor{
		Index:    0,
		Kind:     media.KindVideo,
		Codec:    "VP80",
		Width:    320,
		Height:   240,
		TimeBase: media.Rational{Num: 1, Den: 30},
	}, streams[0])

	pkt, err := s.NextPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pkt.PTS)
	assert.True(t, pkt.Keyframe)
	assert.Equal(t, []byte{0x10, 0x02, 0x00}, pkt.Data)

	pkt, err = s.NextPacket()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pkt.PTS)
	assert.False(t, pkt.Keyframe)

	_, err = s.NextPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestIVFSourceBadSignature(t *testing.T) {
	t.Parallel()
	data := buildIVF("VP80", 2, 2, 30, 1)
	copy(data, "RIFF")

	_, err := NewIVFSource(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestIVFSourceCloseWithoutFile(t *testing.T) {
	t.Parallel()
	s, err := NewIVFSource(bytes.NewReader(buildIVF("VP90", 2, 2, 30, 1)))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, "VP90", s.Streams()[0].Codec)
}
