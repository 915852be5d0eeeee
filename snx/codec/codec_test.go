package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-snx/go-snx/snx"
)

func TestControlRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}

	payload := map[string]interface{}{
		"office_mode": map[string]interface{}{"ipaddr": "10.0.0.5"},
		"timeouts":    map[string]interface{}{"authentication": "120", "keepalive": "30"},
	}
	require.NoError(t, NewWriter(buf).WritePacket(snx.ControlPacket(snx.HelloReplyName, payload)))

	pkt, err := NewReader(buf).ReadPacket()
	require.NoError(t, err)
	assert.False(t, pkt.IsData())
	assert.Equal(t, snx.HelloReplyName, pkt.Name)
	assert.Equal(t, payload, pkt.Payload)
}

func TestDataRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}

	data := []byte{0x45, 0x00, 0x00, 0x14, 0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, NewWriter(buf).WritePacket(snx.DataPacket(data)))

	pkt, err := NewReader(buf).ReadPacket()
	require.NoError(t, err)
	assert.True(t, pkt.IsData())
	assert.Equal(t, data, pkt.Data)
}

func TestPreservesOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)
	require.NoError(t, w.WritePacket(snx.DataPacket([]byte{1})))
	require.NoError(t, w.WritePacket(snx.ControlPacket(snx.KeepaliveName, nil)))
	require.NoError(t, w.WritePacket(snx.DataPacket([]byte{2})))

	r := NewReader(buf)
	first, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, first.Data)

	second, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, snx.KeepaliveName, second.Name)

	third, err := r.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, third.Data)
}

func TestEofOnEmptyStream(t *testing.T) {
	_, err := NewReader(&bytes.Buffer{}).ReadPacket()
	assert.Equal(t, io.EOF, err)
}

func TestTruncatedFrame(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewWriter(buf).WritePacket(snx.DataPacket([]byte{1, 2, 3, 4})))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := NewReader(bytes.NewReader(truncated)).ReadPacket()
	assert.Error(t, err)
}

func TestRejectsOversizedFrame(t *testing.T) {
	header := []byte{0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x02}
	_, err := NewReader(bytes.NewReader(header)).ReadPacket()
	assert.Error(t, err)

	err = NewWriter(&bytes.Buffer{}).WritePacket(snx.DataPacket(make([]byte, maxFrameSize+1)))
	assert.Error(t, err)
}

func TestRejectsUnknownPacketType(t *testing.T) {
	frame := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x09, 0xaa}
	_, err := NewReader(bytes.NewReader(frame)).ReadPacket()
	assert.Error(t, err)
}

func TestRejectsMalformedControlBody(t *testing.T) {
	buf := &bytes.Buffer{}
	body := []byte(`{"a":{},"b":{}}`)
	buf.Write([]byte{0x00, 0x00, 0x00, byte(len(body)), 0x00, 0x00, 0x00, 0x01})
	buf.Write(body)
	_, err := NewReader(buf).ReadPacket()
	assert.Error(t, err)
}
