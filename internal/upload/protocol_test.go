package upload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLiveLayout(t *testing.T) {
	fp := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	msg, err := EncodeLive("acr-123", fp)
	require.NoError(t, err)

	require.Len(t, msg, HeaderSize+SignatureSize+len(fp))
	assert.Equal(t, []byte{'M', 1, 24, 1}, msg[:4])
	assert.Equal(t, uint32(SignatureSize+len(fp)+1), binary.BigEndian.Uint32(msg[4:8]))
	assert.Equal(t, TypeLive, msg[8])

	sig := msg[HeaderSize : HeaderSize+SignatureSize]
	assert.Equal(t, []byte("acr-123"), sig[:7])
	assert.Equal(t, make([]byte, SignatureSize-7), sig[7:])
	assert.Equal(t, fp, msg[HeaderSize+SignatureSize:])
}

func TestEncodeRecordLayout(t *testing.T) {
	fp := []byte{1, 2, 3}
	detail := "42:1700000000"
	msg, err := EncodeRecord("acr-123", detail, fp)
	require.NoError(t, err)

	assert.Equal(t, []byte{'M', 1, 24, 0}, msg[:4])
	bodyLen := SignatureSize + 4 + len(detail) + len(fp)
	assert.Equal(t, uint32(bodyLen+1), binary.BigEndian.Uint32(msg[4:8]))
	assert.Equal(t, TypeRecord, msg[8])

	off := HeaderSize + SignatureSize
	assert.Equal(t, uint32(len(detail)), binary.LittleEndian.Uint32(msg[off:off+4]))
	off += 4
	assert.Equal(t, detail, string(msg[off:off+len(detail)]))
	assert.Equal(t, fp, msg[off+len(detail):])
}

func TestSignatureLimits(t *testing.T) {
	full := strings.Repeat("x", SignatureSize)
	_, err := EncodeLive(full, nil)
	assert.NoError(t, err)

	_, err = EncodeLive(full+"y", nil)
	assert.True(t, errors.Is(err, ErrSignatureTooLong))

	_, err = EncodeRecord(full+"y", "d", nil)
	assert.True(t, errors.Is(err, ErrSignatureTooLong))
}

func TestRoundTripLive(t *testing.T) {
	fp := bytes.Repeat([]byte{0x5A}, 1000)
	raw, err := EncodeLive("channel-one", fp)
	require.NoError(t, err)

	msg, err := DecodeMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, FlagLive, msg.Flag)
	assert.Equal(t, TypeLive, msg.Type)
	assert.Equal(t, "channel-one", msg.Signature)
	assert.Empty(t, msg.Detail)
	assert.Equal(t, fp, msg.Fingerprint)
}

func TestRoundTripRecord(t *testing.T) {
	fp := []byte("fingerprint-bytes")
	raw, err := EncodeRecord("channel-two", "7:1700000123", fp)
	require.NoError(t, err)

	msg, err := DecodeMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, FlagRecord, msg.Flag)
	assert.Equal(t, TypeRecord, msg.Type)
	assert.Equal(t, "channel-two", msg.Signature)
	assert.Equal(t, "7:1700000123", msg.Detail)
	assert.Equal(t, fp, msg.Fingerprint)
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage(bytes.NewReader([]byte("GET / HTTP/1.1\r\n\r\n")))
	assert.True(t, errors.Is(err, ErrMalformedMessage))

	raw, err := EncodeRecord("c", "detail", nil)
	require.NoError(t, err)
	// claim a detail longer than the body
	binary.LittleEndian.PutUint32(raw[HeaderSize+SignatureSize:], 1000)
	_, err = DecodeMessage(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, ErrMalformedMessage))
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, 0, "ok"))
	assert.Equal(t, ResponseHeaderSize+2, buf.Len())

	resp, err := ReadResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(0), resp.Status)
	assert.Equal(t, "ok", resp.Message)
}

func TestReadResponseShortHeader(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestReadResponseShortMessage(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 10})
	buf.WriteString("abc")
	_, err := ReadResponse(&buf)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestReadResponseHugeLength(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte{0, 0, 0, 0, 0x7F, 0xFF, 0xFF, 0xFF}))
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}
