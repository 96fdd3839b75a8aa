// Package upload implements the binary fingerprint upload protocol and the
// blocking request/response exchange with the fingerprint backend.
package upload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Header field values. All multi-byte header fields are big-endian.
const (
	ProtocolTag byte = 'M'
	Version     byte = 1
	Opcode      byte = 24

	FlagLive   byte = 1
	FlagRecord byte = 0

	TypeLive   byte = 1
	TypeRecord byte = 2

	// HeaderSize covers tag, version, opcode, flag, length and type.
	HeaderSize = 9
	// SignatureSize is the fixed width of the zero-padded channel signature.
	SignatureSize = 32
	// ResponseHeaderSize is status code + message length.
	ResponseHeaderSize = 8

	// MaxResponseMessage bounds the server message we are willing to read.
	MaxResponseMessage = 1 << 20
	// MaxMessageBody bounds decoded request bodies.
	MaxMessageBody = 64 << 20
)

var (
	ErrSignatureTooLong  = errors.New("channel signature longer than 32 bytes")
	ErrMalformedResponse = errors.New("malformed upload response")
	ErrMalformedMessage  = errors.New("malformed upload message")
)

// Message is the decoded form of an upload request.
type Message struct {
	Flag        byte
	Type        byte
	Signature   string
	Detail      string
	Fingerprint []byte
}

// Response is the backend reply to an upload.
type Response struct {
	Status  int32
	Message string
}

// EncodeLive frames a live fingerprint upload.
func EncodeLive(signature string, fp []byte) ([]byte, error) {
	sig, err := padSignature(signature)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, SignatureSize+len(fp))
	body = append(body, sig...)
	body = append(body, fp...)
	return frame(FlagLive, TypeLive, body), nil
}

// EncodeRecord frames a record upload. The detail length prefix is
// little-endian, unlike the header.
func EncodeRecord(signature, detail string, fp []byte) ([]byte, error) {
	sig, err := padSignature(signature)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, SignatureSize+4+len(detail)+len(fp))
	body = append(body, sig...)
	body = binary.LittleEndian.AppendUint32(body, uint32(len(detail)))
	body = append(body, detail...)
	body = append(body, fp...)
	return frame(FlagRecord, TypeRecord, body), nil
}

func frame(flag, msgType byte, body []byte) []byte {
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, ProtocolTag, Version, Opcode, flag)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)+1))
	out = append(out, msgType)
	return append(out, body...)
}

func padSignature(signature string) ([]byte, error) {
	if len(signature) > SignatureSize {
		return nil, fmt.Errorf("%w: %q", ErrSignatureTooLong, signature)
	}
	sig := make([]byte, SignatureSize)
	copy(sig, signature)
	return sig, nil
}

// DecodeMessage reads one framed upload request. It is the server half of
// the protocol and is used by test backends.
func DecodeMessage(r io.Reader) (*Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr[0] != ProtocolTag || hdr[1] != Version || hdr[2] != Opcode {
		return nil, fmt.Errorf("%w: bad header % x", ErrMalformedMessage, hdr[:3])
	}
	length := binary.BigEndian.Uint32(hdr[4:8])
	if length < 1+SignatureSize || length > MaxMessageBody {
		return nil, fmt.Errorf("%w: body length %d", ErrMalformedMessage, length)
	}
	body := make([]byte, length-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	msg := &Message{
		Flag:      hdr[3],
		Type:      hdr[8],
		Signature: trimSignature(body[:SignatureSize]),
	}
	rest := body[SignatureSize:]

	switch msg.Type {
	case TypeLive:
	case TypeRecord:
		if len(rest) < 4 {
			return nil, fmt.Errorf("%w: missing detail length", ErrMalformedMessage)
		}
		n := binary.LittleEndian.Uint32(rest[:4])
		rest = rest[4:]
		if uint64(n) > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: detail length %d", ErrMalformedMessage, n)
		}
		msg.Detail = string(rest[:n])
		rest = rest[n:]
	default:
		return nil, fmt.Errorf("%w: message type %d", ErrMalformedMessage, msg.Type)
	}
	msg.Fingerprint = rest
	return msg, nil
}

func trimSignature(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// WriteResponse writes a backend reply: status and message length as
// big-endian int32, then the message.
func WriteResponse(w io.Writer, status int32, message string) error {
	buf := make([]byte, 0, ResponseHeaderSize+len(message))
	buf = binary.BigEndian.AppendUint32(buf, uint32(status))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(message)))
	buf = append(buf, message...)
	_, err := w.Write(buf)
	return err
}

// ReadResponse reads exactly one backend reply.
func ReadResponse(r io.Reader) (*Response, error) {
	var hdr [ResponseHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	status := int32(binary.BigEndian.Uint32(hdr[0:4]))
	length := int32(binary.BigEndian.Uint32(hdr[4:8]))
	if length < 0 || length > MaxResponseMessage {
		return nil, fmt.Errorf("%w: message length %d", ErrMalformedResponse, length)
	}
	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &Response{Status: status, Message: string(msg)}, nil
}
