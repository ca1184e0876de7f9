package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Kind identifies the payload carried by a frame. Each frame starts with a
// 6-byte header: [1 byte kind][1 byte flags][4 bytes big-endian body length],
// followed by the body itself.
type Kind byte

const (
	KindDisplay Kind = 0x01
	KindControl Kind = 0x02
	KindInput   Kind = 0x03
	KindOutput  Kind = 0x04
)

// FlagZstd marks a body that was compressed with zstd before framing.
const FlagZstd byte = 0x01

// HeaderLength is the fixed size of a frame header.
const HeaderLength = 6

// MaxBodyLength bounds a single frame body. Output chunks are the largest
// traffic on the bus; 1 MiB is far beyond any single write.
const MaxBodyLength = 1 << 20

var (
	ErrKind      = errors.New("codec: unexpected frame kind")
	ErrShort     = errors.New("codec: frame shorter than header")
	ErrLength    = errors.New("codec: body length does not match header")
	ErrTooLarge  = errors.New("codec: frame body too large")
	ErrShape     = errors.New("codec: display shape mismatch")
	ErrElemType  = errors.New("codec: unsupported element type")
	ErrTruncated = errors.New("codec: display payload truncated")
	ErrEncoding  = errors.New("codec: text is not valid UTF-8")
)

func (k Kind) String() string {
	switch k {
	case KindDisplay:
		return "display"
	case KindControl:
		return "control"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	default:
		return fmt.Sprintf("kind(0x%02x)", byte(k))
	}
}

// frame assembles header and body into a single slice so that one Write call
// puts the whole frame on the wire.
func frame(kind Kind, flags byte, body []byte) []byte {
	out := make([]byte, HeaderLength+len(body))
	out[0] = byte(kind)
	out[1] = flags
	binary.BigEndian.PutUint32(out[2:HeaderLength], uint32(len(body)))
	copy(out[HeaderLength:], body)
	return out
}

// Peek returns the kind of an encoded frame without validating the body.
func Peek(data []byte) (Kind, error) {
	if len(data) < HeaderLength {
		return 0, ErrShort
	}
	return Kind(data[0]), nil
}

// open validates the header of data against the expected kind and returns the
// flags and body.
func open(data []byte, want Kind) (byte, []byte, error) {
	if len(data) < HeaderLength {
		return 0, nil, ErrShort
	}
	if got := Kind(data[0]); got != want {
		return 0, nil, fmt.Errorf("%w: got %s, want %s", ErrKind, got, want)
	}
	n := binary.BigEndian.Uint32(data[2:HeaderLength])
	if n > MaxBodyLength {
		return 0, nil, ErrTooLarge
	}
	body := data[HeaderLength:]
	if uint32(len(body)) != n {
		return 0, nil, fmt.Errorf("%w: header %d, got %d", ErrLength, n, len(body))
	}
	return data[1], body, nil
}

// WriteFrame writes one already encoded frame to w.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) < HeaderLength {
		return ErrShort
	}
	_, err := w.Write(data)
	return err
}

// ReadFrame reads a single frame from the buffered reader and returns it whole,
// header included. The body is consumed even when its kind is unknown, so a
// malformed frame never shifts the read position of the stream. An oversized
// frame is skipped and reported with ErrTooLarge; the stream stays usable.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	h, err := r.Peek(HeaderLength)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(h[2:HeaderLength])
	if n > MaxBodyLength {
		kind := Kind(h[0])
		if _, err := io.CopyN(io.Discard, r, HeaderLength+int64(n)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s frame of %d bytes", ErrTooLarge, kind, n)
	}
	buf := make([]byte, HeaderLength+int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
