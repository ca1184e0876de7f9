package codec

import (
	"bytes"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the body size from which output text is compressed.
// Short prints stay raw; tracebacks and bulk dumps shrink well under zstd.
const compressThreshold = 512

var (
	zstdEncoderLevel = zstd.SpeedDefault

	sharedZstdEncoder persistentZstdEncoder
	sharedZstdDecoder persistentZstdDecoder
)

type persistentZstdEncoder struct {
	once sync.Once
	mu   sync.Mutex
	enc  *zstd.Encoder
	err  error
}

func (p *persistentZstdEncoder) use(fn func(*zstd.Encoder) error) error {
	p.once.Do(func() {
		p.enc, p.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdEncoderLevel))
	})
	if p.err != nil {
		return p.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return fn(p.enc)
}

type persistentZstdDecoder struct {
	once sync.Once
	mu   sync.Mutex
	dec  *zstd.Decoder
	err  error
}

func (p *persistentZstdDecoder) use(fn func(*zstd.Decoder) error) error {
	p.once.Do(func() {
		p.dec, p.err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBodyLength*4))
	})
	if p.err != nil {
		return p.err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return fn(p.dec)
}

func compressZstd(data []byte) ([]byte, error) {
	var out []byte
	err := sharedZstdEncoder.use(func(enc *zstd.Encoder) error {
		out = enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		return nil
	})
	return out, err
}

func decompressZstd(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := sharedZstdDecoder.use(func(dec *zstd.Decoder) error {
		if err := dec.Reset(bytes.NewReader(data)); err != nil {
			return err
		}
		_, err := out.ReadFrom(dec)
		return err
	}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// EncodeControl frames a control string such as "stop".
func EncodeControl(text string) []byte {
	return frame(KindControl, 0, []byte(text))
}

// DecodeControl returns the control string carried by data.
func DecodeControl(data []byte) (string, error) {
	_, body, err := open(data, KindControl)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(body) {
		return "", ErrEncoding
	}
	return string(body), nil
}

// EncodeOutput frames a chunk of console output. Large chunks are compressed;
// the flag byte tells the decoder which form it got.
func EncodeOutput(text string) ([]byte, error) {
	body := []byte(text)
	if len(body) < compressThreshold {
		return frame(KindOutput, 0, body), nil
	}
	packed, err := compressZstd(body)
	if err != nil {
		return nil, fmt.Errorf("compress output: %w", err)
	}
	if len(packed) >= len(body) {
		return frame(KindOutput, 0, body), nil
	}
	return frame(KindOutput, FlagZstd, packed), nil
}

// DecodeOutput returns the exact text passed to EncodeOutput.
func DecodeOutput(data []byte) (string, error) {
	flags, body, err := open(data, KindOutput)
	if err != nil {
		return "", err
	}
	if flags&FlagZstd != 0 {
		body, err = decompressZstd(body)
		if err != nil {
			return "", fmt.Errorf("decompress output: %w", err)
		}
	}
	if !utf8.Valid(body) {
		return "", ErrEncoding
	}
	return string(body), nil
}
