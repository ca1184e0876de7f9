package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func gradient(offset int) Buffer {
	var b Buffer
	for y := 0; y < Rows; y++ {
		for x := 0; x < Cols; x++ {
			b[y][x] = uint8((x + y + offset) % (MaxBrightness + 1))
		}
	}
	return b
}

func TestDisplayRoundTrip(t *testing.T) {
	for offset := 0; offset <= MaxBrightness; offset++ {
		want := gradient(offset)
		got, err := DecodeDisplay(EncodeDisplay(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	var zero, full Buffer
	for y := range full {
		for x := range full[y] {
			full[y][x] = MaxBrightness
		}
	}
	for _, want := range []Buffer{zero, full} {
		got, err := DecodeDisplay(EncodeDisplay(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestDisplayHeaderLayout(t *testing.T) {
	data := EncodeDisplay(gradient(3))
	require.Equal(t, byte(KindDisplay), data[0])
	require.Equal(t, uint32(displayMetaLength+Rows*Cols), binary.BigEndian.Uint32(data[2:6]))
	require.Equal(t, ElemUint8, data[6])
	require.Equal(t, uint16(Rows), binary.BigEndian.Uint16(data[7:9]))
	require.Equal(t, uint16(Cols), binary.BigEndian.Uint16(data[9:11]))
}

func TestDisplayRejectsMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"shape", func(d []byte) []byte { binary.BigEndian.PutUint16(d[7:9], 4); return d }, ErrShape},
		{"elem type", func(d []byte) []byte { d[6] = 0x07; return d }, ErrElemType},
		{"wrong kind", func(d []byte) []byte { d[0] = byte(KindControl); return d }, ErrKind},
		{"length", func(d []byte) []byte { return d[:len(d)-1] }, ErrLength},
		{"short", func(d []byte) []byte { return d[:3] }, ErrShort},
		{"raw truncated", func(d []byte) []byte {
			d = d[:len(d)-2]
			binary.BigEndian.PutUint32(d[2:6], uint32(len(d)-HeaderLength))
			return d
		}, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDisplay(tt.mutate(EncodeDisplay(gradient(1))))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDisplayDoesNotRepairRange(t *testing.T) {
	var b Buffer
	b[2][2] = 200
	require.False(t, b.Valid())
	got, err := DecodeDisplay(EncodeDisplay(b))
	require.NoError(t, err)
	require.Equal(t, uint8(200), got[2][2])
}

func TestControlRoundTrip(t *testing.T) {
	for _, s := range []string{"stop", "", "ünïcødé ✓", "line\nbreak"} {
		got, err := DecodeControl(EncodeControl(s))
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
	_, err := DecodeControl(frame(KindControl, 0, []byte{0xff, 0xfe}))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestOutputRoundTrip(t *testing.T) {
	long := strings.Repeat("Traceback (most recent call last): ✗\n", 200)
	for _, s := range []string{"hello\n", "", "片仮名", long} {
		data, err := EncodeOutput(s)
		require.NoError(t, err)
		got, err := DecodeOutput(data)
		require.NoError(t, err)
		require.Equal(t, s, got)
	}

	data, err := EncodeOutput(long)
	require.NoError(t, err)
	require.Equal(t, FlagZstd, data[1]&FlagZstd, "long output is compressed")
	require.Less(t, len(data), len(long))

	short, err := EncodeOutput("hi")
	require.NoError(t, err)
	require.Zero(t, short[1])
}

func TestOutputCorruptCompressedBody(t *testing.T) {
	_, err := DecodeOutput(frame(KindOutput, FlagZstd, []byte("not zstd at all")))
	require.Error(t, err)
}

func TestInputEventRoundTrip(t *testing.T) {
	for _, e := range []InputEvent{
		NewPress("button_a"),
		NewPress("button_b"),
		{Name: "logo", Transition: "release"},
	} {
		data, err := EncodeInputEvent(e)
		require.NoError(t, err)
		got, err := DecodeInputEvent(data)
		require.NoError(t, err)
		require.Equal(t, e.Name, got.Name)
		require.Equal(t, e.Transition, got.Transition)
	}
}

func TestInputEventRejectsGarbage(t *testing.T) {
	_, err := DecodeInputEvent(frame(KindInput, 0, []byte{0xff, 0x00, 0x13}))
	require.ErrorIs(t, err, ErrEvent)

	empty, err := EncodeInputEvent(InputEvent{})
	require.NoError(t, err)
	_, err = DecodeInputEvent(empty)
	require.ErrorIs(t, err, ErrEvent)
}

func TestReadFrameStream(t *testing.T) {
	var stream bytes.Buffer
	out, err := EncodeOutput("first")
	require.NoError(t, err)
	bogus := frame(Kind(0x7f), 0, []byte("junk body"))
	press, err := EncodeInputEvent(NewPress("button_a"))
	require.NoError(t, err)
	for _, f := range [][]byte{out, bogus, EncodeControl("stop"), press} {
		require.NoError(t, WriteFrame(&stream, f))
	}

	r := bufio.NewReader(&stream)
	got := make([][]byte, 0, 4)
	for {
		f, err := ReadFrame(r)
		if err != nil {
			require.True(t, errors.Is(err, io.EOF))
			break
		}
		got = append(got, f)
	}
	require.Len(t, got, 4)

	kind, err := Peek(got[1])
	require.NoError(t, err)
	require.Equal(t, Kind(0x7f), kind)
	_, err = DecodeControl(got[1])
	require.ErrorIs(t, err, ErrKind)

	ctl, err := DecodeControl(got[2])
	require.NoError(t, err)
	require.Equal(t, "stop", ctl)
}

func TestReadFrameSkipsOversizedBody(t *testing.T) {
	hdr := make([]byte, HeaderLength)
	hdr[0] = byte(KindOutput)
	binary.BigEndian.PutUint32(hdr[2:], MaxBodyLength+1)

	var stream bytes.Buffer
	stream.Write(hdr)
	stream.Write(make([]byte, MaxBodyLength+1))
	require.NoError(t, WriteFrame(&stream, EncodeControl("stop")))

	r := bufio.NewReader(&stream)
	_, err := ReadFrame(r)
	require.ErrorIs(t, err, ErrTooLarge)

	f, err := ReadFrame(r)
	require.NoError(t, err)
	ctl, err := DecodeControl(f)
	require.NoError(t, err)
	require.Equal(t, "stop", ctl)
}

func TestReadFrameOversizedTruncated(t *testing.T) {
	hdr := make([]byte, HeaderLength)
	hdr[0] = byte(KindOutput)
	binary.BigEndian.PutUint32(hdr[2:], MaxBodyLength+1)
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(hdr)))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
