package codec

import (
	"encoding/binary"
	"fmt"
)

// Display geometry and brightness range of the simulated device.
const (
	Rows          = 5
	Cols          = 5
	MaxBrightness = 9
)

// ElemUint8 is the only element type the display link carries.
const ElemUint8 byte = 0x01

const displayMetaLength = 5

// Buffer is a snapshot of the LED matrix, indexed [row][col]. It is a value
// type: assigning or passing it copies the grid.
type Buffer [Rows][Cols]uint8

// Valid reports whether every cell is within 0..MaxBrightness.
func (b Buffer) Valid() bool {
	for y := range b {
		for x := range b[y] {
			if b[y][x] > MaxBrightness {
				return false
			}
		}
	}
	return true
}

// EncodeDisplay frames a display buffer as
// [elem type][rows u16][cols u16][row-major raw bytes].
// Cell values are written verbatim; range checking belongs to the producer.
func EncodeDisplay(b Buffer) []byte {
	body := make([]byte, displayMetaLength+Rows*Cols)
	body[0] = ElemUint8
	binary.BigEndian.PutUint16(body[1:3], Rows)
	binary.BigEndian.PutUint16(body[3:5], Cols)
	i := displayMetaLength
	for y := 0; y < Rows; y++ {
		copy(body[i:i+Cols], b[y][:])
		i += Cols
	}
	return frame(KindDisplay, 0, body)
}

// DecodeDisplay reverses EncodeDisplay. A frame declaring another element type
// or shape is rejected rather than coerced.
func DecodeDisplay(data []byte) (Buffer, error) {
	var b Buffer
	_, body, err := open(data, KindDisplay)
	if err != nil {
		return b, err
	}
	if len(body) < displayMetaLength {
		return b, ErrTruncated
	}
	if body[0] != ElemUint8 {
		return b, fmt.Errorf("%w: 0x%02x", ErrElemType, body[0])
	}
	rows := int(binary.BigEndian.Uint16(body[1:3]))
	cols := int(binary.BigEndian.Uint16(body[3:5]))
	if rows != Rows || cols != Cols {
		return b, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShape, rows, cols, Rows, Cols)
	}
	raw := body[displayMetaLength:]
	if len(raw) != rows*cols {
		return b, fmt.Errorf("%w: %d bytes for %dx%d", ErrTruncated, len(raw), rows, cols)
	}
	for y := 0; y < Rows; y++ {
		copy(b[y][:], raw[y*Cols:(y+1)*Cols])
	}
	return b, nil
}
