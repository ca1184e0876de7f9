package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/svanichkin/pixelsim/codec"
)

var (
	ErrBrightness = errors.New("sim: brightness out of range")
	ErrPosition   = errors.New("sim: pixel position out of range")
)

// Display is the virtual 5x5 LED matrix. Every mutation hands a copy of the
// buffer to the change callback.
type Display struct {
	mu       sync.Mutex
	buf      codec.Buffer
	on       bool
	onChange func(codec.Buffer)
}

// NewDisplay returns a blank, switched-on display.
func NewDisplay(onChange func(codec.Buffer)) *Display {
	return &Display{on: true, onChange: onChange}
}

func checkPos(x, y int) error {
	if x < 0 || x >= codec.Cols || y < 0 || y >= codec.Rows {
		return fmt.Errorf("%w: (%d, %d)", ErrPosition, x, y)
	}
	return nil
}

func checkValue(v int) error {
	if v < 0 || v > codec.MaxBrightness {
		return fmt.Errorf("%w: %d", ErrBrightness, v)
	}
	return nil
}

// changed must be called with mu held so snapshots leave in mutation order.
func (d *Display) changed() {
	if d.onChange == nil {
		return
	}
	if !d.on {
		d.onChange(codec.Buffer{})
		return
	}
	d.onChange(d.buf)
}

// SetPixel sets column x of row y to brightness v.
func (d *Display) SetPixel(x, y, v int) error {
	if err := checkPos(x, y); err != nil {
		return err
	}
	if err := checkValue(v); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf[y][x] = uint8(v)
	d.changed()
	return nil
}

func (d *Display) GetPixel(x, y int) (int, error) {
	if err := checkPos(x, y); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.buf[y][x]), nil
}

func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = codec.Buffer{}
	d.changed()
}

// Fill sets every pixel to v.
func (d *Display) Fill(v int) error {
	if err := checkValue(v); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for y := range d.buf {
		for x := range d.buf[y] {
			d.buf[y][x] = uint8(v)
		}
	}
	d.changed()
	return nil
}

// Show replaces the whole image.
func (d *Display) Show(img codec.Buffer) error {
	if !img.Valid() {
		return ErrBrightness
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = img
	d.changed()
	return nil
}

// On lights the LEDs again with the retained image.
func (d *Display) On() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = true
	d.changed()
}

// Off blanks the LEDs; the image is kept and drawing continues off-screen.
func (d *Display) Off() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.on = false
	d.changed()
}

func (d *Display) IsOn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.on
}

// Snapshot returns a copy of the current image.
func (d *Display) Snapshot() codec.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf
}
