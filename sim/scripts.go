package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/svanichkin/pixelsim/codec"
)

// Script is a device program. It runs until it returns or the simulator stops;
// stopping is reported as a context error.
type Script func(s *Simulator) error

var scripts = map[string]Script{
	"sine":     Sine,
	"gradient": Gradient,
	"buttons":  Buttons,
}

// Lookup returns the built-in script called name.
func Lookup(name string) (Script, error) {
	if fn, ok := scripts[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("sim: unknown script %q (have %s)", name, strings.Join(Names(), ", "))
}

// Names lists the built-in scripts.
func Names() []string {
	out := make([]string, 0, len(scripts))
	for name := range scripts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run executes fn and treats a stop of the simulator as a clean exit.
func Run(s *Simulator, fn Script) error {
	err := fn(s)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SineLevel is the brightness of pixel (x, y) for a ripple centred on the
// middle LED, at phase offset.
func SineLevel(x, y int, offset float64) int {
	const half = codec.MaxBrightness / 2.0
	cx, cy := 2.0, 2.0
	maxDist := math.Hypot(cx, cy) * 2
	d := math.Hypot(float64(x)-cx, float64(y)-cy) / maxDist
	d = math.Mod(d-offset, 1)
	if d < 0 {
		d++
	}
	return int(math.Round(math.Sin(d*2*math.Pi-math.Pi)*half + half))
}

// Sine animates a ripple spreading outwards from the centre.
func Sine(s *Simulator) error {
	offset := 0.0
	last := s.RunningTime()
	for {
		for x := 0; x < codec.Cols; x++ {
			for y := 0; y < codec.Rows; y++ {
				if err := s.Display.SetPixel(x, y, SineLevel(x, y, offset)); err != nil {
					return err
				}
			}
		}
		now := s.RunningTime()
		offset += float64(now-last) * 0.001
		last = now
		if err := s.Sleep(10); err != nil {
			return err
		}
	}
}

// GradientLevel is the brightness of pixel (x, y) for a diagonal gradient
// shifted by offset.
func GradientLevel(x, y int, offset float64) int {
	const span = 5.0
	pos := math.Mod(offset+float64(x+y), span)
	if pos < 0 {
		pos += span
	}
	return int(math.Round(pos / span * codec.MaxBrightness))
}

// Gradient scrolls a diagonal gradient towards the top left corner.
func Gradient(s *Simulator) error {
	offset := 0.0
	last := s.RunningTime()
	for {
		for x := 0; x < codec.Cols; x++ {
			for y := 0; y < codec.Rows; y++ {
				if err := s.Display.SetPixel(x, y, GradientLevel(x, y, offset)); err != nil {
					return err
				}
			}
		}
		now := s.RunningTime()
		offset += float64(now-last) * 0.01
		last = now
		if err := s.Sleep(1); err != nil {
			return err
		}
	}
}

// Buttons lights the left half on button A and the right half on button B,
// fading back over time, and prints a line per press.
func Buttons(s *Simulator) error {
	var left, right int
	var countA, countB int
	for {
		if n := s.ButtonA.GetPresses(); n > 0 {
			countA += n
			left = codec.MaxBrightness
			fmt.Printf("button A pressed (%d total)\n", countA)
		}
		if n := s.ButtonB.GetPresses(); n > 0 {
			countB += n
			right = codec.MaxBrightness
			fmt.Printf("button B pressed (%d total)\n", countB)
		}
		var img codec.Buffer
		for y := 0; y < codec.Rows; y++ {
			for x := 0; x < 2; x++ {
				img[y][x] = uint8(left)
				img[y][codec.Cols-1-x] = uint8(right)
			}
			img[y][2] = uint8(min(countA+countB, codec.MaxBrightness))
		}
		if err := s.Display.Show(img); err != nil {
			return err
		}
		left = max(left-1, 0)
		right = max(right-1, 0)
		if err := s.Sleep(50); err != nil {
			return err
		}
	}
}
