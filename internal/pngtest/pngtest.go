// Package pngtest builds PNG fixtures and fake engine steps for tests.
package pngtest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/backmassage/pngcrunch/internal/engine"
)

// Gradient returns a w x h NRGBA image with a deterministic pattern and a
// fully transparent top-left pixel.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x + y) % 7 * 36),
				A: 255,
			})
		}
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	return img
}

// Encode returns img as PNG bytes at the given compression level.
func Encode(t testing.TB, img image.Image, level png.CompressionLevel) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteUncompressed writes a stored (zero-effort) PNG of a w x h gradient
// to path. The real encoders always have room to shrink it.
func WriteUncompressed(t testing.TB, path string, w, h int) {
	t.Helper()
	write(t, path, Encode(t, Gradient(w, h), png.NoCompression))
}

// WriteOptimal writes a gradient PNG that Reencode cannot shrink further.
func WriteOptimal(t testing.TB, path string, w, h int) {
	t.Helper()
	write(t, path, Encode(t, Gradient(w, h), png.BestCompression))
}

// Decode reads and decodes the PNG at path.
func Decode(t testing.TB, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func write(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Behavior selects what a fake Step does to the working copy.
type Behavior int

const (
	// Reencode rewrites the working copy losslessly at best compression.
	Reencode Behavior = iota
	// Noop leaves the working copy as it is.
	Noop
	// FlipPixel changes one pixel and re-encodes at best compression,
	// producing a smaller but visually different file.
	FlipPixel
	// FlipAndGrow changes one pixel and pads the file past its original
	// size.
	FlipAndGrow
	// Garbage overwrites the working copy with bytes that do not decode.
	Garbage
	// Fail leaves the file alone and reports failure.
	Fail
)

// Step is a fake engine.Step driven by a Behavior.
type Step struct {
	Name     string
	Behavior Behavior
	// FreshCopy mirrors engine.Spec.FreshCopy.
	FreshCopy bool
	// Delay is slept before acting; it ignores ctx like real engines do.
	Delay time.Duration

	calls atomic.Int64
}

var _ engine.Step = (*Step)(nil)

// ID implements engine.Step.
func (s *Step) ID() string { return s.Name }

// Calls returns how many times Run was invoked.
func (s *Step) Calls() int { return int(s.calls.Load()) }

// Run implements engine.Step.
func (s *Step) Run(_ context.Context, canonical, working string) engine.Result {
	s.calls.Add(1)
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	res := engine.Result{Engine: s.Name, Succeeded: true}
	fail := func(err error) engine.Result {
		res.Succeeded = false
		res.Err = err
		return res
	}

	if s.FreshCopy {
		data, err := os.ReadFile(canonical)
		if err != nil {
			return fail(err)
		}
		if err := os.WriteFile(working, data, 0o644); err != nil {
			return fail(err)
		}
	}

	switch s.Behavior {
	case Noop:
		return res
	case Fail:
		return fail(errFake)
	case Garbage:
		if err := os.WriteFile(working, []byte("not a png"), 0o644); err != nil {
			return fail(err)
		}
		return res
	}

	before, err := os.Stat(working)
	if err != nil {
		return fail(err)
	}
	data, err := os.ReadFile(working)
	if err != nil {
		return fail(err)
	}
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fail(err)
	}
	img := image.NewNRGBA(src.Bounds())
	for y := src.Bounds().Min.Y; y < src.Bounds().Max.Y; y++ {
		for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
			img.Set(x, y, src.At(x, y))
		}
	}
	if s.Behavior == FlipPixel || s.Behavior == FlipAndGrow {
		b := img.Bounds()
		c := img.NRGBAAt(b.Max.X-1, b.Max.Y-1)
		c.R ^= 0xff
		img.SetNRGBA(b.Max.X-1, b.Max.Y-1, c)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return fail(err)
	}
	out := buf.Bytes()
	if s.Behavior == FlipAndGrow {
		// Trailing bytes after IEND are ignored by the decoder.
		if pad := int(before.Size()) - len(out) + 64; pad > 0 {
			out = append(out, make([]byte, pad)...)
		}
	}
	if err := os.WriteFile(working, out, 0o644); err != nil {
		return fail(err)
	}
	return res
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errFake = fakeError("fake engine failure")
