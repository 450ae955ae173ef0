// Package verify decides whether an engine's output may replace the
// canonical file. It decodes both images, compares pixels and sizes, and
// settles the step: commit, discard, or roll back.
package verify

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/backmassage/pngcrunch/internal/fsx"
)

// Verdict is the result of comparing a working copy against its canonical file.
type Verdict struct {
	Outcome        Outcome
	PixelIdentical bool
	SizeBefore     int64 // Canonical file.
	SizeAfter      int64 // Working copy.
	DecodeErr      error // Working copy failed to decode; counts as not identical.
}

// GotSmaller reports whether the working copy is strictly smaller.
func (v Verdict) GotSmaller() bool { return v.SizeAfter < v.SizeBefore }

// Check compares working against canonical. An error means the canonical
// file itself could not be read or decoded, which aborts the task.
func Check(canonical, working string) (Verdict, error) {
	before, err := fsx.Size(canonical)
	if err != nil {
		return Verdict{}, err
	}
	base, err := DecodeFile(canonical)
	if err != nil {
		return Verdict{}, fmt.Errorf("decode %s: %w", canonical, err)
	}

	v := Verdict{SizeBefore: before}
	v.SizeAfter, err = fsx.Size(working)
	if err != nil {
		// The engine removed its output: not identical and not smaller.
		v.SizeAfter = before
		v.DecodeErr = err
	} else if cand, err := DecodeFile(working); err != nil {
		v.DecodeErr = err
	} else {
		v.PixelIdentical = PixelsEqual(base, cand)
	}
	v.Outcome = Classify(v.PixelIdentical, v.GotSmaller())
	return v, nil
}

// Settle applies the verdict:
//
//	Improved  -> working atomically replaces canonical
//	NoGain    -> working is reset to canonical
//	Corrupted -> working is reset to canonical (rollback)
//	Invalid   -> *InvalidOutcomeError, nothing touched
func Settle(v Verdict, engineID, canonical, working string) error {
	switch v.Outcome {
	case Improved:
		if err := fsx.ReplaceAtomic(working, canonical); err != nil {
			return fmt.Errorf("commit %s output: %w", engineID, err)
		}
		return nil
	case NoGain, Corrupted:
		if err := fsx.CopyFile(canonical, working); err != nil {
			return fmt.Errorf("restore baseline after %s: %w", engineID, err)
		}
		return nil
	case Invalid:
		return &InvalidOutcomeError{
			Engine:     engineID,
			Path:       canonical,
			SizeBefore: v.SizeBefore,
			SizeAfter:  v.SizeAfter,
			DecodeErr:  v.DecodeErr,
		}
	default:
		return fmt.Errorf("unknown outcome %v", v.Outcome)
	}
}

// DecodeFile fully decodes the PNG at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(data))
}

// PixelsEqual reports whether a and b have the same bounds and exactly the
// same pixels. Pixels are compared as non-premultiplied 16-bit RGBA: color
// under alpha 0 counts, 8-bit values equal only their exact 16-bit
// widening, and a palette image equals its RGBA expansion.
func PixelsEqual(a, b image.Image) bool {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}

	for y := 0; y < ab.Dy(); y++ {
		if rowBytesEqual(a, b, y) {
			continue
		}
		for x := 0; x < ab.Dx(); x++ {
			if straight(a.At(ab.Min.X+x, ab.Min.Y+y)) != straight(b.At(bb.Min.X+x, bb.Min.Y+y)) {
				return false
			}
		}
	}
	return true
}

// straight widens c to non-premultiplied 16-bit RGBA. Non-premultiplied
// colors are widened directly since RGBA() would drop color under alpha 0.
func straight(c color.Color) color.NRGBA64 {
	switch c := c.(type) {
	case color.NRGBA64:
		return c
	case color.NRGBA:
		return color.NRGBA64{
			R: uint16(c.R) * 0x101,
			G: uint16(c.G) * 0x101,
			B: uint16(c.B) * 0x101,
			A: uint16(c.A) * 0x101,
		}
	}
	return color.NRGBA64Model.Convert(c).(color.NRGBA64)
}

// rowBytesEqual is the fast path for two images of the same common
// layout. A false result only means the row needs a per-pixel look.
func rowBytesEqual(a, b image.Image, y int) bool {
	switch a := a.(type) {
	case *image.NRGBA:
		if b, ok := b.(*image.NRGBA); ok {
			return bytes.Equal(row(a.Pix, a.Stride, a.Rect, y), row(b.Pix, b.Stride, b.Rect, y))
		}
	case *image.RGBA:
		if b, ok := b.(*image.RGBA); ok {
			return bytes.Equal(row(a.Pix, a.Stride, a.Rect, y), row(b.Pix, b.Stride, b.Rect, y))
		}
	}
	return false
}

// row returns the 4-byte-per-pixel row y (relative to r.Min) of pix.
func row(pix []byte, stride int, r image.Rectangle, y int) []byte {
	start := y * stride
	return pix[start : start+r.Dx()*4]
}
