package verify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/backmassage/pngcrunch/internal/pngtest"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		identical, smaller bool
		want               Outcome
	}{
		{true, true, Improved},
		{true, false, NoGain},
		{false, true, Corrupted},
		{false, false, Invalid},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := Classify(tt.identical, tt.smaller); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.identical, tt.smaller, got, tt.want)
			}
		})
	}
}

func TestPixelsEqual(t *testing.T) {
	base := pngtest.Gradient(8, 6)

	same := image.NewNRGBA(base.Rect)
	copy(same.Pix, base.Pix)

	// Different color under alpha 0.
	hidden := image.NewNRGBA(base.Rect)
	copy(hidden.Pix, base.Pix)
	hidden.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	flipped := image.NewNRGBA(base.Rect)
	copy(flipped.Pix, base.Pix)
	flipped.SetNRGBA(7, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	// Same pixels widened to 16 bits per channel.
	wide := image.NewNRGBA64(base.Rect)
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			c := base.NRGBAAt(x, y)
			wide.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(c.R) * 0x101,
				G: uint16(c.G) * 0x101,
				B: uint16(c.B) * 0x101,
				A: uint16(c.A) * 0x101,
			})
		}
	}

	// Palette image and its RGBA expansion.
	pal := color.Palette{color.NRGBA{R: 10, G: 20, B: 30, A: 0}, color.NRGBA{R: 200, G: 100, B: 0, A: 255}}
	paletted := image.NewPaletted(base.Rect, pal)
	expanded := image.NewNRGBA(base.Rect)
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			paletted.SetColorIndex(x, y, uint8((x+y)%2))
			expanded.Set(x, y, pal[(x+y)%2])
		}
	}

	tests := []struct {
		name string
		b    image.Image
		want bool
	}{
		{"identical", same, true},
		{"color under alpha 0 differs", hidden, false},
		{"one pixel differs", flipped, false},
		{"exact 16-bit widening", wide, true},
		{"different bounds", pngtest.Gradient(8, 5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PixelsEqual(base, tt.b); got != tt.want {
				t.Errorf("PixelsEqual = %v, want %v", got, tt.want)
			}
		})
	}

	if !PixelsEqual(paletted, expanded) {
		t.Error("palette image differs from its RGBA expansion")
	}
}

func TestPixelsEqual_SixteenBitPrecision(t *testing.T) {
	r := image.Rect(0, 0, 1, 1)
	deep := image.NewNRGBA64(r)
	deep.SetNRGBA64(0, 0, color.NRGBA64{R: 0x1234, G: 0x5678, B: 0x9abc, A: 0x0101})
	shallow := image.NewNRGBA(r)
	shallow.SetNRGBA(0, 0, color.NRGBA{R: 0x12, G: 0x56, B: 0x9a, A: 0x01})

	if PixelsEqual(deep, shallow) {
		t.Error("16-bit pixel equals its 8-bit truncation")
	}

	// Premultiplied, these two collapse to the same value.
	a := image.NewNRGBA64(r)
	a.SetNRGBA64(0, 0, color.NRGBA64{R: 0xffff, G: 0, B: 0, A: 1})
	b := image.NewNRGBA64(r)
	b.SetNRGBA64(0, 0, color.NRGBA64{R: 0xfff0, G: 0, B: 0, A: 1})
	if PixelsEqual(a, b) {
		t.Error("distinct colors at low alpha compared equal")
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		behavior pngtest.Behavior
		want     Outcome
	}{
		{"lossless shrink", pngtest.Reencode, Improved},
		{"untouched", pngtest.Noop, NoGain},
		{"smaller but altered", pngtest.FlipPixel, Corrupted},
		{"larger and altered", pngtest.FlipAndGrow, Invalid},
		{"undecodable output", pngtest.Garbage, Corrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, working := fixture(t)
			step := &pngtest.Step{Name: "fake", Behavior: tt.behavior}
			if res := step.Run(context.Background(), canonical, working); !res.Succeeded {
				t.Fatalf("fake step failed: %v", res.Err)
			}
			v, err := Check(canonical, working)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if v.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v (verdict %+v)", v.Outcome, tt.want, v)
			}
		})
	}
}

func TestCheck_BadCanonical(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "a.png")
	working := filepath.Join(dir, "a_tmp.png")
	if err := os.WriteFile(canonical, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(working, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Check(canonical, working); err == nil {
		t.Fatal("expected error for undecodable canonical file")
	}
}

func TestSettle(t *testing.T) {
	t.Run("improved commits", func(t *testing.T) {
		canonical, working := fixture(t)
		run(t, pngtest.Reencode, canonical, working)
		want, _ := os.ReadFile(working)
		v := mustCheck(t, canonical, working)
		if err := Settle(v, "fake", canonical, working); err != nil {
			t.Fatal(err)
		}
		got, _ := os.ReadFile(canonical)
		if !bytes.Equal(got, want) {
			t.Error("canonical does not hold the committed candidate")
		}
	})

	for _, b := range []pngtest.Behavior{pngtest.Noop, pngtest.FlipPixel} {
		canonical, working := fixture(t)
		orig, _ := os.ReadFile(canonical)
		run(t, b, canonical, working)
		v := mustCheck(t, canonical, working)
		if err := Settle(v, "fake", canonical, working); err != nil {
			t.Fatalf("%v: %v", v.Outcome, err)
		}
		got, _ := os.ReadFile(canonical)
		if !bytes.Equal(got, orig) {
			t.Errorf("%v: canonical changed", v.Outcome)
		}
		w, _ := os.ReadFile(working)
		if !bytes.Equal(w, orig) {
			t.Errorf("%v: working copy not reset to baseline", v.Outcome)
		}
	}

	t.Run("invalid aborts", func(t *testing.T) {
		canonical, working := fixture(t)
		orig, _ := os.ReadFile(canonical)
		run(t, pngtest.FlipAndGrow, canonical, working)
		v := mustCheck(t, canonical, working)
		err := Settle(v, "fake", canonical, working)
		if !IsInvalidOutcome(err) {
			t.Fatalf("Settle error = %v, want InvalidOutcomeError", err)
		}
		got, _ := os.ReadFile(canonical)
		if !bytes.Equal(got, orig) {
			t.Error("canonical changed on invalid outcome")
		}
	})
}

func fixture(t *testing.T) (canonical, working string) {
	t.Helper()
	dir := t.TempDir()
	canonical = filepath.Join(dir, "icon.png")
	working = filepath.Join(dir, "icon_tmp.png")
	pngtest.WriteUncompressed(t, canonical, 32, 24)
	data, err := os.ReadFile(canonical)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(working, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return canonical, working
}

func run(t *testing.T, b pngtest.Behavior, canonical, working string) {
	t.Helper()
	step := &pngtest.Step{Name: "fake", Behavior: b}
	if res := step.Run(context.Background(), canonical, working); !res.Succeeded {
		t.Fatalf("fake step failed: %v", res.Err)
	}
}

func mustCheck(t *testing.T, canonical, working string) Verdict {
	t.Helper()
	v, err := Check(canonical, working)
	if err != nil {
		t.Fatal(err)
	}
	return v
}
