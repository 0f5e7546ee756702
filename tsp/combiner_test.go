package tsp

import (
	"math"
	"testing"
)

func colorsClose(a, b [4]float32) bool {
	const eps = 1e-6
	for i := range a {
		if math.Abs(float64(a[i])-float64(b[i])) > eps {
			return false
		}
	}
	return true
}

func TestCombineModes(t *testing.T) {
	base := [4]float32{0.2, 0.2, 0.2, 0.5}
	tex := [4]float32{0.8, 0.4, 0.0, 0.6}
	zero := [3]float32{}

	tests := []struct {
		name string
		mode ShadingMode
		want [4]float32
	}{
		{"Decal", ShadingDecal, [4]float32{0.8, 0.4, 0.0, 0.6}},
		{"Modulate", ShadingModulate, [4]float32{0.16, 0.08, 0.0, 0.6}},
		{"DecalWithAlpha", ShadingDecalWithAlpha, [4]float32{0.56, 0.32, 0.08, 0.5}},
		{"ModulateWithAlpha", ShadingModulateWithAlpha, [4]float32{0.16, 0.08, 0.0, 0.3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(base, tex, zero, false, tt.mode)
			if !colorsClose(got, tt.want) {
				t.Errorf("Combine(%s) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestCombineUnrecognizedModeFallsBackToBase(t *testing.T) {
	base := [4]float32{0.2, 0.2, 0.2, 0.5}
	tex := [4]float32{0.8, 0.4, 0.0, 0.6}

	got := Combine(base, tex, [3]float32{}, false, ShadingMode(7))
	if !colorsClose(got, base) {
		t.Errorf("Combine(mode 7) = %v, want base %v", got, base)
	}
}

func TestCombineIgnoreAlphaForcesTexAlphaToOne(t *testing.T) {
	base := [4]float32{0.2, 0.2, 0.2, 0.5}
	tex := [4]float32{0.8, 0.4, 0.0, 0.6}
	zero := [3]float32{}

	// With tex_alpha forced to 1:
	//   Decal             -> a = 1
	//   Modulate          -> a = 1
	//   DecalWithAlpha    -> rgb = tex.rgb (full lerp toward texture), a = base.a
	//   ModulateWithAlpha -> a = base.a
	tests := []struct {
		mode ShadingMode
		want [4]float32
	}{
		{ShadingDecal, [4]float32{0.8, 0.4, 0.0, 1.0}},
		{ShadingModulate, [4]float32{0.16, 0.08, 0.0, 1.0}},
		{ShadingDecalWithAlpha, [4]float32{0.8, 0.4, 0.0, 0.5}},
		{ShadingModulateWithAlpha, [4]float32{0.16, 0.08, 0.0, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			got := Combine(base, tex, zero, true, tt.mode)
			if !colorsClose(got, tt.want) {
				t.Errorf("Combine(%s, ignoreAlpha) = %v, want %v", tt.mode, got, tt.want)
			}
		})
	}
}

func TestCombineOffsetColorIsAdditiveInEveryMode(t *testing.T) {
	base := [4]float32{0.2, 0.2, 0.2, 0.5}
	tex := [4]float32{0.1, 0.1, 0.1, 0.6}
	offset := [3]float32{0.05, 0.10, 0.15}

	modes := []ShadingMode{
		ShadingDecal, ShadingModulate, ShadingDecalWithAlpha,
		ShadingModulateWithAlpha, ShadingMode(99),
	}
	for _, mode := range modes {
		plain := Combine(base, tex, [3]float32{}, false, mode)
		shifted := Combine(base, tex, offset, false, mode)
		for i := 0; i < 3; i++ {
			want := plain[i] + offset[i]
			if math.Abs(float64(shifted[i])-float64(want)) > 1e-6 {
				t.Errorf("mode %v channel %d: got %v, want %v", mode, i, shifted[i], want)
			}
		}
		if shifted[3] != plain[3] {
			t.Errorf("mode %v: offset changed alpha from %v to %v", mode, plain[3], shifted[3])
		}
	}
}

func TestShadeUntexturedBypassesCombiner(t *testing.T) {
	base := [4]float32{0.3, 0.6, 0.9, 0.4}
	tex := [4]float32{1.0, 1.0, 1.0, 1.0}

	for mode := ShadingMode(0); mode < 5; mode++ {
		got := Shade(base, tex, [3]float32{0.5, 0.5, 0.5}, false, true, mode)
		if got != base {
			t.Errorf("Shade(untextured, mode %v) = %v, want base %v unchanged", mode, got, base)
		}
	}
}

func TestShadeTexturedMatchesCombine(t *testing.T) {
	base := [4]float32{0.2, 0.2, 0.2, 0.5}
	tex := [4]float32{0.8, 0.4, 0.0, 0.6}

	got := Shade(base, tex, [3]float32{}, true, false, ShadingModulate)
	want := Combine(base, tex, [3]float32{}, false, ShadingModulate)
	if got != want {
		t.Errorf("Shade(textured) = %v, want %v", got, want)
	}
}

func TestDiscardExactZeroOnly(t *testing.T) {
	if !Discard([4]float32{1, 1, 1, 0.0}) {
		t.Error("alpha exactly 0.0 must discard")
	}
	if Discard([4]float32{1, 1, 1, 0.0001}) {
		t.Error("alpha 0.0001 must draw")
	}
	if Discard([4]float32{0, 0, 0, 1.0}) {
		t.Error("opaque black must draw")
	}
}

func TestShadingModeString(t *testing.T) {
	if got := ShadingDecalWithAlpha.String(); got != "DecalWithAlpha" {
		t.Errorf("String() = %q, want DecalWithAlpha", got)
	}
	if got := ShadingMode(42).String(); got != "ShadingMode(42)" {
		t.Errorf("String() = %q, want ShadingMode(42)", got)
	}
}
