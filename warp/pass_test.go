package warp

import (
	"errors"
	"testing"
)

type testBuffer struct{ w, h int }

func (b testBuffer) Width() int     { return b.w }
func (b testBuffer) Height() int    { return b.h }
func (b testBuffer) Format() Format { return FormatRGBA16Float }
func (b testBuffer) Label() string  { return "test" }

func TestPassIDString(t *testing.T) {
	tests := []struct {
		pass PassID
		want string
	}{
		{PassOrientationalTimewarp, "OrientationalTimewarp"},
		{PassAccurateSpacewarp, "AccurateSpacewarp"},
		{PassInitialize, "Initialize"},
		{PassDisplayPrevious, "DisplayPrevious"},
		{PassID(42), "PassID(42)"},
	}
	for _, tt := range tests {
		if got := tt.pass.String(); got != tt.want {
			t.Errorf("PassID(%d).String() = %q, want %q", uint8(tt.pass), got, tt.want)
		}
	}
}

func TestPassIDClassification(t *testing.T) {
	for p := PassID(0); p < passCount; p++ {
		wantTechnique := p <= PassAccurateSpacewarp
		if p.IsTechnique() != wantTechnique {
			t.Errorf("%v.IsTechnique() = %v, want %v", p, p.IsTechnique(), wantTechnique)
		}
		wantOutputs := 1
		if p == PassInitialize {
			wantOutputs = 2
		}
		if p.Outputs() != wantOutputs {
			t.Errorf("%v.Outputs() = %d, want %d", p, p.Outputs(), wantOutputs)
		}
	}
	if PassID(NumPasses).Valid() {
		t.Error("PassID(NumPasses) should be invalid")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		format Format
		name   string
		bpp    int
		signed bool
	}{
		{FormatRGBA16Float, "RGBA16Float", 8, true},
		{FormatRGBA32Float, "RGBA32Float", 16, true},
		{FormatRGBA8Unorm, "RGBA8Unorm", 4, false},
		{FormatBGRA8Unorm, "BGRA8Unorm", 4, false},
		{Format(99), "Unknown(99)", 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.format.BytesPerPixel(); got != tt.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.bpp)
			}
			if got := tt.format.Signed(); got != tt.signed {
				t.Errorf("Signed() = %v, want %v", got, tt.signed)
			}
		})
	}
}

func TestBufferDesc(t *testing.T) {
	d := BufferDesc{Width: 16, Height: 8, Format: FormatRGBA16Float}
	if got := d.SizeBytes(); got != 16*8*8 {
		t.Errorf("SizeBytes() = %d, want %d", got, 16*8*8)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	bad := BufferDesc{Width: 0, Height: 8}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Validate() = %v, want ErrInvalidDimensions", err)
	}
	if bad.SizeBytes() != 0 {
		t.Errorf("SizeBytes() of invalid desc = %d, want 0", bad.SizeBytes())
	}
}

func TestCheckOutputs(t *testing.T) {
	a := testBuffer{4, 4}
	b := testBuffer{4, 4}
	c := testBuffer{2, 4}

	tests := []struct {
		name    string
		pass    PassID
		out     []Buffer
		wantErr error
	}{
		{"display one output", PassDisplay, []Buffer{a}, nil},
		{"initialize two outputs", PassInitialize, []Buffer{a, b}, nil},
		{"initialize one output", PassInitialize, []Buffer{a}, ErrInvocation},
		{"nil output", PassDisplay, []Buffer{nil}, ErrInvocation},
		{"size mismatch", PassInitialize, []Buffer{a, c}, ErrSizeMismatch},
		{"invalid pass", PassID(200), []Buffer{a}, ErrUnsupportedPass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOutputs(tt.pass, tt.out)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckOutputs() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckOutputs() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequires(t *testing.T) {
	buf := testBuffer{4, 4}
	tests := []struct {
		name string
		pass PassID
		b    Bindings
		ok   bool
	}{
		{"display without source", PassDisplay, Bindings{}, false},
		{"display with source", PassDisplay, Bindings{Source: buf}, true},
		{"display previous without reference", PassDisplayPrevious, Bindings{Source: buf}, false},
		{"reset needs nothing", PassResetMotionVectorHistory, Bindings{}, true},
		{"positional without depth", PassPositionalTimewarpBackward, Bindings{PreviousColor: buf}, false},
		{"positional complete", PassPositionalTimewarpForward, Bindings{PreviousColor: buf, PreviousMotionDepth: buf}, true},
		{"spacewarp without history", PassAccurateSpacewarp, Bindings{PreviousColor: buf}, false},
		{"spacewarp complete", PassAccurateSpacewarp, Bindings{PreviousColor: buf, MotionHistory: buf}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Requires(tt.pass, tt.b)
			if tt.ok && err != nil {
				t.Errorf("Requires() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrMissingInput) {
				t.Errorf("Requires() = %v, want ErrMissingInput", err)
			}
		})
	}
}

func TestParamsFlags(t *testing.T) {
	p := Params{FillOutOfScreenOcclusion: 1, FillDepthOcclusion: 0}
	if !p.FillOutOfScreen() {
		t.Error("FillOutOfScreen() = false, want true")
	}
	if p.FillDepth() {
		t.Error("FillDepth() = true, want false")
	}
}
