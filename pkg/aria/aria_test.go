package aria

import "testing"

func TestAttribute_Kind(t *testing.T) {
	for _, a := range []Attribute{Busy, Checked, Disabled, Expanded, Grabbed, Hidden, Invalid, Pressed, Selected} {
		if !a.IsState() || a.IsProperty() {
			t.Errorf("%s should be a state", a)
		}
	}
	for _, a := range []Attribute{Owns, Label, ValueNow, HasPopup} {
		if a.IsState() || !a.IsProperty() {
			t.Errorf("%s should be a property", a)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Attribute
		wantErr bool
	}{
		{"checked", Checked, false},
		{"aria-expanded", Expanded, false},
		{" OWNS ", Owns, false},
		{"aria-bogus", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if Checked.Name() != "aria-checked" {
		t.Errorf("Name() = %q", Checked.Name())
	}
}
