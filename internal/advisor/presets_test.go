package advisor

import "testing"

func TestDefaultPresets_Shape(t *testing.T) {
	t.Parallel()
	p := DefaultPresets()
	if len(p) != 5 {
		t.Fatalf("categories = %d, want 5", len(p))
	}
	for _, c := range p {
		if len(c.Questions) != 4 {
			t.Errorf("%s has %d questions, want 4", c.Name, len(c.Questions))
		}
	}
	if got := len(p.Flat()); got != 20 {
		t.Errorf("Flat() = %d questions, want 20", got)
	}

	p[0].Questions[0] = "changed"
	if DefaultPresets()[0].Questions[0] == "changed" {
		t.Error("DefaultPresets should return a fresh copy")
	}
}

func TestPresets_Lookup(t *testing.T) {
	t.Parallel()
	p := DefaultPresets()

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "1.1", want: "Mere wheat ki leaves pe yellow spots aa gaye hai, kya karu?"},
		{ref: " 3.2 ", want: "Kharif crop ke liye konsa month right hai?"},
		{ref: "5.4", want: "Onion cultivation ka right method kya hai?"},
		{ref: "0.1", wantErr: true},
		{ref: "6.1", wantErr: true},
		{ref: "2.5", wantErr: true},
		{ref: "2", wantErr: true},
		{ref: "a.b", wantErr: true},
	}
	for _, tt := range tests {
		got, err := p.Lookup(tt.ref)
		if (err != nil) != tt.wantErr {
			t.Errorf("Lookup(%q) err = %v, wantErr %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestPresetStore(t *testing.T) {
	t.Parallel()
	s := NewPresetStore(nil)
	if len(s.Get()) != 5 {
		t.Fatal("empty store should hold the defaults")
	}
	s.Set(Presets{{Name: "Dairy", Questions: []string{"Ghee kaise banaye?"}}})
	if got, _ := s.Get().Lookup("1.1"); got != "Ghee kaise banaye?" {
		t.Errorf("after Set, 1.1 = %q", got)
	}
	s.Set(nil)
	if len(s.Get()) != 5 {
		t.Error("Set(nil) should restore the defaults")
	}
}
