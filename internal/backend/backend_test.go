package backend

import "testing"

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		probe    Probe
		expected Backend
	}{
		{"filter available", func() bool { return true }, TarBz2},
		{"filter missing", func() bool { return false }, Zip},
		{"nil probe", nil, Zip},
		{"panicking probe", func() bool { panic("no bz2") }, Zip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.probe); got != tt.expected {
				t.Errorf("Select() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestSelectDeterministic(t *testing.T) {
	calls := 0
	probe := func() bool { calls++; return true }

	for i := 0; i < 3; i++ {
		if got := Select(probe); got != TarBz2 {
			t.Fatalf("Select() = %q on call %d", got, i)
		}
	}
	if calls != 3 {
		t.Errorf("probe called %d times, expected 3", calls)
	}
}

func TestBz2Available(t *testing.T) {
	if !Bz2Available() {
		t.Error("Bz2Available() = false, bzip2 filter is linked in")
	}
}

func TestDefaultIsStable(t *testing.T) {
	first := Default()
	if first != TarBz2 {
		t.Errorf("Default() = %q, expected %q", first, TarBz2)
	}
	if second := Default(); second != first {
		t.Errorf("Default() changed from %q to %q", first, second)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		expected Backend
		wantErr  bool
	}{
		{"zip", Zip, false},
		{"ZIP", Zip, false},
		{"tar.bz2", TarBz2, false},
		{" bz2 ", TarBz2, false},
		{"tarbz2", TarBz2, false},
		{"gzip", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %q, expected %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	if got, _ := Resolve("auto", yes); got != TarBz2 {
		t.Errorf("Resolve(auto, yes) = %q", got)
	}
	if got, _ := Resolve("", no); got != Zip {
		t.Errorf("Resolve(\"\", no) = %q", got)
	}
	if got, _ := Resolve("zip", yes); got != Zip {
		t.Errorf("Resolve(zip, yes) = %q, forced backend must win", got)
	}
	if _, err := Resolve("rar", yes); err == nil {
		t.Error("Resolve(rar) should fail")
	}
}

func TestExtension(t *testing.T) {
	if Zip.Extension() != ".zip" {
		t.Errorf("Zip.Extension() = %q", Zip.Extension())
	}
	if TarBz2.Extension() != ".tar.bz2" {
		t.Errorf("TarBz2.Extension() = %q", TarBz2.Extension())
	}
}
