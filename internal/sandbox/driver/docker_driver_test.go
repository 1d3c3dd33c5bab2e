package driver

import "testing"

func TestParseMemory(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"128m", 128 * 1024 * 1024, false},
		{"1g", 1024 * 1024 * 1024, false},
		{"512k", 512 * 1024, false},
		{"", 0, false},
		{"notanumber", 0, true},
	}
	for _, c := range cases {
		got, err := parseMemory(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseMemory(%q): want error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMemory(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseMemory(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestClassifyRuntimeErr(t *testing.T) {
	if classifyRuntimeErr(nil) != nil {
		t.Error("classifyRuntimeErr(nil) should be nil")
	}
}
