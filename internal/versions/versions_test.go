package versions

import (
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		// semver precedence
		{"1.0", "2.0", -1},
		{"0.8", "0.8.0", 0},
		{"v1.2.10", "1.2.9", 1},
		{"3.4.0", "3.4.0", 0},
		{"1.0.0-rc.1", "1.0.0", -1},

		// Debian-style fallback
		{"1.01", "1.1", 0},
		{"1.0~rc1", "1.0", -1},
		{"1.0a", "1.0", 1},
		{"1.0alpha1", "1.0alpha2", -1},
		{"2.6.32", "2.6.32.1", -1},
		{"1.0.0.0", "1.0.0", 1},
		{"1-2", "1.2", -1},
		{"1_2", "1.2", 1},
		{"1.0+git20200101", "1.0+git20200102", -1},
		{"release-1.0", "release-2.0", -1},
		{"", "", 0},
		{"1", "", 1},
		{"~", "", -1},
		{"system", "system", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	candidates := []string{"0.6", "0.8", "0.9.1", "1.0"}
	tests := []struct {
		target string
		want   string
		ok     bool
	}{
		{"0.8", "0.8", true},
		{"0.8.5", "0.8", true},
		{"0.9.1", "0.9.1", true},
		{"2.0", "1.0", true},
		{"0.5", "", false},
	}
	for _, tt := range tests {
		got, ok := Select(candidates, tt.target)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Select(%q) = %q, %v; want %q, %v", tt.target, got, ok, tt.want, tt.ok)
		}
	}
	if _, ok := Select(nil, "1.0"); ok {
		t.Error("Select over no candidates should fail")
	}
}
