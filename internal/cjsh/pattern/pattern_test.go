package pattern

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		s, pattern string
		want       bool
	}{
		{"", "*", true},
		{"abc", "abc", true},
		{"abc", "a*c", true},
		{"abc", "a*d", false},
		{"abc", "?bc", true},
		{"abc", "??", false},
		{"a", "?", true},
		{"abc", "[a-c]bc", true},
		{"xbc", "[a-c]bc", false},
		{"xbc", "[^a-c]bc", true},
		{"abc", "x|a*", true},
		{"xyz", "x|a*", false},
		{"qqq", "x|a*", false},
		{"a.go", "*.go", true},
		{"a.py", "*.go", false},
		{"foo", "foo*", true},
		{"", "", true},
		{"a", "", false},
	}
	for _, tt := range tests {
		if got := Match(tt.s, tt.pattern); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.s, tt.pattern, got, tt.want)
		}
	}
}

func TestMatchSingleCharLaw(t *testing.T) {
	// §8 property 2: match(x, "?") is true iff len(x) == 1.
	cases := []string{"", "a", "ab", "abc"}
	for _, c := range cases {
		want := len(c) == 1
		if got := Match(c, "?"); got != want {
			t.Errorf("Match(%q, \"?\") = %v, want %v", c, got, want)
		}
	}
}
