package quotescan

import "testing"

func TestUnclosedQuoteColumn(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"balanced single", "echo 'hi'", 0},
		{"balanced double", `echo "hi"`, 0},
		{"unclosed single", "echo 'hi", 6},
		{"unclosed double", `echo "hi`, 6},
		{"escaped quote inside double stays open", `echo "a\"b`, 6},
		{"nothing quoted", "echo hi", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnclosedQuoteColumn(tt.in); got != tt.want {
				t.Errorf("UnclosedQuoteColumn(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripQuotes(t *testing.T) {
	tests := []struct{ in, want string }{
		{`'hello'`, "hello"},
		{`"hello"`, "hello"},
		{`hello`, "hello"},
		{`"a\"b"`, `a"b`},
		{`'a\'`, `a\`},
		{`a'b'c`, "abc"},
	}
	for _, tt := range tests {
		if got := StripQuotes(tt.in); got != tt.want {
			t.Errorf("StripQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScannerAdvance(t *testing.T) {
	sc := NewScanner(`a'b"c`)
	var last State
	for i := 0; i < len(`a'b"c`); i++ {
		last = sc.Advance(`a'b"c`[i])
	}
	if !last.InSingle {
		t.Fatalf("expected still inside single quote at end of scan, got %+v", last)
	}
}

func TestEffective(t *testing.T) {
	s := State{}
	if !s.Effective() {
		t.Fatal("zero-value state should be effective")
	}
	s.InDouble = true
	if s.Effective() {
		t.Fatal("state inside double quotes should not be effective")
	}
}
