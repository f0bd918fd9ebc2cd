package origin

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"HTTPS://App.Example.COM", "https://app.example.com"},
		{"https://app.example.com:8443", "https://app.example.com:8443"},
		{"https://app.example.com/some/path", "https://app.example.com"},
		{"  http://localhost:3000  ", "http://localhost:3000"},
		{"", ""},
		{"not a url", ""},
		{"example.com", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGateExactMatchOnly(t *testing.T) {
	g := NewGate([]string{"https://app.example.com", "http://localhost:3000", "junk"})

	if !g.Trusted("https://app.example.com") {
		t.Fatalf("expected configured origin to be trusted")
	}
	if !g.Trusted("HTTPS://APP.EXAMPLE.COM") {
		t.Fatalf("expected case-insensitive match")
	}
	if g.Trusted("https://evil.example.com") {
		t.Fatalf("unknown origin must not be trusted")
	}
	if g.Trusted("https://sub.app.example.com") {
		t.Fatalf("suffix match must not be trusted")
	}
	if g.Trusted("https://app.example.com:8443") {
		t.Fatalf("different port must not be trusted")
	}
	if g.Trusted("") {
		t.Fatalf("empty origin must not be trusted")
	}
}
