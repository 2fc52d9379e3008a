package logging

import "testing"

func TestRedactPhone(t *testing.T) {
	cases := map[string]string{
		"+15551230000": "****0000",
		"123":          "****",
		"":             "****",
	}
	for in, want := range cases {
		if got := RedactPhone(in); got != want {
			t.Fatalf("RedactPhone(%q) = %q, want %q", in, got, want)
		}
	}
}
