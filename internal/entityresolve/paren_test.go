package entityresolve

import "testing"

func TestStripParenthetical(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"دفع الإيجار (متأخرة)", "دفع الإيجار"},
		{"pay rent (overdue)", "pay rent"},
		{"no parens here", "no parens here"},
		{"multiple (one) words (two)", "multiple words"},
	}
	for _, c := range cases {
		if got := StripParenthetical(c.in); got != c.want {
			t.Errorf("StripParenthetical(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
