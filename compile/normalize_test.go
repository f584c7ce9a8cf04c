package compile

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"my-directive":       "my_directive",
		"x:my-directive":     "my_directive",
		"x-my-directive":     "my_directive",
		"x_my-directive":     "my_directive",
		"data:my-directive":  "my_directive",
		"data-my-directive":  "my_directive",
		"DATA_My:Directive":  "my_directive",
		"xmy-directive":      "xmy_directive",
		"datamy":             "datamy",
		"op-app":             "op_app",
		"my-directive-start": "my_directive_start",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseRestrict(t *testing.T) {
	cases := []struct {
		in   string
		want Restrict
	}{
		{"E", RestrictElement},
		{"A", RestrictAttribute},
		{"ea", DefaultRestrict},
		{"ECMA", DefaultRestrict},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ParseRestrict(tc.in); got != tc.want {
			t.Fatalf("ParseRestrict(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if DefaultRestrict.String() != "EA" {
		t.Fatalf("DefaultRestrict.String() = %q", DefaultRestrict.String())
	}
	if RestrictElement.Has(RestrictAttribute) {
		t.Fatalf("element restrict should not include attribute")
	}
}

func TestGroupStart(t *testing.T) {
	cases := []struct {
		in   string
		base string
		ok   bool
	}{
		{"my_dir_start", "my_dir", true},
		{"dir_start", "dir", true},
		{"my_dir_end", "", false},
		{"start", "", false},
		{"_start", "", false},
		{"mystart", "", false},
	}
	for _, tc := range cases {
		base, ok := groupStart(tc.in)
		if base != tc.base || ok != tc.ok {
			t.Fatalf("groupStart(%q) = %q, %v, want %q, %v", tc.in, base, ok, tc.base, tc.ok)
		}
	}
}
