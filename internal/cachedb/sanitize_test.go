package cachedb

import "testing"

func TestSanitizeFTS(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantDegen  bool
		wantOutput string
	}{
		{"simple word", "alice", false, `"alice"`},
		{"multi word", "alice bob", false, `"alice" "bob"`},
		{"strips quotes and quotes operators", `alice*" OR bob`, false, `"alice*"` + ` "OR" "bob"`},
		{"drops NEAR", "alice NEAR bob", false, `"alice" "bob"`},
		{"strips embedded quotes", `ali"ce`, false, `"alice"`},
		{"empty is degenerate", "", true, ""},
		{"whitespace only is degenerate", "   ", true, ""},
		{"wildcard only is degenerate", `* "**"`, true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, degen := sanitizeFTS(tc.query)
			if degen != tc.wantDegen {
				t.Fatalf("degenerate = %v, want %v", degen, tc.wantDegen)
			}
			if !degen && got != tc.wantOutput {
				t.Fatalf("got %q, want %q", got, tc.wantOutput)
			}
		})
	}
}

func TestLikePattern(t *testing.T) {
	cases := map[string]string{
		"alice":   "alice",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\ed`: `back\\ed`,
	}
	for in, want := range cases {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
