package store

import "testing"

func TestWildcardMatches(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		// No metacharacter: strict equality.
		{"INBOX", "INBOX", true},
		{"INBOX", "INBOX.work", false},
		{"INBOX", "inbox", false}, // case-sensitive

		// Trailing wildcard spans hierarchy levels.
		{"INBOX%", "INBOX", true},
		{"INBOX%", "INBOX.work", true},
		{"INBOX%", "INBOX.work.todo", true},
		{"INBOX%", "Drafts", false},
		{"INBOX.work%", "INBOX.work", true},
		{"INBOX.work%", "INBOX.work.todo", true},
		{"INBOX.work%", "INBOX.perso", false},

		// Leading and inner wildcards.
		{"%todo", "INBOX.work.todo", true},
		{"%todo", "INBOX.work.done", false},
		{"IN%X", "INBOX", true},
		{"IN%X", "INBOX.work", false},
		{"%", "anything", true},
		{"%", "", true},
		{"a%b%b", "abb", true},
		{"a%bb", "ab", false},
		{"a%b", "a\nb", true}, // '%' spans newlines too

		// Anchoring: never a substring match.
		{"BOX", "INBOX", false},
		{"INBOX.", "INBOX", false},

		// '?' is literal, never "any one character".
		{"INB?X", "INBOX", false},
		{"INB?X", "INB?X", true},

		// The delimiter is not special to the matcher.
		{"INBOX.%", "INBOX", false},
		{"INBOX.%", "INBOX.work", true},
	}

	for _, tt := range tests {
		if got := Wildcard(tt.pattern).Matches(tt.name); got != tt.want {
			t.Errorf("Wildcard(%q).Matches(%q) = %t, want %t", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestWildcardSQLLikePattern(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"INBOX%", "INBOX%"},
		{"INB?X", "INB?X"},                 // '?' is nothing special to LIKE either
		{"box_1%", `box\_1%`},              // literal '_' must not become LIKE's single-char wildcard
		{`back\slash%`, `back\\slash%`},    // escape character itself
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := Wildcard(tt.pattern).SQLLikePattern(); got != tt.want {
			t.Errorf("Wildcard(%q).SQLLikePattern() = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestWildcardRegexpPattern(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"INBOX%", "INBOX.work", true},
		{"INBOX%", "Drafts", false},
		{"INB?X", "INBOX", false}, // '?' must be quoted, not "optional B"
		{"INB?X", "INB?X", true},
		{"a.b%", "a.b.c", true},
		{"a.b%", "aXbYc", false},   // '.' must be quoted
		{"a.b%", "a.b\nc", true},   // '%' crosses newlines, so the regex needs (?s)
	}

	for _, tt := range tests {
		re := Wildcard(tt.pattern).Regexp()
		if got := re.MatchString(tt.name); got != tt.want {
			t.Errorf("Wildcard(%q).Regexp().MatchString(%q) = %t, want %t (regexp %q)",
				tt.pattern, tt.name, got, tt.want, re.String())
		}
	}
}

// The regex translation must agree with the reference matcher on every
// input, since regex-native backends substitute one for the other.
func TestWildcardTranslationsAgree(t *testing.T) {
	patterns := []string{"INBOX%", "%work%", "INB?X", "a%b%b", "%", "IN%X", "INBOX.work%", "a%b"}
	// "a\nb" exercises '%' absorbing a newline, which the regexp form only
	// does under the (?s) flag.
	names := []string{"INBOX", "INBOX.work", "INBOX.work.todo", "INB?X", "abb", "ab", "", "work", "a\nb", "a\nxb"}

	for _, p := range patterns {
		w := Wildcard(p)
		re := w.Regexp()
		for _, n := range names {
			if w.Matches(n) != re.MatchString(n) {
				t.Errorf("pattern %q, name %q: Matches=%t but regexp=%t", p, n, w.Matches(n), re.MatchString(n))
			}
		}
	}
}

func TestEscapeSQLLike(t *testing.T) {
	if got := EscapeSQLLike("100%_done\\"); got != `100\%\_done\\` {
		t.Errorf("EscapeSQLLike: got %q", got)
	}
}

func TestHasChildName(t *testing.T) {
	tests := []struct {
		parent    string
		candidate string
		want      bool
	}{
		{"INBOX", "INBOX.work", true},
		{"INBOX", "INBOX.work.todo", true}, // transitive descendants count
		{"INBOX", "INBOX", false},
		{"INBOX", "INBOX.", false}, // empty suffix is not a child
		{"INBOX", "INBOXwork", false},
		{"INBOX.work", "INBOX.worker", false},
	}

	for _, tt := range tests {
		if got := HasChildName(tt.parent, tt.candidate, '.'); got != tt.want {
			t.Errorf("HasChildName(%q, %q) = %t, want %t", tt.parent, tt.candidate, got, tt.want)
		}
	}
}

func TestExactNameMatches(t *testing.T) {
	if !ExactName("INBOX").Matches("INBOX") {
		t.Error("exact name should match itself")
	}
	if ExactName("INBOX%").Matches("INBOX.work") {
		t.Error("'%' must not be a metacharacter in ExactName")
	}
	if !ExactName("INBOX%").Matches("INBOX%") {
		t.Error("literal '%' should match itself in ExactName")
	}
}
