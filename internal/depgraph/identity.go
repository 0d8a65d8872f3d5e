package depgraph

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// displayOverrides holds vendors whose canonical casing is not
// capitalize-first. Keys are identity keys.
var displayOverrides = map[string]string{
	"auth0":      "Auth0",
	"sendgrid":   "SendGrid",
	"mongodb":    "MongoDB",
	"paypal":     "PayPal",
	"datadog":    "Datadog",
	"twilio":     "Twilio",
	"okta":       "Okta",
	"stripe":     "Stripe",
	"pagerduty":  "PagerDuty",
	"github":     "GitHub",
	"gitlab":     "GitLab",
	"openai":     "OpenAI",
	"hubspot":    "HubSpot",
	"cloudflare": "Cloudflare",
}

// IdentityKey is the case-folded, whitespace-trimmed vendor name used as
// the unique lookup key.
func IdentityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResourceIdentity normalizes a platform resource path. Paths are already
// platform-canonical, so only surrounding whitespace is removed.
func ResourceIdentity(path string) string {
	return strings.TrimSpace(path)
}

// DisplayName returns the cosmetic name used in simulation results: input
// that already starts upper-case is kept, known vendors get their canonical
// casing, anything else is capitalized.
func DisplayName(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if IsCapitalized(trimmed) {
		return trimmed
	}
	key := IdentityKey(trimmed)
	if override, ok := displayOverrides[key]; ok {
		return override
	}
	return capitalize(key)
}

// IsCapitalized reports whether s starts with an upper-case letter.
func IsCapitalized(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// IsAllLower reports whether s has letters and none of them are upper-case.
func IsAllLower(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// TitleCase upper-cases the first letter of every word.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LookupCandidates returns the keys tried, in order, against datasets keyed
// by vendor display name: the display name, the raw input, the identity key,
// and the title-cased input when it has more than one word. Duplicates and
// empty keys are dropped without changing the order.
func LookupCandidates(input string) []string {
	candidates := []string{DisplayName(input), input, IdentityKey(input)}
	if strings.Contains(strings.TrimSpace(input), " ") {
		candidates = append(candidates, TitleCase(input))
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
