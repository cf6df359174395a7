package mapping

import (
	"sort"
	"strings"
)

// vocabEntry pairs a lowercase substring pattern with the registry element
// display name it flags.
type vocabEntry struct {
	pattern string
	element string
}

// Bednet type vocabulary. Free-text type answers may claim several active
// ingredient classes, so every matching pattern is emitted.
var bednetTypeVocab = []vocabEntry{
	{"pyrethroid + pbo", "Bednet Type - Pyrethroid + PBO"},
	{"pyrethroid-pbo", "Bednet Type - Pyrethroid + PBO"},
	{"pbo", "Bednet Type - Pyrethroid + PBO"},
	{"pyrethroid", "Bednet Type - Pyrethroid"},
	{"dual active", "Bednet Type - Dual Active Ingredient"},
	{"chlorfenapyr", "Bednet Type - Chlorfenapyr"},
	{"organophosphate", "Bednet Type - Organophosphate"},
}

// Bednet brand vocabulary. A net has a single brand, so matching stops at the
// first hit.
var bednetBrandVocab = []vocabEntry{
	{"olyset plus", "Bednet Brand - Olyset Plus"},
	{"olyset", "Bednet Brand - Olyset"},
	{"permanet 3.0", "Bednet Brand - PermaNet 3.0"},
	{"permanet", "Bednet Brand - PermaNet"},
	{"interceptor g2", "Bednet Brand - Interceptor G2"},
	{"interceptor", "Bednet Brand - Interceptor"},
	{"royal sentry", "Bednet Brand - Royal Sentry"},
	{"duranet", "Bednet Brand - DuraNet"},
}

func init() {
	sortLongestFirst(bednetTypeVocab)
	sortLongestFirst(bednetBrandVocab)
}

// sortLongestFirst orders patterns by descending length so a short pattern
// ("pyrethroid") never shadows a more specific one ("pyrethroid + pbo").
func sortLongestFirst(vocab []vocabEntry) {
	sort.SliceStable(vocab, func(i, j int) bool {
		return len(vocab[i].pattern) > len(vocab[j].pattern)
	})
}

// matchAll returns the element names for every pattern found in text. Matched
// regions are masked so a shorter pattern contained in an already matched
// longer one does not fire again.
func matchAll(vocab []vocabEntry, text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	seen := make(map[string]struct{})
	for _, entry := range vocab {
		if !strings.Contains(lower, entry.pattern) {
			continue
		}
		lower = strings.ReplaceAll(lower, entry.pattern, "\x00")
		if _, dup := seen[entry.element]; dup {
			continue
		}
		seen[entry.element] = struct{}{}
		matched = append(matched, entry.element)
	}
	return matched
}

// matchFirst returns the element name of the longest pattern found in text,
// or "" when nothing matches.
func matchFirst(vocab []vocabEntry, text string) string {
	lower := strings.ToLower(text)
	for _, entry := range vocab {
		if strings.Contains(lower, entry.pattern) {
			return entry.element
		}
	}
	return ""
}
