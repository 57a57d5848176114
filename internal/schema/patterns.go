package schema

import (
	"regexp"

	"github.com/tidelake/tidelake/pkg/types"
)

// dateRe matches calendar dates without a time component.
var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// patternMatchers maps each semantic tag to its recognizer, checked in a
// fixed order so tagging output is deterministic.
var patternMatchers = []struct {
	pattern types.Pattern
	re      *regexp.Regexp
}{
	{types.PatternEmail, regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)},
	{types.PatternURL, regexp.MustCompile(`^https?://[^\s]+$`)},
	{types.PatternUUID, regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)},
	{types.PatternIP, regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)},
	{types.PatternPhone, regexp.MustCompile(`^\+?[0-9][0-9\-\s()]{6,18}[0-9]$`)},
	{types.PatternCreditCard, regexp.MustCompile(`^(\d[ -]?){13,19}$`)},
}

// detectPatterns tags string values whose match ratio meets the threshold.
func detectPatterns(values []interface{}, threshold float64) []types.Pattern {
	strings := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			strings = append(strings, s)
		}
	}
	if len(strings) == 0 {
		return nil
	}

	var tags []types.Pattern
	for _, m := range patternMatchers {
		matched := 0
		for _, s := range strings {
			if m.re.MatchString(s) {
				matched++
			}
		}
		if float64(matched)/float64(len(strings)) >= threshold {
			tags = append(tags, m.pattern)
		}
	}
	return tags
}
