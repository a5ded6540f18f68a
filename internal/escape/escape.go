// Package escape recognizes engine escape codes embedded in dialogue text.
// Codes are opaque: they are matched and compared, never interpreted.
package escape

import (
	"regexp"
	"sort"
	"strings"
)

// Code is a detected escape code and its byte position.
type Code struct {
	Value string
	Start int
	End   int
}

// patterns detect escape codes in script lines.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\\[A-Za-z]+\[[^\]]*\]`), // \c[2], \ts[1], \v[12], \se[Bell]
	regexp.MustCompile(`\\[A-Za-z]+`),           // \n, \PN, \wu
	regexp.MustCompile(`\\[.|!^<>]`),            // \., \|, \!, \^
}

// AttachesToSpeaker reports whether text opens with a color (\c) or
// text-speed (\ts) code, which is written directly after the speaker tag.
func AttachesToSpeaker(text string) bool {
	return strings.HasPrefix(text, `\c`) || strings.HasPrefix(text, `\ts`)
}

// Scan returns the escape codes in text ordered by position. Where
// patterns overlap, the longest match at a position wins.
func Scan(text string) []Code {
	var all []Code
	for _, p := range patterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			all = append(all, Code{Value: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End-all[i].Start > all[j].End-all[j].Start
	})

	var filtered []Code
	lastEnd := -1
	for _, c := range all {
		if c.Start >= lastEnd {
			filtered = append(filtered, c)
			lastEnd = c.End
		}
	}
	return filtered
}

// Missing returns the codes of original that do not appear in translated,
// counting repeated codes separately.
func Missing(original, translated string) []string {
	have := make(map[string]int)
	for _, c := range Scan(translated) {
		have[c.Value]++
	}

	var missing []string
	for _, c := range Scan(original) {
		if have[c.Value] > 0 {
			have[c.Value]--
			continue
		}
		missing = append(missing, c.Value)
	}
	return missing
}
