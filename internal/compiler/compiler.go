// Package compiler serializes a translated document back into the flat
// script format, pairing each original line with its translation.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"rpgm-intl/internal/escape"
	"rpgm-intl/internal/parser"
	"rpgm-intl/internal/textutil"
)

// LineEnding is the convention used when joining compiled lines.
const LineEnding = "\r\n"

const generatedNotice = "# This file has been generated automatically."

// entry is one flattened dialogue line ready for emission.
type entry struct {
	id          int
	original    string
	translation string
}

// Compile renders doc as output lines: two header lines, then for every
// section its marker followed by original/translation pairs in source order.
func Compile(doc parser.Document, label string) []string {
	out := []string{
		fmt.Sprintf("# Compiled strings - %s", label),
		generatedNotice,
	}

	for _, section := range doc {
		out = append(out, section.Name)

		entries := flatten(section)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

		for _, e := range entries {
			out = append(out, e.original)
			if textutil.IsNumber(e.original) {
				continue
			}
			out = append(out, e.translation)
		}
	}

	return out
}

// Join concatenates compiled lines with LineEnding.
func Join(lines []string) string {
	return strings.Join(lines, LineEnding)
}

func flatten(section parser.Section) []entry {
	var entries []entry
	for i := range section.Characters {
		c := &section.Characters[i]

		if c.Unattributed() {
			for _, l := range c.Lines {
				entries = append(entries, entry{id: l.ID, original: l.Text, translation: l.Translated()})
			}
			continue
		}

		name := c.Name
		if c.DisplayName != nil && c.DisplayName.HasTranslation() {
			name = *c.DisplayName.Translation
		}

		for _, l := range c.Lines {
			sep := separator(l.Text)
			entries = append(entries, entry{
				id:          l.ID,
				original:    c.Name + sep + l.Text,
				translation: name + sep + l.Translated(),
			})
		}
	}
	return entries
}

// separator returns the text placed between a speaker tag and its line.
// Lines opening with a color or text-speed escape attach directly.
func separator(text string) string {
	if escape.AttachesToSpeaker(text) {
		return ""
	}
	return " "
}
