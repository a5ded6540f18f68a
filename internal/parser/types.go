package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// UnattributedName is the reserved character name collecting untagged narration.
	UnattributedName = "__UNKNOWN"
	// DisplayNameID marks the display-name line in the draft wire format.
	DisplayNameID = -1
)

// Document is an ordered sequence of sections, in source order.
type Document []Section

// Section is one map segment of the script.
type Section struct {
	// Name is the marker line that opened the section, verbatim.
	Name string
	// Characters are kept in order of first appearance.
	Characters []Character
}

// Character is a speaker, or the unattributed bucket for narration.
type Character struct {
	// Name is the speaker tag (without colon) or UnattributedName.
	Name string
	// DisplayName holds the translatable name of the speaker.
	// It is nil for the unattributed bucket.
	DisplayName *Line
	// Lines are dialogue lines in order of appearance.
	Lines []Line
}

// Line is a single line of dialogue or narration.
type Line struct {
	// ID is the zero-based source line index, used to restore source order.
	ID int
	// PreviousText is the line that preceded this one in the source.
	PreviousText string
	// Text is the original-language content.
	Text string
	// Translation is nil until a translator fills it in.
	Translation *string
}

// Unattributed reports whether c is the narration bucket.
func (c *Character) Unattributed() bool {
	return c.Name == UnattributedName
}

// Translated returns the translation, or the original text when the
// translation is absent or empty.
func (l Line) Translated() string {
	if l.Translation == nil || *l.Translation == "" {
		return l.Text
	}
	return *l.Translation
}

// HasTranslation reports whether a non-empty translation is attached.
func (l Line) HasTranslation() bool {
	return l.Translation != nil && *l.Translation != ""
}

// SetTranslation attaches a translation to the line.
func (l *Line) SetTranslation(s string) {
	l.Translation = &s
}

// Section returns the first section named name.
func (d Document) Section(name string) (*Section, bool) {
	for i := range d {
		if d[i].Name == name {
			return &d[i], true
		}
	}
	return nil, false
}

// Character returns the first character named name.
func (s *Section) Character(name string) (*Character, bool) {
	for i := range s.Characters {
		if s.Characters[i].Name == name {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// Stats summarizes translation progress of a document.
type Stats struct {
	Sections   int
	Characters int
	Lines      int
	Translated int
	Names      int
	NamesDone  int
}

// Stats counts sections, speakers and lines, and how many carry a translation.
func (d Document) Stats() Stats {
	var st Stats
	st.Sections = len(d)
	for _, s := range d {
		for _, c := range s.Characters {
			st.Characters++
			if c.DisplayName != nil {
				st.Names++
				if c.DisplayName.HasTranslation() {
					st.NamesDone++
				}
			}
			for _, l := range c.Lines {
				st.Lines++
				if l.HasTranslation() {
					st.Translated++
				}
			}
		}
	}
	return st
}

// DuplicateSections returns section names that occur more than once.
// Lookups by name resolve to the first of them.
func (d Document) DuplicateSections() []string {
	seen := make(map[string]int, len(d))
	var dups []string
	for _, s := range d {
		seen[s.Name]++
		if seen[s.Name] == 2 {
			dups = append(dups, s.Name)
		}
	}
	return dups
}

// Validate checks that display names are present exactly for speakers.
func (d Document) Validate() error {
	for _, s := range d {
		for _, c := range s.Characters {
			if c.Unattributed() && c.DisplayName != nil {
				return fmt.Errorf("section %q: unattributed lines cannot carry a display name", s.Name)
			}
			if !c.Unattributed() && c.DisplayName == nil {
				return fmt.Errorf("section %q: character %q has no display name", s.Name, c.Name)
			}
		}
	}
	return nil
}

// --- draft wire format ---

type wireCharacter struct {
	Name  string     `json:"name"`
	Lines []wireLine `json:"lines"`
}

type wireLine struct {
	ID           int     `json:"id"`
	PreviousText string  `json:"previousText"`
	Text         string  `json:"text"`
	Translation  *string `json:"translation,omitempty"`
}

func toWire(l Line) wireLine {
	return wireLine{ID: l.ID, PreviousText: l.PreviousText, Text: l.Text, Translation: l.Translation}
}

func fromWire(w wireLine) Line {
	return Line{ID: w.ID, PreviousText: w.PreviousText, Text: w.Text, Translation: w.Translation}
}

// MarshalJSON writes the character with its display name as the first
// line, carrying DisplayNameID.
func (c Character) MarshalJSON() ([]byte, error) {
	w := wireCharacter{Name: c.Name, Lines: make([]wireLine, 0, len(c.Lines)+1)}
	if c.DisplayName != nil {
		dn := toWire(*c.DisplayName)
		dn.ID = DisplayNameID
		w.Lines = append(w.Lines, dn)
	}
	for _, l := range c.Lines {
		w.Lines = append(w.Lines, toWire(l))
	}
	return marshalText(w)
}

// UnmarshalJSON reads the wire format, lifting a leading DisplayNameID
// line into DisplayName.
func (c *Character) UnmarshalJSON(data []byte) error {
	var w wireCharacter
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	out := Character{Name: w.Name, Lines: make([]Line, 0, len(w.Lines))}
	for i, wl := range w.Lines {
		if wl.ID != DisplayNameID {
			out.Lines = append(out.Lines, fromWire(wl))
			continue
		}
		if i != 0 {
			return fmt.Errorf("character %q: display name line at position %d", w.Name, i)
		}
		if w.Name == UnattributedName {
			return fmt.Errorf("character %q: unattributed lines cannot carry a display name", w.Name)
		}
		dn := fromWire(wl)
		out.DisplayName = &dn
	}

	*c = out
	return nil
}

// MarshalJSON writes the section with an empty array rather than null
// when it has no characters.
func (s Section) MarshalJSON() ([]byte, error) {
	chars := s.Characters
	if chars == nil {
		chars = []Character{}
	}
	return marshalText(struct {
		Name       string      `json:"name"`
		Characters []Character `json:"characters"`
	}{s.Name, chars})
}

// marshalText encodes v without HTML escaping so escape codes such as \> stay readable.
func marshalText(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads a section from the wire format.
func (s *Section) UnmarshalJSON(data []byte) error {
	var w struct {
		Name       string      `json:"name"`
		Characters []Character `json:"characters"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Name = w.Name
	s.Characters = w.Characters
	return nil
}
