package parser

import (
	"fmt"
	"regexp"
	"strings"

	"rpgm-intl/internal/textutil"
)

// sectionPattern matches the map marker that opens a section, e.g. [Map012].
var sectionPattern = regexp.MustCompile(`\[Map\d+\]`)

// speakerPattern matches a leading speaker tag such as "ALICE:" or "???:".
var speakerPattern = regexp.MustCompile(`^([A-Z?]+):`)

// scriptState is the parser state threaded through the single pass.
type scriptState struct {
	doc      Document
	section  int // index of the most recently opened section, -1 before any
	speaker  string
	previous string
}

// ParseScript parses a raw dialogue script into a Document.
//
// Lines are normalized, then comments, blank lines, bare integers and
// immediate duplicates are dropped. Map markers open sections, tagged
// lines go to their speaker, and everything else goes to the section's
// unattributed bucket.
func ParseScript(raw string) (Document, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("parse script: %w", ErrFormat)
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	st := &scriptState{doc: Document{}, section: -1}

	for index, rawLine := range lines {
		line := textutil.Normalize(rawLine)

		if line == "" || strings.HasPrefix(line, "#") || textutil.IsInteger(line) {
			continue
		}
		if line == st.previous {
			continue
		}

		if err := st.consume(index, line); err != nil {
			return nil, err
		}
		st.previous = line
	}

	return st.doc, nil
}

func (st *scriptState) consume(index int, line string) error {
	if sectionPattern.MatchString(line) {
		st.doc = append(st.doc, Section{Name: line, Characters: []Character{}})
		st.section = len(st.doc) - 1
		st.speaker = ""
		return nil
	}

	if st.section < 0 {
		return fmt.Errorf("line %d %q: %w", index+1, textutil.Truncate(line, 40), ErrMalformedStructure)
	}
	section := &st.doc[st.section]

	if m := speakerPattern.FindStringSubmatch(line); m != nil {
		st.speaker = m[1]
		text := strings.TrimSpace(line[len(m[0]):])
		st.addSpeakerLine(section, index, text)
		return nil
	}

	bucket, ok := section.Character(UnattributedName)
	if !ok {
		section.Characters = append(section.Characters, Character{Name: UnattributedName, Lines: []Line{}})
		bucket = &section.Characters[len(section.Characters)-1]
	}
	bucket.Lines = append(bucket.Lines, Line{
		ID:           index,
		PreviousText: st.previous,
		Text:         line,
	})
	return nil
}

func (st *scriptState) addSpeakerLine(section *Section, index int, text string) {
	line := Line{ID: index, PreviousText: st.previous, Text: text}

	if c, ok := section.Character(st.speaker); ok {
		c.Lines = append(c.Lines, line)
		return
	}

	section.Characters = append(section.Characters, Character{
		Name:        st.speaker,
		DisplayName: &Line{ID: DisplayNameID, Text: st.speaker},
		Lines:       []Line{line},
	})
}
