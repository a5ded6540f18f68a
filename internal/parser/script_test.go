package parser

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func script(lines ...string) string {
	return strings.Join(lines, "\r\n")
}

func TestParseScriptExample(t *testing.T) {
	doc, err := ParseScript(script("#comment", "[Map001]", "ALICE: Hello", "ALICE: Hello", "World"))
	require.NoError(t, err)

	want := Document{{
		Name: "[Map001]",
		Characters: []Character{
			{
				Name:        "ALICE",
				DisplayName: &Line{ID: DisplayNameID, Text: "ALICE"},
				Lines:       []Line{{ID: 2, PreviousText: "[Map001]", Text: "Hello"}},
			},
			{
				Name:  UnattributedName,
				Lines: []Line{{ID: 4, PreviousText: "ALICE: Hello", Text: "World"}},
			},
		},
	}}

	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScriptEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\r\n\r\n"} {
		_, err := ParseScript(in)
		assert.ErrorIs(t, err, ErrFormat, "input %q", in)
	}
}

func TestParseScriptContentBeforeSection(t *testing.T) {
	_, err := ParseScript(script("# header", "ALICE: Hi"))
	assert.ErrorIs(t, err, ErrMalformedStructure)

	_, err = ParseScript(script("Some narration", "[Map001]"))
	assert.ErrorIs(t, err, ErrMalformedStructure)
}

func TestParseScriptSkipsNumericAndBlankLines(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "", "123", "  ", "World"))
	require.NoError(t, err)
	require.Len(t, doc, 1)
	require.Len(t, doc[0].Characters, 1)

	bucket := doc[0].Characters[0]
	assert.Equal(t, UnattributedName, bucket.Name)
	require.Len(t, bucket.Lines, 1)
	assert.Equal(t, "World", bucket.Lines[0].Text)
	assert.Equal(t, 4, bucket.Lines[0].ID)
	assert.Equal(t, "[Map001]", bucket.Lines[0].PreviousText)
}

func TestParseScriptOnlyNumericLineInSection(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "123"))
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Empty(t, doc[0].Characters)
}

func TestParseScriptNormalizesWhitespace(t *testing.T) {
	doc, err := ParseScript(script("  [Map002]  ", "BOB:  Hi  there ", "BOB: Hi there"))
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, "[Map002]", doc[0].Name)

	bob, ok := doc[0].Character("BOB")
	require.True(t, ok)
	require.Len(t, bob.Lines, 1, "normalized duplicate must be dropped")
	assert.Equal(t, "Hi there", bob.Lines[0].Text)
}

func TestParseScriptDedupOnlyAdjacent(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "Hello", "Bye", "Hello", "Hello"))
	require.NoError(t, err)

	bucket, ok := doc[0].Character(UnattributedName)
	require.True(t, ok)
	var texts []string
	for _, l := range bucket.Lines {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"Hello", "Bye", "Hello"}, texts)
}

func TestParseScriptCommentDoesNotBreakDedup(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "ALICE: Hi", "# note", "ALICE: Hi"))
	require.NoError(t, err)

	alice, ok := doc[0].Character("ALICE")
	require.True(t, ok)
	assert.Len(t, alice.Lines, 1)
}

func TestParseScriptSpeakerGrouping(t *testing.T) {
	doc, err := ParseScript(script(
		"[Map001]",
		"ALICE: One",
		"BOB: Two",
		"Narration",
		"ALICE: Three",
		"???: Four",
	))
	require.NoError(t, err)

	names := make([]string, 0, len(doc[0].Characters))
	for _, c := range doc[0].Characters {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ALICE", "BOB", UnattributedName, "???"}, names)

	alice, _ := doc[0].Character("ALICE")
	require.NotNil(t, alice.DisplayName)
	assert.Equal(t, "ALICE", alice.DisplayName.Text)
	require.Len(t, alice.Lines, 2)
	assert.Equal(t, "Three", alice.Lines[1].Text)
	assert.Equal(t, "Narration", alice.Lines[1].PreviousText)

	unknown, _ := doc[0].Character("???")
	assert.Equal(t, "Four", unknown.Lines[0].Text)
}

func TestParseScriptEscapeCodesAreOpaque(t *testing.T) {
	doc, err := ParseScript(script("[Map003]", `ALICE: \c[2]Careful!`, `\ts[1]Shaking`))
	require.NoError(t, err)

	alice, _ := doc[0].Character("ALICE")
	assert.Equal(t, `\c[2]Careful!`, alice.Lines[0].Text)

	bucket, _ := doc[0].Character(UnattributedName)
	assert.Equal(t, `\ts[1]Shaking`, bucket.Lines[0].Text)
}

func TestParseScriptDuplicateSectionNames(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "ALICE: A", "[Map002]", "[Map001]", "ALICE: B"))
	require.NoError(t, err)
	require.Len(t, doc, 3)

	assert.Equal(t, []string{"[Map001]"}, doc.DuplicateSections())

	// Speakers attach to the most recently opened section.
	require.Len(t, doc[2].Characters, 1)
	assert.Equal(t, "B", doc[2].Characters[0].Lines[0].Text)

	first, ok := doc.Section("[Map001]")
	require.True(t, ok)
	assert.Equal(t, "A", first.Characters[0].Lines[0].Text)
}

func TestParseScriptAcceptsLF(t *testing.T) {
	doc, err := ParseScript("[Map001]\nALICE: Hello\n")
	require.NoError(t, err)
	require.Len(t, doc, 1)
	assert.Equal(t, "Hello", doc[0].Characters[0].Lines[0].Text)
}

func TestParseScriptOrderPreservation(t *testing.T) {
	in := script(
		"[Map001]",
		"ALICE: a1",
		"ALICE: a1",
		"n1",
		"BOB: b1",
		"ALICE: a2",
		"7",
		"n2",
		"BOB: b2",
	)
	doc, err := ParseScript(in)
	require.NoError(t, err)

	var all []Line
	for _, c := range doc[0].Characters {
		all = append(all, c.Lines...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	var texts []string
	for _, l := range all {
		texts = append(texts, l.Text)
	}
	assert.Equal(t, []string{"a1", "n1", "b1", "a2", "n2", "b2"}, texts)
}

func TestParseScriptIsRepeatable(t *testing.T) {
	in := script("[Map001]", "ALICE: Hello", "World", "[Map002]", "BOB: Yo")
	a, err := ParseScript(in)
	require.NoError(t, err)
	b, err := ParseScript(in)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(a, b))
}

func TestParseScriptDisplayNameUniqueness(t *testing.T) {
	doc, err := ParseScript(script("[Map001]", "ALICE: 1a", "ALICE: 2a", "BOB: x", "ALICE: 3a"))
	require.NoError(t, err)

	for _, c := range doc[0].Characters {
		for _, l := range c.Lines {
			assert.NotEqual(t, DisplayNameID, l.ID)
		}
	}
	require.NoError(t, doc.Validate())
}
