package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"rpgm-intl/internal/parser"
)

// Speaker is a speaker tag with its translated display name.
type Speaker struct {
	Tag         string
	DisplayName string
}

// Appearance links a speaker to a section it talks in.
type Appearance struct {
	Section string
	Tag     string
	Lines   int
}

// Speakers collects the speakers of doc with their display names. When a
// tag appears in several sections, the first translated name wins.
func Speakers(doc parser.Document) ([]Speaker, []Appearance) {
	var speakers []Speaker
	var appearances []Appearance
	index := make(map[string]int)

	for _, s := range doc {
		for _, c := range s.Characters {
			if c.Unattributed() {
				continue
			}
			appearances = append(appearances, Appearance{Section: s.Name, Tag: c.Name, Lines: len(c.Lines)})

			name := ""
			if c.DisplayName != nil && c.DisplayName.HasTranslation() {
				name = *c.DisplayName.Translation
			}

			i, seen := index[c.Name]
			if !seen {
				index[c.Name] = len(speakers)
				speakers = append(speakers, Speaker{Tag: c.Name, DisplayName: name})
				continue
			}
			if speakers[i].DisplayName == "" {
				speakers[i].DisplayName = name
			}
		}
	}
	return speakers, appearances
}

// GlossaryBuilder writes speakers and their sections to Neo4j.
type GlossaryBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGlossaryBuilder creates a new glossary builder.
func NewGlossaryBuilder(driver neo4j.DriverWithContext) *GlossaryBuilder {
	return &GlossaryBuilder{driver: driver}
}

// EnsureSchema creates constraints on the Neo4j database.
func (gb *GlossaryBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (s:Speaker) REQUIRE (s.project, s.tag) IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Section) REQUIRE (m.project, m.name) IS UNIQUE",
	}

	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Glossary schema ensured")
	return nil
}

// Sync upserts the speakers of doc under project. Known display names are
// only overwritten by non-empty translations.
func (gb *GlossaryBuilder) Sync(ctx context.Context, project string, doc parser.Document) error {
	speakers, appearances := Speakers(doc)

	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, sp := range speakers {
		_, err := session.Run(ctx, `
			MERGE (s:Speaker {project: $project, tag: $tag})
			SET s.displayName = CASE WHEN $name = '' THEN coalesce(s.displayName, '') ELSE $name END
		`, map[string]any{
			"project": project,
			"tag":     sp.Tag,
			"name":    sp.DisplayName,
		})
		if err != nil {
			return fmt.Errorf("upsert speaker %s: %w", sp.Tag, err)
		}
	}

	for _, a := range appearances {
		_, err := session.Run(ctx, `
			MERGE (m:Section {project: $project, name: $section})
			WITH m
			MATCH (s:Speaker {project: $project, tag: $tag})
			MERGE (s)-[r:SPEAKS_IN]->(m)
			SET r.lines = $lines
		`, map[string]any{
			"project": project,
			"section": a.Section,
			"tag":     a.Tag,
			"lines":   a.Lines,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("section", a.Section).
				Str("tag", a.Tag).
				Msg("Failed to link speaker to section")
		}
	}

	log.Info().
		Int("speakers", len(speakers)).
		Int("appearances", len(appearances)).
		Msg("Synced speaker glossary")
	return nil
}
