package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"

	"rpgm-intl/internal/parser"
)

// GlossaryQuerier reads speaker display names from Neo4j.
type GlossaryQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGlossaryQuerier creates a new glossary querier.
func NewGlossaryQuerier(driver neo4j.DriverWithContext) *GlossaryQuerier {
	return &GlossaryQuerier{driver: driver}
}

// DisplayNames returns tag → translated display name for project.
func (gq *GlossaryQuerier) DisplayNames(ctx context.Context, project string) (map[string]string, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (s:Speaker {project: $project})
		WHERE s.displayName <> ''
		RETURN s.tag AS tag, s.displayName AS name
	`, map[string]any{"project": project})
	if err != nil {
		return nil, fmt.Errorf("query display names: %w", err)
	}

	names := make(map[string]string)
	for result.Next(ctx) {
		record := result.Record()
		tag, _ := record.Get("tag")
		name, _ := record.Get("name")
		names[fmt.Sprintf("%v", tag)] = fmt.Sprintf("%v", name)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read display names: %w", err)
	}

	log.Info().Int("count", len(names)).Msg("Loaded speaker glossary")
	return names, nil
}

// ApplyDisplayNames sets untranslated display names of doc from names and
// returns how many were filled.
func ApplyDisplayNames(doc parser.Document, names map[string]string) int {
	applied := 0
	for si := range doc {
		for ci := range doc[si].Characters {
			c := &doc[si].Characters[ci]
			if c.DisplayName == nil || c.DisplayName.HasTranslation() {
				continue
			}
			if name, ok := names[c.Name]; ok && name != "" {
				c.DisplayName.SetTranslation(name)
				applied++
			}
		}
	}
	return applied
}
