// Package ai wires the model providers behind the extraction and step
// chat ports. Provider clients live in subpackages and only deal with
// transport; prompt construction and response parsing happen here.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yambati03/touille/internal/domain/recipe"
)

// ParseDocument turns raw model output into a validated recipe
// document. Models occasionally wrap the JSON in prose or markdown
// fences; one brace extraction retry handles that before giving up.
func ParseDocument(raw string) (recipe.Document, error) {
	raw = strings.TrimSpace(raw)

	var doc recipe.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start == -1 || end <= start {
			return recipe.Document{}, fmt.Errorf("no JSON object in model output: %w", err)
		}
		doc = recipe.Document{}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &doc); err != nil {
			return recipe.Document{}, fmt.Errorf("failed to parse model output: %w", err)
		}
	}

	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return recipe.Document{}, fmt.Errorf("model output is not a usable recipe: %w", err)
	}
	return doc, nil
}
