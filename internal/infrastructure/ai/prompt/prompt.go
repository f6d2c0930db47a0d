// Package prompt holds the model prompts and the builders that turn
// pipeline data into prompt text. Prompts can be overridden from disk
// at runtime, which keeps prompt tuning out of the deploy cycle.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yambati03/touille/internal/ports/outbound"
)

const extractionSystemPrompt = `You are a recipe extraction assistant. Your task is to extract recipe information from a transcript and return it as a structured JSON object.

You may receive a video caption and/or an audio transcript. Use ALL available context to extract the recipe. The caption often contains ingredient lists, quantities, or other details not spoken aloud.

Return ONLY a valid JSON object with no additional text, explanation, or markdown formatting.

Use this exact JSON structure:

{
  "title": "string",
  "description": "string or null",
  "servings": {
    "amount": number,
    "unit": "string (e.g. 'servings', 'pieces', 'portions')"
  },
  "times": {
    "prep_minutes": number or null,
    "cook_minutes": number or null,
    "total_minutes": number or null
  },
  "ingredients": [
    {
      "name": "string",
      "amount": number or null,
      "unit": "string or null",
      "notes": "string or null (e.g. 'finely chopped', 'at room temperature')"
    }
  ],
  "steps": [
    {
      "order": number,
      "instruction": "string",
      "duration_minutes": number or null
    }
  ],
  "tags": ["string"],
  "equipment": ["string"],
  "notes": "string or null"
}

Rules:
- If information is not mentioned in the transcript, use null for optional fields
- Normalize ingredient amounts to numbers (e.g. "half" -> 0.5, "a dozen" -> 12)
- Normalize units to standard abbreviations (e.g. "tablespoons" -> "tbsp", "teaspoons" -> "tsp", "grams" -> "g")
- Split compound steps into individual, atomic steps
- Infer reasonable tags from context (e.g. "vegetarian", "gluten-free", "dessert", "quick")
- List any cooking tools or equipment mentioned
- Capture any tips, variations, or serving suggestions in the notes field`

const chatSystemPrompt = `You are a cooking assistant helping someone who is in the middle of cooking a recipe. You will receive the full recipe as JSON, which steps are already done, the step the cook is working on now, and a question.

Rules:
- Answer the question directly and keep it short; the cook is reading this mid-recipe
- Ground every answer in the given recipe and never invent ingredients or steps that are not in it
- When asked about substitutions, give one practical option and say how it changes the step
- Respond in plain text without markdown formatting`

// Library holds the active system prompts. Reads are frequent and
// writes only happen on override reloads, so access goes through a
// read write lock.
type Library struct {
	mu         sync.RWMutex
	extraction string
	chat       string
}

// NewLibrary returns a library loaded with the built-in prompts.
func NewLibrary() *Library {
	return &Library{
		extraction: extractionSystemPrompt,
		chat:       chatSystemPrompt,
	}
}

// ExtractionSystem returns the extraction system prompt, with the
// cook's preferences appended when any are set.
func (l *Library) ExtractionSystem(prefs outbound.ExtractionPreferences) string {
	l.mu.RLock()
	base := l.extraction
	l.mu.RUnlock()
	return withPreferences(base, prefs)
}

// ChatSystem returns the step chat system prompt, with the cook's
// preferences appended when any are set.
func (l *Library) ChatSystem(prefs outbound.ExtractionPreferences) string {
	l.mu.RLock()
	base := l.chat
	l.mu.RUnlock()
	return withPreferences(base, prefs)
}

// SetExtraction replaces the extraction prompt. Empty text restores the
// built-in prompt.
func (l *Library) SetExtraction(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		l.extraction = extractionSystemPrompt
		return
	}
	l.extraction = text
}

// SetChat replaces the chat prompt. Empty text restores the built-in
// prompt.
func (l *Library) SetChat(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		l.chat = chatSystemPrompt
		return
	}
	l.chat = text
}

func withPreferences(base string, prefs outbound.ExtractionPreferences) string {
	block := PreferencesBlock(prefs)
	if block == "" {
		return base
	}
	return base + "\n\n" + block
}

// PreferencesBlock renders the cook's saved settings as prompt text.
// Returns the empty string when nothing is set.
func PreferencesBlock(prefs outbound.ExtractionPreferences) string {
	if prefs.DietaryRestrictions == "" && prefs.SpiceTolerance == 0 && prefs.CustomRules == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("The cook has saved these preferences:\n")
	if prefs.DietaryRestrictions != "" {
		fmt.Fprintf(&b, "- Dietary restrictions: %s\n", prefs.DietaryRestrictions)
	}
	if prefs.SpiceTolerance > 0 {
		fmt.Fprintf(&b, "- Spice tolerance: %d on a scale of 1 to 5\n", prefs.SpiceTolerance)
	}
	if prefs.CustomRules != "" {
		fmt.Fprintf(&b, "- Additional rules: %s\n", prefs.CustomRules)
	}
	b.WriteString("Respect these preferences in substitutions, notes and tags, but never drop information that is present in the video.")
	return b.String()
}

// ExtractionInput joins the caption and transcript into the user
// message for extraction. The caption comes first when present, the
// two parts separated by a rule so the model can tell them apart.
func ExtractionInput(transcript string, caption *string) string {
	parts := make([]string, 0, 2)
	if caption != nil && strings.TrimSpace(*caption) != "" {
		parts = append(parts, "Video caption:\n\n"+*caption)
	}
	parts = append(parts, "Transcript:\n\n"+transcript)
	return strings.Join(parts, "\n\n---\n\n")
}

// ChatInput renders one chat turn: the recipe document, cooking
// progress and the question.
func ChatInput(p outbound.ChatPrompt) string {
	doc, err := json.Marshal(p.Document)
	if err != nil {
		doc = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Recipe:\n\n")
	b.Write(doc)
	b.WriteString("\n\n---\n\n")

	if len(p.CompletedSteps) > 0 {
		done := append([]int(nil), p.CompletedSteps...)
		sort.Ints(done)
		labels := make([]string, len(done))
		for i, n := range done {
			labels[i] = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(&b, "Completed steps: %s\n", strings.Join(labels, ", "))
	}

	if step, ok := p.Document.StepByOrder(p.CurrentStep); ok {
		fmt.Fprintf(&b, "Current step %d: %s\n", step.Order, step.Instruction)
	} else if p.CurrentStep > 0 {
		fmt.Fprintf(&b, "Current step: %d\n", p.CurrentStep)
	}

	b.WriteString("\n---\n\nQuestion:\n\n")
	b.WriteString(p.Message)
	return b.String()
}
