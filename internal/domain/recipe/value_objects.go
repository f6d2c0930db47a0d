package recipe

import "strings"

// Document is the structured recipe extracted from a video. Field names
// follow the wire schema the extraction prompt demands, so the document
// marshals byte-compatible with what clients already consume.
type Document struct {
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Servings    *Servings    `json:"servings,omitempty"`
	Times       *Times       `json:"times,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []Step       `json:"steps"`
	Tags        []string     `json:"tags"`
	Equipment   []string     `json:"equipment"`
	Notes       *string      `json:"notes,omitempty"`
}

// Servings describes how much the recipe yields
type Servings struct {
	Amount *float64 `json:"amount,omitempty"`
	Unit   *string  `json:"unit,omitempty"`
}

// Times holds the recipe timings in minutes
type Times struct {
	PrepMinutes  *int `json:"prep_minutes,omitempty"`
	CookMinutes  *int `json:"cook_minutes,omitempty"`
	TotalMinutes *int `json:"total_minutes,omitempty"`
}

// Ingredient is a single recipe ingredient
type Ingredient struct {
	Name   string   `json:"name"`
	Amount *float64 `json:"amount,omitempty"`
	Unit   *string  `json:"unit,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

// Validate validates the ingredient
func (i Ingredient) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrIngredientNameRequired
	}
	if i.Amount != nil && *i.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Step is a single atomic cooking step
type Step struct {
	Order           int    `json:"order"`
	Instruction     string `json:"instruction"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

// Validate validates the step
func (s Step) Validate() error {
	if strings.TrimSpace(s.Instruction) == "" {
		return ErrStepInstructionRequired
	}
	if s.DurationMinutes != nil && *s.DurationMinutes < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// Validate checks the whole document against domain invariants
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	for _, ing := range d.Ingredients {
		if err := ing.Validate(); err != nil {
			return err
		}
	}
	for _, step := range d.Steps {
		if err := step.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Normalize repairs the fixable irregularities a model may produce:
// whitespace around text fields, missing slices (the wire format uses
// empty arrays, never null) and step numbering, which is rewritten to a
// 1-based sequence in array order.
func (d *Document) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if d.Equipment == nil {
		d.Equipment = []string{}
	}
	if d.Ingredients == nil {
		d.Ingredients = []Ingredient{}
	}
	if d.Steps == nil {
		d.Steps = []Step{}
	}
	for i := range d.Ingredients {
		d.Ingredients[i].Name = strings.TrimSpace(d.Ingredients[i].Name)
	}
	for i := range d.Steps {
		d.Steps[i].Instruction = strings.TrimSpace(d.Steps[i].Instruction)
		d.Steps[i].Order = i + 1
	}
}

// StepByOrder returns the step with the given 1-based order
func (d *Document) StepByOrder(order int) (Step, bool) {
	for _, s := range d.Steps {
		if s.Order == order {
			return s, true
		}
	}
	return Step{}, false
}

// TotalDuration sums the explicit step durations in minutes
func (d *Document) TotalDuration() int {
	total := 0
	for _, s := range d.Steps {
		if s.DurationMinutes != nil {
			total += *s.DurationMinutes
		}
	}
	return total
}
