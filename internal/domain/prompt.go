package domain

import "time"

// Prompt is a reusable, named template resolved through the same
// ${source:path} grammar as workflow variables, so ChatCompletion steps may
// reference PromptID instead of inlining system/user text.
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Template  string    `json:"template"`
	Variables []string  `json:"variables"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Prompt) Validate() error {
	if err := ValidateID("prompt", p.ID); err != nil {
		return err
	}
	if p.Name == "" {
		return NewValidationError("prompt.validate", "name must not be empty")
	}
	if p.Template == "" {
		return NewValidationError("prompt.validate", "template must not be empty")
	}
	return nil
}
