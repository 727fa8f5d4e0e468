package domain

import "strings"

// MaxIDLength bounds every domain identifier (model, chain, prompt,
// workflow, team, user, api-key, experiment, budget, credential).
const MaxIDLength = 128

// ValidateID enforces the common id predicate: nonempty, alphanumeric
// plus '-', must not start or end with '-', bounded length. kind names the
// entity for the error message ("model", "chain", ...).
func ValidateID(kind, id string) error {
	if id == "" {
		return NewInvalidIDError(kind+".validate_id", "id must not be empty")
	}
	if len(id) > MaxIDLength {
		return NewInvalidIDError(kind+".validate_id", "id exceeds maximum length")
	}
	if strings.HasPrefix(id, "-") || strings.HasSuffix(id, "-") {
		return NewInvalidIDError(kind+".validate_id", "id must not start or end with '-'")
	}
	for _, r := range id {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' {
			return NewInvalidIDError(kind+".validate_id", "id must be alphanumeric plus '-'")
		}
	}
	return nil
}
