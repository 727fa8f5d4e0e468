package domain

import "time"

// Credential holds the secret material a Model references by CredentialID.
// The gateway treats APIKey as opaque; it never hashes or mints it — that
// stays the caller's concern (spec.md §1).
type Credential struct {
	ID             string            `json:"id"`
	CredentialType CredentialType    `json:"credential_type"`
	APIKey         string            `json:"api_key"`
	BaseURL        string            `json:"base_url,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (c *Credential) Validate() error {
	if err := ValidateID("credential", c.ID); err != nil {
		return err
	}
	if c.APIKey == "" {
		return NewValidationError("credential.validate", "api_key must not be empty")
	}
	return nil
}
