package domain

import "time"

// CredentialType is the closed sum of upstream vendor families a Model can
// reference.
type CredentialType string

const (
	CredentialOpenAI      CredentialType = "OpenAi"
	CredentialAnthropic   CredentialType = "Anthropic"
	CredentialAzureOpenAI CredentialType = "AzureOpenAi"
	CredentialBedrock     CredentialType = "Bedrock"
)

// Model binds a logical id to a vendor model string and the credential used
// to reach it. ProviderModel is passed to the upstream API verbatim — the
// gateway never rewrites it.
type Model struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CredentialType CredentialType `json:"credential_type"`
	ProviderModel  string         `json:"provider_model"`
	CredentialID   string         `json:"credential_id"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate checks the immutable and structural invariants of a Model. It
// does not check that CredentialID resolves — that happens at use time.
func (m *Model) Validate() error {
	if err := ValidateID("model", m.ID); err != nil {
		return err
	}
	if m.Name == "" {
		return NewValidationError("model.validate", "name must not be empty")
	}
	switch m.CredentialType {
	case CredentialOpenAI, CredentialAnthropic, CredentialAzureOpenAI, CredentialBedrock:
	default:
		return NewValidationError("model.validate", "unrecognized credential_type")
	}
	if m.ProviderModel == "" {
		return NewValidationError("model.validate", "provider_model must not be empty")
	}
	if err := ValidateID("credential", m.CredentialID); err != nil {
		return err
	}
	return nil
}
