package domain

// Experiment is a thin A/B-test assignment layer: it names a set of
// candidate models and the traffic split between them. Statistical
// significance computation (the Rust original's t-test machinery) is out
// of scope — see DESIGN.md.
type Experiment struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ModelIDs     []string           `json:"model_ids"`
	TrafficSplit map[string]float64 `json:"traffic_split"`
	Enabled      bool               `json:"enabled"`
}

func (e *Experiment) Validate() error {
	if err := ValidateID("experiment", e.ID); err != nil {
		return err
	}
	if len(e.ModelIDs) == 0 {
		return NewValidationError("experiment.validate", "model_ids must not be empty")
	}
	var total float64
	for _, id := range e.ModelIDs {
		if err := ValidateID("model", id); err != nil {
			return err
		}
		total += e.TrafficSplit[id]
	}
	if total <= 0 {
		return NewValidationError("experiment.validate", "traffic_split must sum to a positive value")
	}
	return nil
}

// ExperimentRecord logs which variant served one usage record.
type ExperimentRecord struct {
	ID            string `json:"id"`
	ExperimentID  string `json:"experiment_id"`
	ModelID       string `json:"model_id"`
	UsageRecordID string `json:"usage_record_id,omitempty"`
	Variant       string `json:"variant"`
}
