// Package experiment implements the thin assignment layer SPEC_FULL.md §3
// describes: given an Experiment's traffic_split, pick which model variant
// serves one request, and log that choice as an ExperimentRecord. Unlike
// the Rust original's experiment_service (which also computed statistical
// significance across variants), this package only assigns and records —
// significance is out of scope, see DESIGN.md.
package experiment

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/gomind-contrib/llmgateway/internal/domain"
	"github.com/gomind-contrib/llmgateway/internal/logging"
)

// Store is the narrow read surface the assigner needs from the experiment
// repository.
type Store interface {
	Get(ctx context.Context, key string) (*domain.Experiment, error)
}

// RecordStore persists the ExperimentRecord logging which variant served a
// request.
type RecordStore interface {
	Save(ctx context.Context, record *domain.ExperimentRecord) error
}

// IDFactory mints ids for new ExperimentRecords, mirroring the gateway's
// idFactory convention (see gateway.go's DefaultIDFactory).
type IDFactory func() string

// Assigner resolves an Experiment's traffic_split into a model id and logs
// the assignment. It holds no per-caller state: sticky bucketing is
// achieved by hashing the caller-supplied assignment key, not by
// remembering prior assignments.
type Assigner struct {
	experiments Store
	records     RecordStore
	idFactory   IDFactory
	logger      logging.Logger
}

func NewAssigner(experiments Store, records RecordStore, idFactory IDFactory, logger logging.Logger) *Assigner {
	if logger == nil {
		logger = logging.NoOp{}
	}
	return &Assigner{
		experiments: experiments,
		records:     records,
		idFactory:   idFactory,
		logger:      logger.WithComponent("experiment.assigner"),
	}
}

// Assign loads experimentID, picks a variant per its traffic_split, and
// persists an ExperimentRecord naming that variant. It returns the assigned
// model id. usageRecordID may be empty when the assignment happens before
// the usage record exists (the chain executor assigns before it knows the
// eventual cost); callers that later learn the usage record id are
// responsible for updating the record themselves if that linkage matters.
func (a *Assigner) Assign(ctx context.Context, experimentID, assignmentKey, usageRecordID string) (string, error) {
	exp, err := a.experiments.Get(ctx, experimentID)
	if err != nil {
		return "", err
	}
	if !exp.Enabled {
		return "", domain.NewValidationError("experiment.assign", "experiment is disabled: "+experimentID)
	}

	variant := pickVariant(exp, assignmentKey)

	record := &domain.ExperimentRecord{
		ID:            a.idFactory(),
		ExperimentID:  exp.ID,
		ModelID:       variant,
		UsageRecordID: usageRecordID,
		Variant:       variant,
	}
	if err := a.records.Save(ctx, record); err != nil {
		a.logger.Warn("failed to persist experiment record", map[string]interface{}{
			"experiment_id": exp.ID, "error": err.Error(),
		})
		return variant, err
	}

	a.logger.Info("assigned experiment variant", map[string]interface{}{
		"experiment_id": exp.ID, "model_id": variant, "sticky": assignmentKey != "",
	})
	return variant, nil
}

// pickVariant chooses a model id from exp.ModelIDs weighted by
// exp.TrafficSplit. When assignmentKey is non-empty, the choice is
// deterministic for that key (FNV-1a hash of the key mapped into [0,1)) so
// repeat requests from the same caller land on the same variant; otherwise
// each call draws independently via math/rand.
func pickVariant(exp *domain.Experiment, assignmentKey string) string {
	ids := make([]string, len(exp.ModelIDs))
	copy(ids, exp.ModelIDs)
	sort.Strings(ids) // stable iteration order regardless of config load order

	var total float64
	for _, id := range ids {
		total += exp.TrafficSplit[id]
	}
	if total <= 0 {
		return ids[0]
	}

	var point float64
	if assignmentKey != "" {
		h := fnv.New64a()
		h.Write([]byte(assignmentKey))
		point = (float64(h.Sum64()%1_000_000) / 1_000_000) * total
	} else {
		point = rand.Float64() * total
	}

	var cursor float64
	for _, id := range ids {
		cursor += exp.TrafficSplit[id]
		if point < cursor {
			return id
		}
	}
	return ids[len(ids)-1]
}
