package storage

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/gomind-contrib/llmgateway/internal/domain"
)

// MemoryRepository is the storage.backend=memory Repository
// implementation: a single RWMutex-guarded map, matching every other
// in-memory shared map in the gateway (registry, router cache, semantic
// cache table).
type MemoryRepository[T Entity] struct {
	mu   sync.RWMutex
	data map[string]T
	kind string
}

func NewMemoryRepository[T Entity](kind string) *MemoryRepository[T] {
	return &MemoryRepository[T]{data: make(map[string]T), kind: kind}
}

func (r *MemoryRepository[T]) Get(ctx context.Context, key string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	if !ok {
		var zero T
		return zero, domain.NewNotFoundError(r.kind+".get", "not found: "+key)
	}
	return v, nil
}

func (r *MemoryRepository[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.data))
	for _, v := range r.data {
		if matchesFilter(v, filter) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *MemoryRepository[T]) Save(ctx context.Context, entity T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := entity.Key()
	if err := domain.ValidateID(r.kind, key); err != nil {
		return err
	}
	r.data[key] = entity
	return nil
}

func (r *MemoryRepository[T]) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[key]; !ok {
		return domain.NewNotFoundError(r.kind+".delete", "not found: "+key)
	}
	delete(r.data, key)
	return nil
}

// matchesFilter applies a Filter by round-tripping the entity through
// JSON and comparing top-level fields by their JSON tag name — simple and
// sufficient for the admin-style filters the repositories need (by
// enabled, by model_id, by team_id, ...).
func matchesFilter(v interface{}, filter Filter) bool {
	if len(filter) == 0 {
		return true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		return false
	}
	for k, want := range filter {
		got, ok := asMap[k]
		if !ok || !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// normalize flattens numeric types to float64 so filter values supplied
// as Go ints compare equal to JSON-decoded float64s.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
