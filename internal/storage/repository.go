// Package storage defines the generic entity CRUD surface (spec.md §9's
// "interfaces over concrete types") with an in-memory and a Postgres
// implementation. Every durable entity is stored as {key, data JSON,
// created_at, updated_at}, per spec.md §6.
package storage

import "context"

// Filter narrows a List call to entities whose JSON data matches every
// key/value pair. Matching is applied after decode, field-by-field.
type Filter map[string]interface{}

// Entity is the minimal shape every repository-managed type exposes: a
// stable key used as the storage primary key.
type Entity interface {
	Key() string
}

// Repository is the generic capability surface every entity type's
// storage goes through: Get, List (with filter), Save, Delete.
// Implementations swap freely (memory <-> durable); executor APIs must
// never expose a concrete implementation type.
type Repository[T Entity] interface {
	Get(ctx context.Context, key string) (T, error)
	List(ctx context.Context, filter Filter) ([]T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, key string) error
}
