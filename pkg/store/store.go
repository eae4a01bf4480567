// Package store defines the durable side of the task collection.
package store

import (
	"context"

	"github.com/harrisonrobin/ajanda/pkg/model"
)

// Store persists tasks. Implementations cascade a Delete to the whole subtree
// of the deleted task.
type Store interface {
	// Insert stores t and returns the stored record. The returned ID may
	// differ from t.ID when the backend assigns its own.
	Insert(ctx context.Context, t model.Task) (model.Task, error)
	Update(ctx context.Context, id string, p model.Patch) error
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context) ([]model.Task, error)
	Close() error
}
