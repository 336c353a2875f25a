package directory

import (
	"context"
	"errors"

	"bookflow/pkg/models"
)

var ErrNotFound = errors.New("organizer not found")

// Source resolves an organizer id to its directory record.
type Source interface {
	Lookup(ctx context.Context, organizerID string) (*models.Organizer, error)
}
