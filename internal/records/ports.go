package records

import (
	"context"

	"birthdaymemo/internal/core"
)

// Ports for record persistence.
type (
	// Loader returns a user's full record, creating an empty one on first access.
	Loader interface {
		Load(ctx context.Context, username string) (core.Record, error)
	}

	// Saver overwrites a user's full record.
	Saver interface {
		Save(ctx context.Context, username string, rec core.Record) error
	}

	Store interface {
		Loader
		Saver
	}

	// UserLister enumerates users that have a stored record.
	UserLister interface {
		ListUsers(ctx context.Context) ([]string, error)
	}
)
