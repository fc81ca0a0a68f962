package core

import (
	"context"
	"errors"
)

// ErrProfileNotFound indicates that the requested profile was not found.
var ErrProfileNotFound = errors.New("profile not found")

type (
	// ProfileStore persists declared interests per profile. It is the
	// collaborator that supplies a connection's interests at session start;
	// the pairing engine itself keeps no durable state.
	ProfileStore interface {
		GetInterests(ctx context.Context, profileID string) ([]string, error)
		SetInterests(ctx context.Context, profileID string, interests []string) error
	}

	Pairing struct {
		ID      string
		Members []string
	}
)
