package memory

import (
	"context"
	"mingle-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

type profileStore struct {
	mu        sync.RWMutex
	interests map[string][]string
}

func NewProfileStore() core.ProfileStore {
	return &profileStore{
		interests: make(map[string][]string),
	}
}

func (s *profileStore) GetInterests(ctx context.Context, profileID string) ([]string, error) {
	log := logrus.WithField("profile_id", profileID)

	s.mu.RLock()
	interests, ok := s.interests[profileID]
	s.mu.RUnlock()

	if !ok {
		log.WithField("error", "profile not found").Warn("Profile with specified ID not found")
		return nil, core.ErrProfileNotFound
	}

	out := make([]string, len(interests))
	copy(out, interests)
	return out, nil
}

func (s *profileStore) SetInterests(ctx context.Context, profileID string, interests []string) error {
	stored := make([]string, len(interests))
	copy(stored, interests)

	s.mu.Lock()
	s.interests[profileID] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"profile_id":     profileID,
		"interest_count": len(interests),
	}).Info("Interests stored")
	return nil
}
