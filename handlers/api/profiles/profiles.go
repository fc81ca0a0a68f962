package profiles

import (
	"encoding/json"
	"errors"
	"mingle-server/core"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	UpdateInterestsRequest struct {
		Interests []string `json:"interests"`
	}

	InterestsResponse struct {
		ProfileID string   `json:"profile_id"`
		Interests []string `json:"interests"`
	}
)

// HandleUpdateInterests overwrites the stored interest set for a profile.
func HandleUpdateInterests(store core.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID := chi.URLParam(r, "profileID")

		var req UpdateInterestsRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to decode request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := store.SetInterests(r.Context(), profileID, req.Interests); err != nil {
			logrus.WithField("error", err).Error("Failed to store interests")
			http.Error(w, "Failed to store interests", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, InterestsResponse{ProfileID: profileID, Interests: req.Interests})
	}
}

// HandleGetInterests returns the stored interest set for a profile.
func HandleGetInterests(store core.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profileID := chi.URLParam(r, "profileID")

		interests, err := store.GetInterests(r.Context(), profileID)
		if err != nil {
			if errors.Is(err, core.ErrProfileNotFound) {
				http.Error(w, "Profile not found", http.StatusNotFound)
				return
			}
			logrus.WithField("error", err).Error("Failed to get interests")
			http.Error(w, "Failed to get interests", http.StatusInternalServerError)
			return
		}

		if interests == nil {
			interests = []string{}
		}

		render.JSON(w, r, InterestsResponse{ProfileID: profileID, Interests: interests})
	}
}
