package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stdlog "log"
	"mingle-server/core"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

type profileStore struct {
	db *sql.DB
}

func NewProfileStore(dataSourceName string) core.ProfileStore {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		stdlog.Fatal(err)
	}

	sts := `CREATE TABLE IF NOT EXISTS profiles (id TEXT PRIMARY KEY, interests TEXT NOT NULL);`
	_, err = db.Exec(sts)
	if err != nil {
		stdlog.Fatal(err)
	}

	return &profileStore{db}
}

func (s *profileStore) GetInterests(ctx context.Context, profileID string) ([]string, error) {
	log := logrus.WithField("profile_id", profileID)
	log.Debug("Retrieving interests by profile ID")

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT interests FROM profiles WHERE id = ?", profileID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			log.WithField("error", "profile not found").Warn("Profile with specified ID not found")
			return nil, core.ErrProfileNotFound
		}
		log.WithField("error", err).Error("Failed to retrieve interests")
		return nil, err
	}

	var interests []string
	if err := json.Unmarshal([]byte(raw), &interests); err != nil {
		log.WithField("error", err).Error("Stored interests are not valid JSON")
		return nil, err
	}
	return interests, nil
}

func (s *profileStore) SetInterests(ctx context.Context, profileID string, interests []string) error {
	if interests == nil {
		interests = []string{}
	}
	raw, err := json.Marshal(interests)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"profile_id":     profileID,
		"interest_count": len(interests),
	})

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO profiles (id, interests) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET interests = excluded.interests",
		profileID, string(raw))
	if err != nil {
		log.WithField("error", err).Error("Failed to store interests")
		return err
	}
	log.Info("Interests stored")
	return nil
}
