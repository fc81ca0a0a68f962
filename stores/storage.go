package stores

import (
	"mingle-server/core"
	"mingle-server/stores/memory"
	"mingle-server/stores/sqlite"
	"os"

	"github.com/sirupsen/logrus"
)

func GetStore() core.ProfileStore {
	storageType := os.Getenv("STORAGE_TYPE")
	var store core.ProfileStore

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewProfileStore(dataSourceName)
	default:
		store = memory.NewProfileStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
