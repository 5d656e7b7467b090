// Package db selects the concrete store driver based on the instance profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/store"
	"github.com/hrygo/cohort/store/db/postgres"
	"github.com/hrygo/cohort/store/db/sqlite"
)

// NewDBDriver creates a new DB driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
}
