package database

import (
	"database/sql"
	"embed"
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mbolis/quick-questionnaire/log"
	"github.com/pkg/errors"
)

//go:embed migrations
var schemaFiles embed.FS

// ErrDirtySchema means a previous migration stopped halfway and the file
// needs fixing by hand.
var ErrDirtySchema = stderrors.New("questionnaire schema is dirty")

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "db.migrate.source")
	}
	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "db.migrate.target")
	}
	return migrate.NewWithInstance("iofs", src, "sqlite3", dst)
}

// Migrate brings the questionnaire tables to the latest schema and
// returns its version.
func Migrate(db *sql.DB) (uint, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}

	_, dirty, err := m.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, errors.Wrap(err, "db.migrate.version")
	}
	if dirty {
		return 0, ErrDirtySchema
	}

	err = m.Up()
	if err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return 0, errors.Wrap(err, "db.migrate.up")
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, errors.Wrap(err, "db.migrate.version")
	}
	log.Debugf("db.migrate: questionnaire schema at version %d", version)
	return version, nil
}
