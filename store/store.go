package store

import (
	"context"
	"database/sql"
	"embed"
	"strings"

	"github.com/LdDl/plate-passages/plates"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store keeps total passages per plate across runs
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens sqlite database at path and brings its schema up to date
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open database %q", path)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "can't set pragmas")
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "can't read migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "can't create migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "can't create migrator")
	}
	m.Log = &migrateLogger{logger: s.logger}
	// m is not closed: closing it closes the database too
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

type migrateLogger struct {
	logger zerolog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf("[migrate] "+strings.TrimSpace(format), v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

const upsertPlate = `
	INSERT INTO plate_counts (plate, passages) VALUES (?, 1)
	ON CONFLICT(plate) DO UPDATE SET
		passages = passages + 1,
		last_seen = CURRENT_TIMESTAMP`

// AddPlate adds one passage of plate
func (s *Store) AddPlate(ctx context.Context, plate string) error {
	if _, err := s.db.ExecContext(ctx, upsertPlate, plate); err != nil {
		return errors.Wrapf(err, "can't add plate %s", plate)
	}
	return nil
}

// AddPlates adds one passage per element atomically. Repeated plates are counted repeatedly
func (s *Store) AddPlates(ctx context.Context, plateNumbers []string) error {
	if len(plateNumbers) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "can't begin transaction")
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, upsertPlate)
	if err != nil {
		return errors.Wrap(err, "can't prepare upsert")
	}
	defer stmt.Close()
	for _, plate := range plateNumbers {
		if _, err := stmt.ExecContext(ctx, plate); err != nil {
			return errors.Wrapf(err, "can't add plate %s", plate)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "can't commit plates")
	}
	s.logger.Debug().Int("passages", len(plateNumbers)).Msg("plates stored")
	return nil
}

// Count returns stored passages of plate, zero when it was never seen
func (s *Store) Count(ctx context.Context, plate string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT passages FROM plate_counts WHERE plate = ?`, plate).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrapf(err, "can't count plate %s", plate)
	}
	return n, nil
}

// Search looks plate up ignoring case and surrounding spaces
func (s *Store) Search(ctx context.Context, plate string) (bool, int, error) {
	n, err := s.Count(ctx, strings.ToUpper(strings.TrimSpace(plate)))
	if err != nil {
		return false, 0, err
	}
	return n > 0, n, nil
}

// All returns every stored plate with its passages
func (s *Store) All(ctx context.Context) (plates.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT plate, passages FROM plate_counts WHERE passages > 0`)
	if err != nil {
		return nil, errors.Wrap(err, "can't list plates")
	}
	defer rows.Close()
	counts := make(plates.Counts)
	for rows.Next() {
		var plate string
		var n int
		if err := rows.Scan(&plate, &n); err != nil {
			return nil, errors.Wrap(err, "can't scan plate row")
		}
		counts[plate] = n
	}
	return counts, errors.Wrap(rows.Err(), "can't iterate plates")
}

// Reset forgets every plate
func (s *Store) Reset(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plate_counts`)
	if err != nil {
		return errors.Wrap(err, "can't reset counters")
	}
	n, _ := res.RowsAffected()
	s.logger.Info().Int64("plates", n).Msg("counters reset")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
