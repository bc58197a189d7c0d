// Package history persists analysis reports in a local SQLite database so
// that past inspections can be listed, reloaded and summarized.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/cuttingtool/toolinspect/pkg/imageprep"
	"github.com/cuttingtool/toolinspect/pkg/types"
)

// DefaultLimit is the number of reports kept when no limit is configured.
const DefaultLimit = 50

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("report not found")

// Store is a bounded, newest-first collection of reports.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens (creating if needed) the database at path and migrates it to the
// latest schema. limit <= 0 selects DefaultLimit.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	// One writer at a time avoids SQLITE_BUSY between daemon goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to set pragmas")
	}

	s := &Store{db: db, limit: limit}
	if err := s.migrateUp(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to load migrations")
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to create sqlite migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrateLogger{}

	// m is not closed: closing it would close s.db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Limit returns the maximum number of reports kept.
func (s *Store) Limit() int {
	return s.limit
}

// Save stores r as the newest entry and drops the oldest entries beyond the
// limit.
func (s *Store) Save(ctx context.Context, r types.Report) error {
	if r.ID == "" {
		return errors.New("report has no id")
	}

	var results []byte
	if r.Results != nil {
		var err error
		results, err = json.Marshal(r.Results)
		if err != nil {
			return errors.Wrap(err, "failed to marshal results")
		}
	}

	var thumb []byte
	if r.HasImage() {
		t, err := imageprep.Thumbnail(r.Image)
		if err != nil {
			logrus.WithError(err).WithField("id", r.ID).Warn("failed to create thumbnail")
		}
		thumb = t
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports
			(id, created_at, file_name, material, summary, measurement_count, results, error, image, image_mime, thumbnail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UnixMilli(), r.FileName, r.Material, r.Summary(), len(r.Results),
		nullableText(results), r.Error, r.Image, r.ImageMIME, thumb,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save report %s", r.ID)
	}

	n, err := s.Trim(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		logrus.WithField("dropped", n).Debug("history trimmed")
	}
	return nil
}

// Trim drops the oldest reports beyond the limit and returns how many were
// removed.
func (s *Store) Trim(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM reports WHERE id NOT IN (
			SELECT id FROM reports ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, s.limit)
	if err != nil {
		return 0, errors.Wrap(err, "failed to trim history")
	}
	return res.RowsAffected()
}

// List returns the summaries of all stored reports, newest first.
func (s *Store) List(ctx context.Context) ([]types.ReportSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, file_name, material, summary, measurement_count
		FROM reports
		ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	out := []types.ReportSummary{}
	for rows.Next() {
		var (
			sum types.ReportSummary
			ms  int64
		)
		if err := rows.Scan(&sum.ID, &ms, &sum.FileName, &sum.Material, &sum.Summary, &sum.MeasurementCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan report summary")
		}
		sum.Timestamp = time.UnixMilli(ms)
		out = append(out, sum)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate history")
}

// Get loads a full report, image included.
func (s *Store) Get(ctx context.Context, id string) (types.Report, error) {
	var (
		r       types.Report
		ms      int64
		results sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, file_name, material, results, error, image, image_mime
		FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &ms, &r.FileName, &r.Material, &results, &r.Error, &r.Image, &r.ImageMIME)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return types.Report{}, errors.Wrapf(err, "failed to load report %s", id)
	}

	r.Timestamp = time.UnixMilli(ms)
	if results.Valid {
		if err := json.Unmarshal([]byte(results.String), &r.Results); err != nil {
			return types.Report{}, errors.Wrapf(err, "failed to decode results of %s", id)
		}
		if r.Results == nil {
			r.Results = []types.AngleMeasurement{}
		}
	}
	return r, nil
}

// Thumbnail returns the WebP preview of a report, or nil if it has none.
func (s *Store) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	var thumb []byte
	err := s.db.QueryRowContext(ctx, `SELECT thumbnail FROM reports WHERE id = ?`, id).Scan(&thumb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return thumb, errors.Wrapf(err, "failed to load thumbnail of %s", id)
}

// Delete removes one report.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete report %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// Clear removes every report.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear history")
	}
	return res.RowsAffected()
}

// Prune removes reports created before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune history")
	}
	return res.RowsAffected()
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logrus.Debugf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return logrus.IsLevelEnabled(logrus.TraceLevel)
}
