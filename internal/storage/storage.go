// Package storage is the row sink: flattened setlist rows and generated
// predictions persisted in a local SQLite database, plus CSV export and import
// of the row stream.
//
// Every fetch replaces the stored rows of its performer and is recorded as a
// run with its own UUID, so a later predict works from exactly one snapshot.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/setoracle/internal/logger"
	"github.com/rewired-gh/setoracle/internal/models"
)

var (
	// ErrNoRows is returned when a performer has no stored rows.
	ErrNoRows = eris.New("no stored rows for artist")
	// ErrAmbiguousArtist is returned when a name fragment matches several stored artists.
	ErrAmbiguousArtist = eris.New("artist name matches several stored artists")
)

const dirPermissions = 0o755

// Store persists rows and predictions in SQLite.
type Store struct {
	db *sql.DB
}

// Run describes one stored fetch.
type Run struct {
	ID         string
	ArtistName string
	ArtistMBID string
	RowCount   int
	CreatedAt  time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	artist_name TEXT NOT NULL,
	artist_mbid TEXT NOT NULL DEFAULT '',
	row_count   INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS setlist_rows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	artist_key   TEXT NOT NULL,
	show_id      TEXT NOT NULL,
	show_date    TEXT NOT NULL,
	city         TEXT NOT NULL,
	state        TEXT NOT NULL,
	country      TEXT NOT NULL,
	venue        TEXT NOT NULL,
	artist_name  TEXT NOT NULL,
	tour_name    TEXT NOT NULL,
	festival     INTEGER NOT NULL,
	set_index    INTEGER NOT NULL,
	song_index   INTEGER NOT NULL,
	song_name    TEXT NOT NULL,
	is_cover     INTEGER NOT NULL,
	cover_artist TEXT NOT NULL,
	encore_index INTEGER
);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	artist_key   TEXT NOT NULL,
	artist_name  TEXT NOT NULL,
	opener       TEXT NOT NULL,
	songs        TEXT NOT NULL,
	seed         INTEGER NOT NULL,
	show_count   INTEGER NOT NULL,
	generated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_setlist_rows_artist ON setlist_rows(artist_key);
CREATE INDEX IF NOT EXISTS idx_predictions_artist ON predictions(artist_key);
`

// New opens (creating if needed) the database at dbPath and applies the schema.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), dirPermissions); err != nil {
			return nil, eris.Wrap(err, "failed to create data directory")
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}

	logger.Debug("Opened row store at %s", dbPath)
	return &Store{db: db}, nil
}

// artistKey folds display-name variations onto one storage key.
func artistKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRows replaces the stored rows of artist.Name with rows and records the run.
// Rows keep their stream order. Any invalid row aborts the whole save.
func (s *Store) SaveRows(ctx context.Context, artist models.Candidate, rows []models.FlatRow) (*Run, error) {
	if artist.Name == "" {
		return nil, eris.New("artist name must not be empty")
	}
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return nil, eris.Wrapf(err, "invalid row %d", i)
		}
	}

	run := &Run{
		ID:         uuid.New().String(),
		ArtistName: artist.Name,
		ArtistMBID: artist.ID,
		RowCount:   len(rows),
		CreatedAt:  time.Now().UTC(),
	}
	key := artistKey(artist.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM setlist_rows WHERE artist_key = ?`, key); err != nil {
		return nil, eris.Wrap(err, "sqlite: delete previous rows")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, artist_name, artist_mbid, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.ArtistName, run.ArtistMBID, run.RowCount, run.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO setlist_rows (
		run_id, artist_key, show_id, show_date, city, state, country, venue, artist_name, tour_name,
		festival, set_index, song_index, song_name, is_cover, cover_artist, encore_index
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close()

	for i, r := range rows {
		var encore sql.NullInt64
		if r.EncoreIndex != nil {
			encore = sql.NullInt64{Int64: int64(*r.EncoreIndex), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, key, r.ShowID, r.ShowDate, r.City, r.State, r.Country, r.Venue, r.ArtistName, r.TourName,
			r.Festival, r.SetIndex, r.SongIndex, r.SongName, r.IsCover, r.CoverArtist, encore,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert row %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}

	logger.Info("Stored %d rows for %s (run %s)", len(rows), artist.Name, run.ID)
	return run, nil
}

// LoadRows returns the stored rows of an artist in the order they were saved.
func (s *Store) LoadRows(ctx context.Context, artistName string) ([]models.FlatRow, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT
		show_id, show_date, city, state, country, venue, artist_name, tour_name,
		festival, set_index, song_index, song_name, is_cover, cover_artist, encore_index
		FROM setlist_rows WHERE artist_key = ? ORDER BY id`, artistKey(artistName))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query rows")
	}
	defer rs.Close()

	var rows []models.FlatRow
	for rs.Next() {
		var (
			r      models.FlatRow
			encore sql.NullInt64
		)
		if err := rs.Scan(
			&r.ShowID, &r.ShowDate, &r.City, &r.State, &r.Country, &r.Venue, &r.ArtistName, &r.TourName,
			&r.Festival, &r.SetIndex, &r.SongIndex, &r.SongName, &r.IsCover, &r.CoverArtist, &encore,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		if encore.Valid {
			v := int(encore.Int64)
			r.EncoreIndex = &v
		}
		rows = append(rows, r)
	}
	if err := rs.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}

	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrNoRows, "artist %q", artistName)
	}
	return rows, nil
}

// LatestRun returns the most recent run stored for an artist.
func (s *Store) LatestRun(ctx context.Context, artistName string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT r.id, r.artist_name, r.artist_mbid, r.row_count, r.created_at
		FROM runs r JOIN setlist_rows sr ON sr.run_id = r.id
		WHERE sr.artist_key = ? ORDER BY sr.id DESC LIMIT 1`, artistKey(artistName))

	var (
		run     Run
		created string
	)
	if err := row.Scan(&run.ID, &run.ArtistName, &run.ArtistMBID, &run.RowCount, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNoRows, "artist %q", artistName)
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse run time")
	}
	run.CreatedAt = t
	return &run, nil
}

// ResolveArtist maps user input onto the name an artist's rows are stored under.
// It accepts the stored name in any case, the catalog id, or a fragment that
// matches exactly one stored name. No match yields ErrNoRows; several yield
// ErrAmbiguousArtist.
func (s *Store) ResolveArtist(ctx context.Context, query string) (string, error) {
	key := artistKey(query)
	if key == "" {
		return "", eris.Wrap(ErrNoRows, "empty artist name")
	}

	rs, err := s.db.QueryContext(ctx, `SELECT DISTINCT r.artist_name, r.artist_mbid
		FROM runs r WHERE EXISTS (SELECT 1 FROM setlist_rows sr WHERE sr.run_id = r.id)
		ORDER BY r.artist_name`)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: query artists")
	}
	defer rs.Close()

	var partial []string
	for rs.Next() {
		var name, mbid string
		if err := rs.Scan(&name, &mbid); err != nil {
			return "", eris.Wrap(err, "sqlite: scan artist")
		}
		if artistKey(name) == key || (mbid != "" && strings.EqualFold(mbid, strings.TrimSpace(query))) {
			return name, nil
		}
		if strings.Contains(artistKey(name), key) {
			partial = append(partial, name)
		}
	}
	if err := rs.Err(); err != nil {
		return "", eris.Wrap(err, "sqlite: iterate artists")
	}

	switch len(partial) {
	case 0:
		return "", eris.Wrapf(ErrNoRows, "artist %q", query)
	case 1:
		logger.Debug("Resolved %q to stored artist %q", query, partial[0])
		return partial[0], nil
	default:
		return "", eris.Wrapf(ErrAmbiguousArtist, "%q matches %s", query, strings.Join(partial, ", "))
	}
}

// SavePrediction stores a generated sequence.
func (s *Store) SavePrediction(ctx context.Context, p *models.Prediction) error {
	if err := p.Validate(); err != nil {
		return eris.Wrap(err, "invalid prediction")
	}

	songs, err := json.Marshal(p.Songs)
	if err != nil {
		return eris.Wrap(err, "failed to marshal songs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, artist_key, artist_name, opener, songs, seed, show_count, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, artistKey(p.ArtistName), p.ArtistName, p.Opener, string(songs), p.Seed, p.ShowCount,
		p.GeneratedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert prediction %s", p.ID)
	}
	return nil
}

// ListPredictions returns up to limit predictions for an artist, newest first.
// A limit below 1 returns all of them.
func (s *Store) ListPredictions(ctx context.Context, artistName string, limit int) ([]models.Prediction, error) {
	if limit < 1 {
		limit = -1
	}
	rs, err := s.db.QueryContext(ctx, `SELECT id, artist_name, opener, songs, seed, show_count, generated_at
		FROM predictions WHERE artist_key = ? ORDER BY generated_at DESC, id LIMIT ?`,
		artistKey(artistName), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query predictions")
	}
	defer rs.Close()

	var out []models.Prediction
	for rs.Next() {
		var (
			p         models.Prediction
			songs     string
			generated string
		)
		if err := rs.Scan(&p.ID, &p.ArtistName, &p.Opener, &songs, &p.Seed, &p.ShowCount, &generated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		if err := json.Unmarshal([]byte(songs), &p.Songs); err != nil {
			return nil, eris.Wrapf(err, "prediction %s: bad songs column", p.ID)
		}
		if p.GeneratedAt, err = time.Parse(time.RFC3339Nano, generated); err != nil {
			return nil, eris.Wrapf(err, "prediction %s: bad generated_at", p.ID)
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rs.Err(), "sqlite: iterate predictions")
}
