package registry

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// History persists closed sessions to SQLite so the admin surface keeps
// its connection log across restarts.
type History struct {
	db *sql.DB
}

// NewHistory opens (and migrates) the history database at dbPath.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	h := &History{db: db}
	if err := h.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return h, nil
}

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		remote_addr TEXT,
		connected_at TIMESTAMP NOT NULL,
		disconnected_at TIMESTAMP,
		bytes_sent INTEGER DEFAULT 0,
		bytes_received INTEGER DEFAULT 0,
		mount_point TEXT,
		last_lat REAL,
		last_lon REAL,
		fix_quality INTEGER,
		satellites INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_disconnected_at ON sessions(disconnected_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Record upserts one closed session.
func (h *History) Record(s Session) error {
	var lat, lon sql.NullFloat64
	var quality, sats sql.NullInt64
	if s.Position != nil {
		lat = sql.NullFloat64{Float64: s.Position.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: s.Position.Lon, Valid: true}
		quality = sql.NullInt64{Int64: int64(s.Position.Quality), Valid: true}
		sats = sql.NullInt64{Int64: int64(s.Position.Satellites), Valid: true}
	}
	var disconnected sql.NullTime
	if s.DisconnectedAt != nil {
		disconnected = sql.NullTime{Time: *s.DisconnectedAt, Valid: true}
	}

	_, err := h.db.Exec(`
		INSERT INTO sessions (id, remote_addr, connected_at, disconnected_at,
			bytes_sent, bytes_received, mount_point, last_lat, last_lon, fix_quality, satellites)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			disconnected_at = excluded.disconnected_at,
			bytes_sent = excluded.bytes_sent,
			bytes_received = excluded.bytes_received,
			mount_point = excluded.mount_point,
			last_lat = excluded.last_lat,
			last_lon = excluded.last_lon,
			fix_quality = excluded.fix_quality,
			satellites = excluded.satellites
	`, s.ID, s.RemoteAddr, s.ConnectedAt, disconnected,
		s.BytesSent, s.BytesReceived, s.Mount, lat, lon, quality, sats)
	return err
}

// Recent returns up to limit sessions, most recently connected first.
func (h *History) Recent(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.Query(`
		SELECT id, remote_addr, connected_at, disconnected_at,
			bytes_sent, bytes_received, mount_point, last_lat, last_lon, fix_quality, satellites
		FROM sessions ORDER BY connected_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var disconnected sql.NullTime
		var mount sql.NullString
		var lat, lon sql.NullFloat64
		var quality, sats sql.NullInt64
		if err := rows.Scan(&s.ID, &s.RemoteAddr, &s.ConnectedAt, &disconnected,
			&s.BytesSent, &s.BytesReceived, &mount, &lat, &lon, &quality, &sats); err != nil {
			return nil, err
		}
		if disconnected.Valid {
			t := disconnected.Time
			s.DisconnectedAt = &t
		}
		if mount.Valid {
			s.Mount = mount.String
		}
		if lat.Valid && lon.Valid {
			s.Position = &Position{
				Lat:        lat.Float64,
				Lon:        lon.Float64,
				Quality:    int(quality.Int64),
				Satellites: int(sats.Int64),
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneBefore deletes sessions that disconnected before cutoff and
// returns the number removed.
func (h *History) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := h.db.Exec(`
		DELETE FROM sessions WHERE disconnected_at IS NOT NULL AND disconnected_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}
