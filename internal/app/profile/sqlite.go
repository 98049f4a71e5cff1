package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"groupnav/internal/app/db"
)

const profileColumns = `id, username, email, password_hash, full_name, vehicle_type,
	latitude, longitude, is_admin, avatar_key, created_at`

// SQLiteStore implements Store on database/sql with the modernc driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already migrated handle (see db.OpenSQLite).
func NewSQLiteStore(sqlDB *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: sqlDB}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p        Profile
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.FullName, &p.VehicleType,
		&lat, &lng, &p.IsAdmin, &p.AvatarKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lat.Valid && lng.Valid {
		p.Latitude, p.Longitude = &lat.Float64, &lng.Float64
	}
	return &p, nil
}

func uniqueError(err error) error {
	switch {
	case db.IsUniqueViolation(err, "username"):
		return ErrUsernameExists
	case db.IsUniqueViolation(err, "email"):
		return ErrEmailExists
	}
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, np NewProfile) (*Profile, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (username, email, password_hash, full_name, vehicle_type, is_admin, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		np.Username, np.Email, np.PasswordHash, np.FullName, np.VehicleType, np.IsAdmin,
		nullFloat(np.Latitude), nullFloat(np.Longitude),
	)
	if err != nil {
		return nil, uniqueError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (s *SQLiteStore) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE username = ?`, username)
	return scanProfile(row)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, c Changes) (*Profile, error) {
	sets, args := c.assignments("?", 1)
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE user_profiles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, err
		}
		if err := expectOne(res); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_profiles SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) GetLocation(ctx context.Context, id int64) (float64, float64, bool, error) {
	var lat, lng sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT latitude, longitude FROM user_profiles WHERE id = ?`, id).Scan(&lat, &lng)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, false, ErrNotFound
		}
		return 0, 0, false, err
	}
	if !lat.Valid || !lng.Valid {
		return 0, 0, false, nil
	}
	return lat.Float64, lng.Float64, true, nil
}

func (s *SQLiteStore) SetLocation(ctx context.Context, id int64, lat, lng float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE user_profiles SET latitude = ?, longitude = ? WHERE id = ?`, lat, lng, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying DB connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// assignments renders the SET clause for the non-nil fields. placeholder is "?" for SQLite
// or "$" for PostgreSQL, in which case parameters are numbered from start.
func (c Changes) assignments(placeholder string, start int) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		p := placeholder
		if placeholder == "$" {
			p = fmt.Sprintf("$%d", start+len(args))
		}
		sets = append(sets, column+" = "+p)
		args = append(args, value)
	}

	if c.FullName != nil {
		add("full_name", *c.FullName)
	}
	if c.VehicleType != nil {
		add("vehicle_type", *c.VehicleType)
	}
	if c.AvatarKey != nil {
		add("avatar_key", *c.AvatarKey)
	}
	if c.IsAdmin != nil {
		add("is_admin", *c.IsAdmin)
	}
	return sets, args
}
