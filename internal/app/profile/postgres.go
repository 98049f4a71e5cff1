package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already migrated pool (see db.NewPool).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanPgProfile(row pgx.Row) (*Profile, error) {
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) Create(ctx context.Context, np NewProfile) (*Profile, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (username, email, password_hash, full_name, vehicle_type, is_admin, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+profileColumns,
		np.Username, np.Email, np.PasswordHash, np.FullName, np.VehicleType, np.IsAdmin, np.Latitude, np.Longitude,
	)
	p, err := scanPgProfile(row)
	if err != nil {
		return nil, uniqueError(err)
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Profile, error) {
	return scanPgProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE id = $1`, id))
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	return scanPgProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE username = $1`, username))
}

func (s *PostgresStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*Profile{}
	for rows.Next() {
		p, err := scanPgProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id int64, c Changes) (*Profile, error) {
	sets, args := c.assignments("$", 1)
	if len(sets) == 0 {
		return s.Get(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), profileColumns)
	return scanPgProfile(s.pool.QueryRow(ctx, query, args...))
}

func (s *PostgresStore) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE user_profiles SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	return affectedOne(tag, err)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_profiles WHERE id = $1`, id)
	return affectedOne(tag, err)
}

func (s *PostgresStore) GetLocation(ctx context.Context, id int64) (float64, float64, bool, error) {
	var lat, lng *float64
	err := s.pool.QueryRow(ctx, `SELECT latitude, longitude FROM user_profiles WHERE id = $1`, id).Scan(&lat, &lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, ErrNotFound
		}
		return 0, 0, false, err
	}
	if lat == nil || lng == nil {
		return 0, 0, false, nil
	}
	return *lat, *lng, true, nil
}

func (s *PostgresStore) SetLocation(ctx context.Context, id int64, lat, lng float64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE user_profiles SET latitude = $1, longitude = $2 WHERE id = $3`, lat, lng, id)
	return affectedOne(tag, err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func affectedOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
