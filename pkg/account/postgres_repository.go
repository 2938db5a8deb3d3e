package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores users in the users table created by Migrate.
// Fields live in a jsonb column and are updated key by key.
type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `
	SELECT id, COALESCE(username, ''), COALESCE(email, ''), password_hash, two_factor_enabled,
	       profile_email, profile_phone, fields, created_at, updated_at
	FROM users
`

func (r *PostgresRepository) FindUser(ctx context.Context, identity Identity) (User, error) {
	switch {
	case identity.ID != "":
		id, err := uuid.Parse(identity.ID)
		if err != nil {
			return User{}, ErrUserNotFound
		}
		return r.GetUser(ctx, id)
	case identity.Username != "":
		return r.scanOne(ctx, selectUser+` WHERE username = $1`, identity.Username)
	case identity.Email != "":
		return r.scanOne(ctx, selectUser+` WHERE lower(email) = lower($1)`, identity.Email)
	}
	return User{}, ErrUserNotFound
}

func (r *PostgresRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return r.scanOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PostgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if err := params.validate(); err != nil {
		return User{}, err
	}

	u := params.toUser(time.Now().UTC())
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash, two_factor_enabled, profile_email, profile_phone, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.TwoFactorEnabled, u.Profile.Email, u.Profile.Phone, u.CreatedAt,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			identifier := params.Username
			if identifier == "" {
				identifier = params.Email
			}
			return User{}, apperrors.AlreadyExists("user", identifier)
		}
		slog.Error("Failed to insert user", "username", params.Username, "error", err)
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET fields = fields || $2::jsonb, updated_at = now()
		WHERE id = $1
	`, id, string(patch))
	if err != nil {
		return fmt.Errorf("failed to set fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) UnsetFields(ctx context.Context, id uuid.UUID, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET fields = fields - $2::text[], updated_at = now()
		WHERE id = $1
	`, id, names)
	if err != nil {
		return fmt.Errorf("failed to unset fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...interface{}) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.TwoFactorEnabled,
		&u.Profile.Email,
		&u.Profile.Phone,
		&u.Fields,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if u.Fields == nil {
		u.Fields = map[string]string{}
	}
	return u, nil
}
