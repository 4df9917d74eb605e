package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/repository"
)

const uniqueViolationCode = "23505"

var userColumns = []string{
	"id",
	"email",
	"username",
	"full_name",
	"password_hash",
	"is_active",
	"email_verified",
	"age",
	"gender",
	"language_level",
	"registered_at",
	"last_login",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row. A unique violation on email or username is
// reported as repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	query := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.Username,
			user.FullName,
			user.PasswordHash,
			user.IsActive,
			user.EmailVerified,
			user.Age,
			user.Gender,
			user.LanguageLevel,
			user.RegisteredAt,
			user.LastLogin,
		)

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by email sql: %w", err)
	}

	return r.scanUser(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *UserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user          domain.User
		username      sql.NullString
		fullName      sql.NullString
		age           sql.NullInt32
		gender        sql.NullString
		languageLevel sql.NullString
		lastLogin     *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Email,
		&username,
		&fullName,
		&user.PasswordHash,
		&user.IsActive,
		&user.EmailVerified,
		&age,
		&gender,
		&languageLevel,
		&user.RegisteredAt,
		&lastLogin,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if username.Valid {
		val := username.String
		user.Username = &val
	}
	if fullName.Valid {
		val := fullName.String
		user.FullName = &val
	}
	if age.Valid {
		val := int(age.Int32)
		user.Age = &val
	}
	if gender.Valid {
		val := gender.String
		user.Gender = &val
	}
	if languageLevel.Valid {
		val := languageLevel.String
		user.LanguageLevel = &val
	}
	user.LastLogin = lastLogin

	return &user, nil
}

// UpdateProfile applies the non-nil fields of the update to the stored row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update port.UserProfileUpdate) error {
	query := r.builder.Update("users").Where(squirrel.Eq{"id": id})

	changed := false
	if update.Username != nil {
		query = query.Set("username", *update.Username)
		changed = true
	}
	if update.FullName != nil {
		query = query.Set("full_name", *update.FullName)
		changed = true
	}
	if update.Age != nil {
		query = query.Set("age", *update.Age)
		changed = true
	}
	if update.Gender != nil {
		query = query.Set("gender", *update.Gender)
		changed = true
	}
	if update.LanguageLevel != nil {
		query = query.Set("language_level", *update.LanguageLevel)
		changed = true
	}
	if !changed {
		return nil
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update profile sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("update profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateEmail changes a user's email address. The verification flag is reset
// so the new address must be confirmed again.
func (r *UserRepository) UpdateEmail(ctx context.Context, id string, email string) error {
	stmt, args, err := r.builder.Update("users").
		Set("email", email).
		Set("email_verified", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update email sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrConflict
		}
		return fmt.Errorf("update email: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	stmt, args, err := r.builder.Update("users").
		Set("password_hash", passwordHash).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetEmailVerified toggles the email verification flag.
func (r *UserRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	stmt, args, err := r.builder.Update("users").
		Set("email_verified", verified).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update email_verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update email_verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetActive toggles the account active flag.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	stmt, args, err := r.builder.Update("users").
		Set("is_active", active).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update is_active sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update is_active: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdateLastLogin records the timestamp of a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last_login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update last_login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a user row permanently.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)
