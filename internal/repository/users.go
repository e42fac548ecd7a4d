package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error)
}

type userRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewUserRepository(db *DB, logger *slog.Logger) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &userRepository{db: db, logger: logger}
}

var userColumns = []string{
	"id", "first_name", "last_name", "email", "username", "password_hash",
	"date_of_birth", "gender", "is_doctor", "specialty", "created_at", "updated_at",
}

// Create assigns ID and timestamps when unset. Duplicate email or username
// fails with common.ErrConflict.
func (r *userRepository) Create(ctx context.Context, u *entity.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	var dob any
	if u.DateOfBirth != nil {
		dob = u.DateOfBirth.Format(time.DateOnly)
	}
	q, args := entsql.Dialect(r.db.dialect).
		Insert("users").
		Columns(userColumns...).
		Values(u.ID.String(), u.FirstName, u.LastName, u.Email, u.Username, u.PasswordHash,
			dob, u.Gender, u.IsDoctor, u.Specialty, toMillis(u.CreatedAt), toMillis(u.UpdatedAt)).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return common.KindError(common.ErrConflict, err)
		}
		r.logger.Error("failed to create user", "email", u.Email, "error", err)
		return common.KindError(common.ErrDatabase, err)
	}
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, entsql.EQ("email", email))
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.getOne(ctx, entsql.EQ("id", id.String()))
}

func (r *userRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, bool, error) {
	q, args := entsql.Dialect(r.db.dialect).
		Select("email", "username").
		From(entsql.Table("users")).
		Where(entsql.Or(entsql.EQ("email", email), entsql.EQ("username", username))).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to check user existence", "error", err)
		return false, false, common.KindError(common.ErrDatabase, err)
	}
	defer rows.Close()

	var emailTaken, usernameTaken bool
	for rows.Next() {
		var e, u string
		if err := rows.Scan(&e, &u); err != nil {
			return false, false, common.KindError(common.ErrDatabase, err)
		}
		emailTaken = emailTaken || e == email
		usernameTaken = usernameTaken || u == username
	}
	if err := rows.Err(); err != nil {
		return false, false, common.KindError(common.ErrDatabase, err)
	}
	return emailTaken, usernameTaken, nil
}

func (r *userRepository) getOne(ctx context.Context, where *entsql.Predicate) (*entity.User, error) {
	q, args := entsql.Dialect(r.db.dialect).
		Select(userColumns...).
		From(entsql.Table("users")).
		Where(where).
		Limit(1).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to query user", "error", err)
		return nil, common.KindError(common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, common.KindError(common.ErrDatabase, err)
		}
		return nil, common.ErrNotFound
	}
	u, err := scanUser(rows)
	if err != nil {
		return nil, common.KindError(common.ErrDatabase, err)
	}
	return u, nil
}

func scanUser(rows *entsql.Rows) (*entity.User, error) {
	var (
		u                entity.User
		id               string
		dob              sql.NullString
		created, updated int64
	)
	if err := rows.Scan(&id, &u.FirstName, &u.LastName, &u.Email, &u.Username, &u.PasswordHash,
		&dob, &u.Gender, &u.IsDoctor, &u.Specialty, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", id, err)
	}
	u.ID = parsed
	if dob.Valid && dob.String != "" {
		if t, err := time.Parse(time.DateOnly, dob.String); err == nil {
			u.DateOfBirth = &t
		}
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}
