package repository

import (
	"context"
	"errors"
	"strings"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/store"

	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db querier
}

func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, type, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(invitation_code, ''),
	referred_by, COALESCE(tg_id, 0), created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Type,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.InvitationCode,
		&u.ReferredBy,
		&u.TgID,
		&u.CreatedAt,
	); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindUserByTerm prefers an email or phone match over a name match. A term
// that matches more than one user at the same level is reported as not found.
func (r *UserRepository) FindUserByTerm(ctx context.Context, term string) (*domain.User, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.ErrNotFound
	}
	users, err := r.findUsers(ctx, `LOWER(email) = LOWER($1) OR phone = $1`, term)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		if users, err = r.findUsers(ctx, `LOWER(name) = LOWER($1)`, term); err != nil {
			return nil, err
		}
	}
	if len(users) != 1 {
		return nil, domain.ErrNotFound
	}
	return users[0], nil
}

// findUsers returns at most two matches, enough to tell a unique hit apart.
func (r *UserRepository) findUsers(ctx context.Context, where, term string) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY id LIMIT 2`, term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) FindUserByInvitationCode(ctx context.Context, code string) (*domain.User, error) {
	if code == "" {
		return nil, domain.ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE invitation_code = $1`, code))
}

func (r *UserRepository) FindUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tg_id = $1`, tgID))
}

func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	if u.Type == "" {
		u.Type = domain.UserClient
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (type, name, email, phone, invitation_code, tg_id)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, 0))
		RETURNING id, created_at
	`, u.Type, u.Name, u.Email, u.Phone, u.InvitationCode, u.TgID).Scan(&u.ID, &u.CreatedAt)
	return mapErr(err)
}

// EnsureInvitationCode returns the user's code, assigning one from gen when
// the user has none. Collisions are retried a few times.
func (r *UserRepository) EnsureInvitationCode(ctx context.Context, userID int64, gen func() string) (string, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.InvitationCode != "" {
		return u.InvitationCode, nil
	}

	for i := 0; i < 5; i++ {
		code := gen()
		_, err = r.db.Exec(ctx, `UPDATE users SET invitation_code = $1 WHERE id = $2`, code, userID)
		if err == nil {
			return code, nil
		}
		if !errors.Is(mapErr(err), store.ErrConflict) {
			return "", err
		}
	}
	return "", err
}

func (r *UserRepository) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET referred_by = $2 WHERE id = $1`, userID, referrerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetMerchant(ctx context.Context, id int64) (*domain.Merchant, error) {
	var m domain.Merchant
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_user_id, store_name, approved, created_at
		FROM merchants
		WHERE id = $1
	`, id).Scan(&m.ID, &m.OwnerUserID, &m.StoreName, &m.Approved, &m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (r *UserRepository) CreateMerchant(ctx context.Context, m *domain.Merchant) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO merchants (owner_user_id, store_name, approved)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.OwnerUserID, m.StoreName, m.Approved).Scan(&m.ID, &m.CreatedAt)
}
