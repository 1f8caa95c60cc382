package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/staffauth/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation    = "23505"
	emailConstraint    = "users_email_key"
	phoneConstraint    = "users_phone_key"
	userColumns        = `id, email, phone, password_hash, first_name, last_name, address, image_url, role, is_active, created_at, updated_at`
	searchableDocument = `(email || ' ' || phone || ' ' || first_name || ' ' || last_name || ' ' || address)`
)

// sortColumns whitelists sortable fields; nothing from the request reaches
// the ORDER BY clause without passing through this map.
var sortColumns = map[user.SortField]string{
	user.SortByID:        "id",
	user.SortByEmail:     "email",
	user.SortByPhone:     "phone",
	user.SortByFirstName: "first_name",
	user.SortByLastName:  "last_name",
	user.SortByAddress:   "address",
	user.SortByImageURL:  "image_url",
	user.SortByRole:      "role",
	user.SortByIsActive:  "is_active",
	user.SortByCreatedAt: "created_at",
	user.SortByUpdatedAt: "updated_at",
}

// Observer times a logical DB operation. observability.Prom satisfies it.
type Observer interface {
	ObserveDB(op string, fn func() error) error
}

type UsersRepo struct {
	pool *pgxpool.Pool
	obs  Observer
}

func NewUsersRepo(pool *pgxpool.Pool, obs Observer) *UsersRepo {
	return &UsersRepo{pool: pool, obs: obs}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.obs == nil {
		return fn()
	}
	return r.obs.ObserveDB(op, fn)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", "id", id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", "email", email)
}

func (r *UsersRepo) GetByPhone(ctx context.Context, phone string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_phone", "phone", phone)
}

// column is always one of our literals, never caller input.
func (r *UsersRepo) getOne(ctx context.Context, op, column, value string) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`,
			value,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	})

	if err != nil {
		return user.User{}, err
	}
	if u.ID == "" {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, in user.User) (user.User, error) {
	var out user.User

	err := r.observe("users.create", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (id, email, phone, password_hash, first_name, last_name, address, image_url, role, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			RETURNING `+userColumns,
			in.ID, in.Email, in.Phone, in.PasswordHash, in.FirstName, in.LastName, in.Address,
			in.ImageURL, string(in.Role), in.IsActive, in.CreatedAt, in.UpdatedAt,
		))
		return err
	})

	if err != nil {
		return user.User{}, mapWriteError(err)
	}
	return out, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	query, args := buildUpdateQuery(id, p)

	var out user.User

	err := r.observe("users.update", func() error {
		var err error
		out, err = scanUser(r.pool.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, mapWriteError(err)
	}
	return out, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.observe("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
			id, passwordHash,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

func (r *UsersRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64

	err := r.observe("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})

	return affected > 0, err
}

func (r *UsersRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	var affected int64

	err := r.observe("users.delete_many", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = ANY($1::uuid[])`, ids)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})

	return affected, err
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.observe("users.count", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	})
	return n, err
}

func (r *UsersRepo) List(ctx context.Context, c user.Criteria) ([]user.User, int, error) {
	c = c.Normalize()
	query, args := buildListQuery(c)

	output := make([]user.User, 0, c.Limit)
	total := 0

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			var t int

			err = rows.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Address,
				&u.ImageURL, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &t)
			if err != nil {
				return err
			}

			total = t
			output = append(output, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	// COUNT(*) OVER() yields nothing for a page past the end, so ask directly.
	if len(output) == 0 && c.Offset() > 0 {
		countQuery, countArgs := buildCountQuery(c)
		err = r.observe("users.list_count", func() error {
			return r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

// whereClause renders the AND-ed filters of c starting at placeholder $1.
func whereClause(c user.Criteria) (string, []any) {
	var conds []string
	var args []any

	argsPosition := 1

	if c.Search != nil {
		conds = append(conds, fmt.Sprintf(`%s ILIKE $%d ESCAPE '\'`, searchableDocument, argsPosition))
		args = append(args, "%"+escapeLike(*c.Search)+"%")
		argsPosition++
	}

	if c.Role != nil {
		conds = append(conds, fmt.Sprintf("role = $%d", argsPosition))
		args = append(args, string(*c.Role))
		argsPosition++
	}

	if c.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active = $%d", argsPosition))
		args = append(args, *c.IsActive)
		argsPosition++
	}

	if c.HasDateRange() {
		conds = append(conds, fmt.Sprintf("created_at BETWEEN $%d AND $%d", argsPosition, argsPosition+1))
		args = append(args, *c.StartDate, *c.EndDate)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildListQuery(c user.Criteria) (string, []any) {
	where, args := whereClause(c)

	column, ok := sortColumns[c.SortField]
	if !ok {
		column = "created_at"
	}
	order := "ASC"
	if c.SortOrder == user.SortDesc {
		order = "DESC"
	}

	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users` + where
	// id keeps the order stable across pages
	query += fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d", column, order, order, len(args)+1, len(args)+2)

	args = append(args, c.Limit, c.Offset())
	return query, args
}

func buildCountQuery(c user.Criteria) (string, []any) {
	where, args := whereClause(c)
	return `SELECT COUNT(*) FROM users` + where, args
}

func buildUpdateQuery(id string, p user.Patch) (string, []any) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.FirstName != nil {
		add("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		add("last_name", *p.LastName)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.ImageURL != nil {
		add("image_url", *p.ImageURL)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}

	return `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Address,
		&u.ImageURL,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// mapWriteError turns the storage-level unique constraints into the domain's
// duplicate errors; the service-level check is only a fast path.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return user.ErrDuplicateEmail
		case phoneConstraint:
			return user.ErrDuplicatePhone
		}
	}
	return err
}
