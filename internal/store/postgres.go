package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"envanter/internal/listing"
	"envanter/internal/models"
)

// Postgres is the production Store. Row queries go through database/sql on
// the pgx driver; bulk imports use a native pgx pool.
type Postgres struct {
	DB   *sql.DB
	Pool *pgxpool.Pool
}

// OpenPostgres connects both handles and pings the database.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create pgxpool: %w", err)
	}
	return &Postgres{DB: db, Pool: pool}, nil
}

type ctxKey string

const dbConnKey ctxKey = "dbconn"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txBeginner interface {
	querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// dbFrom prefers the per-request connection bound by BindUser.
func (p *Postgres) dbFrom(ctx context.Context) txBeginner {
	if v := ctx.Value(dbConnKey); v != nil {
		if c, ok := v.(*sql.Conn); ok {
			return c
		}
	}
	return p.DB
}

// BindUser pins a connection for the request and sets app.current_user_id on
// it so the row-level security policies admit the caller.
func (p *Postgres) BindUser(ctx context.Context, userID string) (context.Context, func(), error) {
	conn, err := p.DB.Conn(ctx)
	if err != nil {
		return ctx, nil, err
	}
	if _, err := conn.ExecContext(ctx, "SELECT set_config('app.current_user_id', $1, false)", userID); err != nil {
		conn.Close()
		return ctx, nil, err
	}
	release := func() {
		// The connection goes back to the pool; clear the setting first.
		_, _ = conn.ExecContext(context.Background(), "SELECT set_config('app.current_user_id', '', false)")
		conn.Close()
	}
	return context.WithValue(ctx, dbConnKey, conn), release, nil
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.dbFrom(ctx).BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mapError turns driver errors into the store sentinels. onDelete decides
// whether a foreign key violation means a missing parent (insert/update) or
// a row that is still referenced (delete).
func mapError(err error, onDelete bool) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
		case "23503":
			if onDelete {
				return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrConflict)
			}
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrNotFound)
		case "23514":
			if strings.Contains(pgErr.ConstraintName, "quantity") {
				return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrInsufficientStock)
			}
		case "22P02":
			// malformed uuid
			return ErrNotFound
		}
	}
	return err
}

func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

const itemSelect = `
	SELECT p.id::text, p.name, COALESCE(p.brand, ''), COALESCE(p.model, ''),
	       COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), p.status,
	       COALESCE(p.location_id::text, ''), COALESCE(l.name, ''),
	       COALESCE(p.serial_number, ''), p.barcode, COALESCE(p.description, ''),
	       p.quantity, COALESCE(p.photo_url, ''), COALESCE(p.created_by::text, ''),
	       p.created_at, p.updated_at`

const itemFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN locations l ON l.id = p.location_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner, extra ...any) (models.Item, error) {
	var it models.Item
	var status string
	dest := []any{
		&it.ID, &it.Name, &it.Brand, &it.Model, &it.CategoryID, &it.CategoryName, &status,
		&it.LocationID, &it.LocationName, &it.SerialNumber, &it.Barcode, &it.Description,
		&it.Quantity, &it.PhotoURL, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	it.Status = models.ItemStatus(status)
	return it, err
}

// count runs a separate COUNT when the window came back empty, since
// COUNT(*) OVER() has no row to ride on.
func count(ctx context.Context, q querier, from, where string, args []any) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*)"+from+where, args...).Scan(&n)
	return n, err
}

func limitOffset(p listing.Params) string {
	s := ""
	if p.Limit > 0 {
		s += fmt.Sprintf(" LIMIT %d", p.Limit)
	}
	if p.Offset > 0 {
		s += fmt.Sprintf(" OFFSET %d", p.Offset)
	}
	return s
}

func (p *Postgres) ListItems(ctx context.Context, params listing.Params) ([]models.Item, int, error) {
	clauses := []string{}
	args := []any{}
	if params.Q != "" {
		args = append(args, "%"+params.Q+"%")
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR p.barcode ILIKE $%d OR p.serial_number ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	order := " ORDER BY p.created_at ASC, p.id ASC"
	if params.Sort != "" {
		order = listing.OrderBy(params.Sort, itemSortKeys)
	}

	q := p.dbFrom(ctx)
	rows, err := q.QueryContext(ctx, itemSelect+", COUNT(*) OVER()"+itemFrom+where+order+limitOffset(params), args...)
	if err != nil {
		return nil, 0, mapError(err, false)
	}
	defer rows.Close()

	items := []models.Item{}
	total := 0
	for rows.Next() {
		it, err := scanItem(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(items) == 0 && params.Offset > 0 {
		if total, err = count(ctx, q, itemFrom, where, args); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func getItem(ctx context.Context, q querier, id string) (*models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, itemSelect+itemFrom+" WHERE p.id = $1", id))
	if err != nil {
		return nil, mapError(err, false)
	}
	return &it, nil
}

func (p *Postgres) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return getItem(ctx, p.dbFrom(ctx), id)
}

const insertItemSQL = `
	INSERT INTO products (id, name, brand, model, category_id, status, location_id,
	                      serial_number, barcode, description, quantity, photo_url, created_by)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, '')::uuid, $6, NULLIF($7, '')::uuid,
	        NULLIF($8, ''), $9, NULLIF($10, ''), $11, NULLIF($12, ''), NULLIF($13, '')::uuid)`

func insertItemArgs(id string, req models.CreateItemRequest) []any {
	return []any{
		id, req.Name, req.Brand, req.Model, req.CategoryID, string(req.Status), req.LocationID,
		req.SerialNumber, req.Barcode, req.Description, req.Quantity, req.PhotoURL, req.CreatedBy,
	}
}

func (p *Postgres) CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	req.Normalize()
	if req.Barcode == "" {
		req.Barcode = models.GenerateBarcode()
	}

	id := uuid.NewString()
	var out *models.Item
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertItemSQL, insertItemArgs(id, req)...); err != nil {
			return mapError(err, false)
		}
		var err error
		out, err = getItem(ctx, tx, id)
		return err
	})
	return out, err
}

func (p *Postgres) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error) {
	type set struct {
		sql string
		val any
	}
	sets := make([]set, 0, 11)
	if patch.Name != nil {
		sets = append(sets, set{"name = $%d", strings.TrimSpace(*patch.Name)})
	}
	if patch.Brand != nil {
		sets = append(sets, set{"brand = NULLIF($%d, '')", *patch.Brand})
	}
	if patch.Model != nil {
		sets = append(sets, set{"model = NULLIF($%d, '')", *patch.Model})
	}
	if patch.CategoryID != nil {
		sets = append(sets, set{"category_id = NULLIF($%d, '')::uuid", *patch.CategoryID})
	}
	if patch.Status != nil {
		sets = append(sets, set{"status = $%d", string(*patch.Status)})
	}
	if patch.LocationID != nil {
		sets = append(sets, set{"location_id = NULLIF($%d, '')::uuid", *patch.LocationID})
	}
	if patch.SerialNumber != nil {
		sets = append(sets, set{"serial_number = NULLIF($%d, '')", *patch.SerialNumber})
	}
	if patch.Barcode != nil {
		sets = append(sets, set{"barcode = $%d", strings.TrimSpace(*patch.Barcode)})
	}
	if patch.Description != nil {
		sets = append(sets, set{"description = NULLIF($%d, '')", *patch.Description})
	}
	if patch.Quantity != nil {
		sets = append(sets, set{"quantity = $%d", *patch.Quantity})
	}
	if patch.PhotoURL != nil {
		sets = append(sets, set{"photo_url = NULLIF($%d, '')", *patch.PhotoURL})
	}
	if len(sets) == 0 {
		return p.GetItem(ctx, id)
	}

	args := make([]any, 0, len(sets)+1)
	sqlStr := "UPDATE products SET "
	for i, s := range sets {
		sqlStr += fmt.Sprintf(s.sql, i+1) + ", "
		args = append(args, s.val)
	}
	sqlStr += fmt.Sprintf("updated_at = now() WHERE id = $%d", len(args)+1)
	args = append(args, id)

	var out *models.Item
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return mapError(err, false)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		out, err = getItem(ctx, tx, id)
		return err
	})
	return out, err
}

func (p *Postgres) DeleteItem(ctx context.Context, id string) (int, error) {
	removed := 0
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM movements WHERE product_id = $1", id)
		if err != nil {
			return mapError(err, true)
		}
		n, _ := res.RowsAffected()
		removed = int(n)

		res, err = tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
		if err != nil {
			return mapError(err, true)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

const movementSelect = `
	SELECT m.id::text, m.product_id::text, p.name, m.type, m.quantity, m.date,
	       COALESCE(m.description, ''), COALESCE(m.location_id::text, ''), COALESCE(l.name, ''),
	       COALESCE(m.actor::text, ''),
	       COALESCE(NULLIF(u.full_name, ''), NULLIF(u.username, ''), u.email, '')`

const movementFrom = `
	FROM movements m
	JOIN products p ON p.id = m.product_id
	LEFT JOIN locations l ON l.id = m.location_id
	LEFT JOIN users u ON u.id = m.actor`

func scanMovement(row scanner, extra ...any) (models.Movement, error) {
	var mv models.Movement
	var typ string
	dest := []any{
		&mv.ID, &mv.ItemID, &mv.ItemName, &typ, &mv.Quantity, &mv.Date,
		&mv.Description, &mv.LocationID, &mv.LocationName, &mv.Actor, &mv.ActorName,
	}
	err := row.Scan(append(dest, extra...)...)
	mv.Type = models.MovementType(typ)
	return mv, err
}

func (p *Postgres) ListMovements(ctx context.Context, f models.MovementFilter, params listing.Params) ([]models.Movement, int, error) {
	clauses := []string{}
	args := []any{}
	if len(f.ItemIDs) > 0 {
		ids := validIDs(f.ItemIDs)
		if len(ids) == 0 {
			return []models.Movement{}, 0, nil
		}
		args = append(args, pq.Array(ids))
		clauses = append(clauses, fmt.Sprintf("m.product_id = ANY($%d::uuid[])", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		clauses = append(clauses, fmt.Sprintf("m.type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		clauses = append(clauses, fmt.Sprintf("m.date >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		clauses = append(clauses, fmt.Sprintf("m.date <= $%d", len(args)))
	}
	if params.Q != "" {
		args = append(args, "%"+params.Q+"%")
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR m.description ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	order := " ORDER BY m.date ASC, m.id ASC"
	if params.Sort != "" {
		order = listing.OrderBy(params.Sort, movementSortKeys)
	}

	q := p.dbFrom(ctx)
	rows, err := q.QueryContext(ctx, movementSelect+", COUNT(*) OVER()"+movementFrom+where+order+limitOffset(params), args...)
	if err != nil {
		return nil, 0, mapError(err, false)
	}
	defer rows.Close()

	out := []models.Movement{}
	total := 0
	for rows.Next() {
		mv, err := scanMovement(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 && params.Offset > 0 {
		if total, err = count(ctx, q, movementFrom, where, args); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (p *Postgres) CreateMovement(ctx context.Context, req models.CreateMovementRequest) (*models.MovementResult, error) {
	var out *models.MovementResult
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		var qty int
		err := tx.QueryRowContext(ctx, "SELECT quantity FROM products WHERE id = $1 FOR UPDATE", req.ItemID).Scan(&qty)
		if err != nil {
			return fmt.Errorf("item %s: %w", req.ItemID, mapError(err, false))
		}
		next := qty + req.Type.Delta(req.Quantity)
		if next < 0 {
			return fmt.Errorf("item %s has %d, need %d: %w", req.ItemID, qty, req.Quantity, ErrInsufficientStock)
		}

		id := uuid.NewString()
		var date any
		if req.Date != nil {
			date = *req.Date
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO movements (id, product_id, type, quantity, date, description, location_id, actor)
			VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()), NULLIF($6, ''), NULLIF($7, '')::uuid, NULLIF($8, '')::uuid)`,
			id, req.ItemID, string(req.Type), req.Quantity, date, req.Description, req.LocationID, req.Actor)
		if err != nil {
			return mapError(err, false)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE products SET quantity = $1, updated_at = now() WHERE id = $2", next, req.ItemID); err != nil {
			return mapError(err, false)
		}

		mv, err := scanMovement(tx.QueryRowContext(ctx, movementSelect+movementFrom+" WHERE m.id = $1", id))
		if err != nil {
			return err
		}
		out = &models.MovementResult{Movement: mv, ItemQuantity: next}
		return nil
	})
	return out, err
}

func (p *Postgres) DeleteMovement(ctx context.Context, id string) error {
	return p.deleteByID(ctx, "movements", id)
}

func (p *Postgres) deleteByID(ctx context.Context, table, id string) error {
	res, err := p.dbFrom(ctx).ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return mapError(err, true)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) listNamed(ctx context.Context, table string) ([]models.Category, error) {
	rows, err := p.dbFrom(ctx).QueryContext(ctx, "SELECT id::text, name FROM "+table+" ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) createNamed(ctx context.Context, table, name string) (string, error) {
	id := uuid.NewString()
	_, err := p.dbFrom(ctx).ExecContext(ctx, "INSERT INTO "+table+" (id, name) VALUES ($1, $2)", id, strings.TrimSpace(name))
	if err != nil {
		return "", mapError(err, false)
	}
	return id, nil
}

func (p *Postgres) ListCategories(ctx context.Context) ([]models.Category, error) {
	return p.listNamed(ctx, "categories")
}

func (p *Postgres) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	id, err := p.createNamed(ctx, "categories", name)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", name, err)
	}
	return &models.Category{ID: id, Name: strings.TrimSpace(name)}, nil
}

func (p *Postgres) DeleteCategory(ctx context.Context, id string) error {
	return p.deleteByID(ctx, "categories", id)
}

func (p *Postgres) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := p.listNamed(ctx, "locations")
	if err != nil {
		return nil, err
	}
	out := make([]models.Location, len(rows))
	for i, r := range rows {
		out[i] = models.Location(r)
	}
	return out, nil
}

func (p *Postgres) CreateLocation(ctx context.Context, name string) (*models.Location, error) {
	id, err := p.createNamed(ctx, "locations", name)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", name, err)
	}
	return &models.Location{ID: id, Name: strings.TrimSpace(name)}, nil
}

func (p *Postgres) DeleteLocation(ctx context.Context, id string) error {
	return p.deleteByID(ctx, "locations", id)
}

const userSelect = `
	SELECT id::text, email, COALESCE(username, ''), password_hash, full_name, role,
	       is_active, created_at, updated_at, last_login_at
	FROM users`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, mapError(err, false)
	}
	return &u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(p.DB.QueryRowContext(ctx, userSelect+" WHERE id = $1", id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(p.DB.QueryRowContext(ctx, userSelect+" WHERE lower(email) = lower($1)", email))
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(p.DB.QueryRowContext(ctx, userSelect+" WHERE username = $1", username))
}

func (p *Postgres) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := p.DB.QueryContext(ctx, userSelect+" ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := p.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, full_name, role)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING is_active, created_at, updated_at`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Role).
		Scan(&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err, false)
	}
	return &u, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	res, err := p.DB.ExecContext(ctx, `
		UPDATE users SET
			full_name = CASE WHEN $2 THEN $3 ELSE full_name END,
			role = COALESCE($4, role),
			is_active = COALESCE($5, is_active),
			updated_at = now()
		WHERE id = $1`,
		id, patch.FullName != nil, patch.FullName, patch.Role, patch.IsActive)
	if err != nil {
		return nil, mapError(err, false)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.GetUser(ctx, id)
}

func (p *Postgres) TouchLastLogin(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", id)
	if err != nil {
		return mapError(err, false)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateSession(ctx context.Context, s SessionRecord) error {
	_, err := p.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)",
		s.ID, s.UserID, s.ExpiresAt)
	return mapError(err, false)
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var s SessionRecord
	err := p.DB.QueryRowContext(ctx,
		"SELECT id::text, user_id::text, created_at, expires_at, revoked_at FROM sessions WHERE id = $1", id).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		return nil, mapError(err, false)
	}
	return &s, nil
}

func (p *Postgres) RevokeSession(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = COALESCE(revoked_at, now()) WHERE id = $1", id)
	if err != nil {
		return mapError(err, false)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := p.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at <= $1 OR revoked_at IS NOT NULL", now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ImportItems sends every row in one pgx batch inside a single transaction.
func (p *Postgres) ImportItems(ctx context.Context, reqs []models.CreateItemRequest) (ImportResult, error) {
	var res ImportResult
	err := pgx.BeginFunc(ctx, p.Pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, req := range reqs {
			req.Normalize()
			if req.Barcode == "" {
				req.Barcode = models.GenerateBarcode()
			}
			batch.Queue(insertItemSQL+`
				ON CONFLICT (barcode) DO UPDATE SET
					name = EXCLUDED.name, brand = EXCLUDED.brand, model = EXCLUDED.model,
					category_id = EXCLUDED.category_id, status = EXCLUDED.status,
					location_id = EXCLUDED.location_id, serial_number = EXCLUDED.serial_number,
					description = EXCLUDED.description, updated_at = now()
				RETURNING (xmax = 0)`, insertItemArgs(uuid.NewString(), req)...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range reqs {
			var inserted bool
			if err := br.QueryRow().Scan(&inserted); err != nil {
				br.Close()
				return fmt.Errorf("row %d: %w", i+1, mapError(err, false))
			}
			if inserted {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return br.Close()
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *Postgres) Close() error {
	p.Pool.Close()
	return p.DB.Close()
}
