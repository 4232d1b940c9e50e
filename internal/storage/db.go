package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"finance-tracker/internal/models"

	"github.com/google/uuid"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist. Owner-scoped writes also
// return it when the row belongs to another user, so callers cannot tell the
// two cases apart.
var ErrNotFound = errors.New("record not found")

// DB wraps a sql.DB connection.
type DB struct {
	conn     *sql.DB
	expenses *RecordStore
	incomes  *RecordStore
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer; one pooled connection also keeps
	// :memory: databases from being recreated per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{
		conn:     conn,
		expenses: &RecordStore{conn: conn, table: "expenses"},
		incomes:  &RecordStore{conn: conn, table: "incomes"},
	}, nil
}

// Expenses returns the store for expense records.
func (db *DB) Expenses() *RecordStore { return db.expenses }

// Incomes returns the store for income records.
func (db *DB) Incomes() *RecordStore { return db.incomes }

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser creates a new user with the given username and password hash.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id))
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.scanUser(db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username))
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// RecordStore persists one record table. Expenses and incomes are
// structurally identical, so both are served by this type bound to a fixed
// table name.
type RecordStore struct {
	conn  *sql.DB
	table string // set at construction, never caller input
}

const recordColumns = "id, title, amount, category, description, date, user_id, created_at, updated_at"

// ListByUser retrieves all records owned by userID, ordered by date descending.
func (s *RecordStore) ListByUser(ctx context.Context, userID string) ([]models.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM "+s.table+" WHERE user_id = ? ORDER BY date DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Amount, &rec.Category, &rec.Description,
			&rec.Date, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Get retrieves a single record by ID regardless of owner. The ownership
// comparison happens at the API boundary.
func (s *RecordStore) Get(ctx context.Context, id string) (*models.Record, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM "+s.table+" WHERE id = ?", id)

	var rec models.Record
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Amount, &rec.Category, &rec.Description,
		&rec.Date, &rec.UserID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Insert stores a new record, assigning an ID when the caller left it empty.
func (s *RecordStore) Insert(ctx context.Context, rec *models.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO "+s.table+" ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Title, rec.Amount, rec.Category, rec.Description,
		rec.Date, rec.UserID, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// Update writes rec back, scoped to its owner. Returns ErrNotFound when the
// row is absent or owned by someone else.
func (s *RecordStore) Update(ctx context.Context, rec *models.Record) error {
	result, err := s.conn.ExecContext(ctx,
		"UPDATE "+s.table+" SET title = ?, amount = ?, category = ?, description = ?, date = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		rec.Title, rec.Amount, rec.Category, rec.Description, rec.Date, rec.UpdatedAt,
		rec.ID, rec.UserID,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Delete removes a record, scoped to its owner. Returns ErrNotFound when the
// row is absent or owned by someone else.
func (s *RecordStore) Delete(ctx context.Context, id, userID string) error {
	result, err := s.conn.ExecContext(ctx,
		"DELETE FROM "+s.table+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
