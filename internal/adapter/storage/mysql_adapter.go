package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tholander/bagwatch/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the tables if they don't exist yet.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			quantity INT NOT NULL DEFAULT 0,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT,
			price_minor_units INT NOT NULL DEFAULT 0,
			price_decimals INT NOT NULL DEFAULT 0,
			logo_url VARCHAR(512) NOT NULL DEFAULT '',
			branch VARCHAR(255) NOT NULL DEFAULT '',
			address VARCHAR(512) NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL DEFAULT 0,
			longitude DOUBLE NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			slack_id VARCHAR(64) NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			PRIMARY KEY (user_id, item_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (item_id) REFERENCES items(id)
		)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TINYINT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			cookie TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const itemColumns = `id, quantity, display_name, COALESCE(description, ''), price_minor_units,
	price_decimals, logo_url, branch, address, latitude, longitude, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.Quantity, &it.DisplayName, &it.Description,
		&it.PriceMinorUnits, &it.PriceDecimals, &it.LogoURL, &it.Branch,
		&it.Address, &it.Latitude, &it.Longitude, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (m *MySQLAdapter) GetItems(ctx context.Context) (map[int64]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]domain.Item)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	it, err := scanItem(m.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item %d: %w", id, err)
	}
	return &it, nil
}

func (m *MySQLAdapter) UpsertItems(ctx context.Context, items []domain.Item) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, quantity, display_name, description, price_minor_units,
			price_decimals, logo_url, branch, address, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = VALUES(quantity),
			display_name = VALUES(display_name),
			description = VALUES(description),
			price_minor_units = VALUES(price_minor_units),
			price_decimals = VALUES(price_decimals),
			logo_url = VALUES(logo_url),
			branch = VALUES(branch),
			address = VALUES(address),
			latitude = VALUES(latitude),
			longitude = VALUES(longitude)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		_, err := stmt.ExecContext(ctx, it.ID, it.Quantity, it.DisplayName, it.Description,
			it.PriceMinorUnits, it.PriceDecimals, it.LogoURL, it.Branch,
			it.Address, it.Latitude, it.Longitude)
		if err != nil {
			return fmt.Errorf("upsert item %d: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) SearchItems(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE display_name LIKE CONCAT('%', ?, '%')
		ORDER BY display_name, id
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) GetOrCreateUser(ctx context.Context, slackID string) (domain.User, error) {
	// LAST_INSERT_ID(id) makes the duplicate-key path report the existing row's id.
	res, err := m.db.ExecContext(ctx, `
		INSERT INTO users (slack_id) VALUES (?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`, slackID)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}

	var user domain.User
	err = m.db.QueryRowContext(ctx,
		`SELECT id, slack_id, created_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.SlackID, &user.CreatedAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("query user %d: %w", id, err)
	}
	return user, nil
}

func (m *MySQLAdapter) Subscribe(ctx context.Context, userID, itemID int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Placeholder row so subscribing ahead of the first sighting works; the
	// reconciler fills in metadata once the item shows up in a fetch.
	_, err = tx.ExecContext(ctx,
		`INSERT IGNORE INTO items (id, quantity) VALUES (?, 0)`, itemID)
	if err != nil {
		return fmt.Errorf("ensure item %d: %w", itemID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT IGNORE INTO subscriptions (user_id, item_id) VALUES (?, ?)`, userID, itemID)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Unsubscribe(ctx context.Context, userID, itemID int64) (bool, error) {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = ? AND item_id = ?`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}

	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ListSubscriptions(ctx context.Context, userID int64) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		JOIN subscriptions s ON s.item_id = items.id
		WHERE s.user_id = ?
		ORDER BY items.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) SubscribersFor(ctx context.Context, itemID int64) ([]domain.User, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT u.id, u.slack_id, u.created_at FROM users u
		JOIN subscriptions s ON s.user_id = u.id
		WHERE s.item_id = ?
		ORDER BY u.id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.SlackID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (m *MySQLAdapter) GetCredentials(ctx context.Context) (*domain.Credentials, error) {
	var creds domain.Credentials
	err := m.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, cookie, updated_at
		FROM credentials WHERE id = 1`).
		Scan(&creds.AccessToken, &creds.RefreshToken, &creds.Cookie, &creds.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	return &creds, nil
}

func (m *MySQLAdapter) SaveCredentials(ctx context.Context, creds domain.Credentials) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO credentials (id, access_token, refresh_token, cookie)
		VALUES (1, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			access_token = VALUES(access_token),
			refresh_token = VALUES(refresh_token),
			cookie = VALUES(cookie),
			updated_at = CURRENT_TIMESTAMP`,
		creds.AccessToken, creds.RefreshToken, creds.Cookie)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ClearCredentials(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
