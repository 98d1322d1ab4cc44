// Package catalog is the SQLite-backed reward catalog: credit cards,
// merchant categories, card-category reward rows, merchants, and the
// server-side saved-card store. Lookups signal absence with a nil
// result, never an error; errors mean the store itself failed.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"card-rewards-api/internal/models"
)

// DB wraps the database connection and provides catalog access.
type DB struct {
	conn *sql.DB
}

// NewDB opens the catalog database and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS credit_cards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			issuer TEXT NOT NULL,
			annual_fee INTEGER NOT NULL,
			min_credit_score INTEGER NOT NULL,
			base_reward REAL NOT NULL DEFAULT 1.0,
			welcome_bonus TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS merchant_categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS card_category_rewards (
			id TEXT PRIMARY KEY,
			card_id TEXT NOT NULL,
			category_id TEXT NOT NULL,
			reward_rate REAL NOT NULL,
			is_rotating INTEGER NOT NULL,
			rotation_period TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS merchants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category_id TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			latitude REAL,
			longitude REAL,
			is_chain INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS saved_cards (
			user_id TEXT NOT NULL,
			card_id TEXT NOT NULL,
			saved_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, card_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_category ON card_category_rewards(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_card ON card_category_rewards(card_id)`,
		`CREATE INDEX IF NOT EXISTS idx_merchants_category ON merchants(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_cards_user ON saved_cards(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// GetMerchant returns the merchant with the given id, or nil if absent.
func (db *DB) GetMerchant(ctx context.Context, id string) (*models.Merchant, error) {
	query := `SELECT id, name, category_id, address, latitude, longitude, is_chain
		FROM merchants WHERE id = ?`

	var m models.Merchant
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.CategoryID,
		&m.Address,
		&m.Latitude,
		&m.Longitude,
		&m.IsChain,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant: %w", err)
	}

	return &m, nil
}

// GetCategory returns the category with the given id, or nil if absent.
func (db *DB) GetCategory(ctx context.Context, id string) (*models.MerchantCategory, error) {
	query := `SELECT id, name, description, icon FROM merchant_categories WHERE id = ?`

	var c models.MerchantCategory
	err := db.conn.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.Icon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &c, nil
}

// GetCard returns the card with the given id, or nil if absent.
func (db *DB) GetCard(ctx context.Context, id string) (*models.CreditCard, error) {
	query := `SELECT id, name, issuer, annual_fee, min_credit_score, base_reward,
		welcome_bonus, description, is_active
		FROM credit_cards WHERE id = ?`

	var c models.CreditCard
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Issuer,
		&c.AnnualFee,
		&c.MinCreditScore,
		&c.BaseReward,
		&c.WelcomeBonus,
		&c.Description,
		&c.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query card: %w", err)
	}

	return &c, nil
}

// GetRewardsForCategory returns every reward row for a category, active
// this quarter or not, in catalog row order. Downstream tie-breaking
// relies on this order being stable across calls.
func (db *DB) GetRewardsForCategory(ctx context.Context, categoryID string) ([]models.CardCategoryReward, error) {
	query := `SELECT id, card_id, category_id, reward_rate, is_rotating, rotation_period
		FROM card_category_rewards
		WHERE category_id = ?
		ORDER BY rowid`

	rows, err := db.conn.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []models.CardCategoryReward
	for rows.Next() {
		var r models.CardCategoryReward
		if err := rows.Scan(&r.ID, &r.CardID, &r.CategoryID, &r.RewardRate, &r.IsRotating, &r.RotationPeriod); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}

	return rewards, nil
}

// GetActiveCards returns all active cards in catalog row order.
func (db *DB) GetActiveCards(ctx context.Context) ([]models.CreditCard, error) {
	query := `SELECT id, name, issuer, annual_fee, min_credit_score, base_reward,
		welcome_bonus, description, is_active
		FROM credit_cards
		WHERE is_active = 1
		ORDER BY rowid`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active cards: %w", err)
	}
	defer rows.Close()

	var cards []models.CreditCard
	for rows.Next() {
		var c models.CreditCard
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Issuer,
			&c.AnnualFee,
			&c.MinCreditScore,
			&c.BaseReward,
			&c.WelcomeBonus,
			&c.Description,
			&c.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	return cards, nil
}

// UpsertCard creates or updates a credit card.
func (db *DB) UpsertCard(ctx context.Context, card models.CreditCard) error {
	query := `INSERT INTO credit_cards (
		id, name, issuer, annual_fee, min_credit_score, base_reward,
		welcome_bonus, description, is_active, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		issuer = excluded.issuer,
		annual_fee = excluded.annual_fee,
		min_credit_score = excluded.min_credit_score,
		base_reward = excluded.base_reward,
		welcome_bonus = excluded.welcome_bonus,
		description = excluded.description,
		is_active = excluded.is_active,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		card.ID,
		card.Name,
		card.Issuer,
		card.AnnualFee,
		card.MinCreditScore,
		card.BaseReward,
		card.WelcomeBonus,
		card.Description,
		card.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}

	return nil
}

// UpsertCategory creates or updates a merchant category.
func (db *DB) UpsertCategory(ctx context.Context, category models.MerchantCategory) error {
	query := `INSERT INTO merchant_categories (id, name, description, icon)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		icon = excluded.icon`

	_, err := db.conn.ExecContext(ctx, query, category.ID, category.Name, category.Description, category.Icon)
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}

	return nil
}

// UpsertMerchant creates or updates a merchant.
func (db *DB) UpsertMerchant(ctx context.Context, merchant models.Merchant) error {
	query := `INSERT INTO merchants (id, name, category_id, address, latitude, longitude, is_chain)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		category_id = excluded.category_id,
		address = excluded.address,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		is_chain = excluded.is_chain`

	_, err := db.conn.ExecContext(ctx, query,
		merchant.ID,
		merchant.Name,
		merchant.CategoryID,
		merchant.Address,
		merchant.Latitude,
		merchant.Longitude,
		merchant.IsChain,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert merchant: %w", err)
	}

	return nil
}

// UpsertReward creates or updates a card-category reward row.
func (db *DB) UpsertReward(ctx context.Context, reward models.CardCategoryReward) error {
	query := `INSERT INTO card_category_rewards (
		id, card_id, category_id, reward_rate, is_rotating, rotation_period
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		card_id = excluded.card_id,
		category_id = excluded.category_id,
		reward_rate = excluded.reward_rate,
		is_rotating = excluded.is_rotating,
		rotation_period = excluded.rotation_period`

	_, err := db.conn.ExecContext(ctx, query,
		reward.ID,
		reward.CardID,
		reward.CategoryID,
		reward.RewardRate,
		reward.IsRotating,
		reward.RotationPeriod,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert reward: %w", err)
	}

	return nil
}

// SaveCard records that a user saved a card. Saving twice is a no-op.
func (db *DB) SaveCard(ctx context.Context, userID, cardID string) error {
	query := `INSERT INTO saved_cards (user_id, card_id, saved_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id, card_id) DO NOTHING`

	_, err := db.conn.ExecContext(ctx, query, userID, cardID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save card: %w", err)
	}

	return nil
}

// UnsaveCard removes a saved card. Removing an absent row is a no-op.
func (db *DB) UnsaveCard(ctx context.Context, userID, cardID string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM saved_cards WHERE user_id = ? AND card_id = ?`, userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to unsave card: %w", err)
	}

	return nil
}

// GetSavedCardIDs returns the card ids a user has saved, oldest first.
func (db *DB) GetSavedCardIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT card_id FROM saved_cards WHERE user_id = ? ORDER BY saved_at, card_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved cards: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan saved card: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved cards: %w", err)
	}

	return ids, nil
}
