package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("product not found")

type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	ListByCard(ctx context.Context, cardID string) ([]Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
	GetByID(ctx context.Context, productID string) (*Product, error)
	Upsert(ctx context.Context, p *Product) error
	SetStock(ctx context.Context, productID string, stock int) error

	ListCards(ctx context.Context) ([]HomepageCard, error)
	UpsertCard(ctx context.Context, c *HomepageCard) error
	DeleteCard(ctx context.Context, cardID string) error

	LogSearchWithTx(ctx context.Context, tx *sql.Tx, userID, query string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const productColumns = `id, name, description, price, original_price, stock, category, image_url, card_id, updated_at`

func (r *repo) List(ctx context.Context) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
}

func (r *repo) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY name`, category)
}

func (r *repo) ListByCard(ctx context.Context, cardID string) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE card_id = $1 ORDER BY name`, cardID)
}

func (r *repo) Search(ctx context.Context, query string) ([]Product, error) {
	return r.query(ctx,
		`SELECT `+productColumns+` FROM products
         WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'
         ORDER BY name`, query)
}

func (r *repo) query(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func scanProduct(rows *sql.Rows) (Product, error) {
	var (
		p        Product
		original sql.NullFloat64
		cardID   sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &original, &p.Stock, &p.Category, &p.ImageURL, &cardID, &p.UpdatedAt); err != nil {
		return Product{}, fmt.Errorf("scan product: %w", err)
	}
	if original.Valid {
		p.OriginalPrice = &original.Float64
	}
	p.CardID = cardID.String
	p.StockStatus = stockStatus(p.Stock)
	return p, nil
}

func (r *repo) GetByID(ctx context.Context, productID string) (*Product, error) {
	var (
		p        Product
		original sql.NullFloat64
		cardID   sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &original, &p.Stock, &p.Category, &p.ImageURL, &cardID, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	if original.Valid {
		p.OriginalPrice = &original.Float64
	}
	p.CardID = cardID.String
	p.StockStatus = stockStatus(p.Stock)
	return &p, nil
}

func (r *repo) Upsert(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var cardID any
	if p.CardID != "" {
		cardID = p.CardID
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, description, price, original_price, stock, category, image_url, card_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, original_price = EXCLUDED.original_price,
			stock = EXCLUDED.stock, category = EXCLUDED.category,
			image_url = EXCLUDED.image_url, card_id = EXCLUDED.card_id,
			updated_at = NOW()
		RETURNING updated_at
	`, p.ID, p.Name, p.Description, p.Price, p.OriginalPrice, p.Stock, p.Category, p.ImageURL, cardID).
		Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	p.StockStatus = stockStatus(p.Stock)
	return nil
}

func (r *repo) SetStock(ctx context.Context, productID string, stock int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, productID, stock)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ListCards(ctx context.Context) ([]HomepageCard, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, category, image_url, position FROM homepage_cards ORDER BY position, title`)
	if err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}
	defer rows.Close()

	var out []HomepageCard
	for rows.Next() {
		var c HomepageCard
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.ImageURL, &c.Position); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *repo) UpsertCard(ctx context.Context, c *HomepageCard) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO homepage_cards (id, title, category, image_url, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, category = EXCLUDED.category,
			image_url = EXCLUDED.image_url, position = EXCLUDED.position
	`, c.ID, c.Title, c.Category, c.ImageURL, c.Position)
	if err != nil {
		return fmt.Errorf("upsert card: %w", err)
	}
	return nil
}

func (r *repo) DeleteCard(ctx context.Context, cardID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM homepage_cards WHERE id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func (r *repo) LogSearchWithTx(ctx context.Context, tx *sql.Tx, userID, query string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO search_logs (user_id, query) VALUES ($1, $2)`, userID, query)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	return nil
}
