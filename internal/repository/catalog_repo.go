package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// CatalogRepo reads authoritative product prices. The products table is
// owned by the catalog; this service never writes it.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Prices returns the current unit price of every active product in ids.
// Unknown or inactive products are absent from the map.
func (r *CatalogRepo) Prices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, price FROM products WHERE is_active AND id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "select prices")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			price decimal.Decimal
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, errors.Wrap(err, "scan price")
		}
		prices[id] = price
	}
	return prices, errors.Wrap(rows.Err(), "select prices")
}
