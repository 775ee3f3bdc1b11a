// Package postgres is the durable registry backend. All statements run
// through the transaction carried in context when present, so one registry
// operation commits atomically across products, custody_events and ownership.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"provenance/internal/registry/models"
	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
	txcontext "provenance/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Store implements the registry store interfaces over PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the registry DDL. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create allocates the next gapless identifier and inserts the product. The
// MAX(id)+1 allocation is safe because the Tx runner executes registry
// transactions at serializable isolation; a racing insert fails and the
// loser surfaces sentinel.ErrConflict.
func (s *Store) Create(ctx context.Context, product *models.Product) error {
	row := s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO products (id, name, origin, created_at)
		VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM products), $1, $2, $3)
		RETURNING id`,
		product.Name, product.Origin, product.CreatedAt,
	)
	if err := row.Scan(&product.ID); err != nil {
		return fmt.Errorf("insert product: %w", translate(err))
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, productID uint64) (*models.Product, error) {
	row := s.querier(ctx).QueryRowContext(ctx, `
		SELECT id, name, origin, created_at FROM products WHERE id = $1`,
		int64(productID),
	)
	var product models.Product
	if err := row.Scan(&product.ID, &product.Name, &product.Origin, &product.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(MAX(id), 0) FROM products`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (s *Store) Append(ctx context.Context, productID uint64, event models.CustodyEvent) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO custody_events (product_id, action, actor, occurred_at)
		VALUES ($1, $2, $3, $4)`,
		int64(productID), string(event.Action), event.Actor.String(), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append custody event: %w", translate(err))
	}
	return nil
}

func (s *Store) ListByProduct(ctx context.Context, productID uint64) ([]models.CustodyEvent, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT action, actor, occurred_at FROM custody_events
		WHERE product_id = $1 ORDER BY id`,
		int64(productID),
	)
	if err != nil {
		return nil, fmt.Errorf("list custody events: %w", err)
	}
	defer rows.Close()

	var trail []models.CustodyEvent
	for rows.Next() {
		var event models.CustodyEvent
		var action, actor string
		if err := rows.Scan(&action, &actor, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan custody event: %w", err)
		}
		event.Action = models.Action(action)
		event.Actor = id.Identity(actor)
		trail = append(trail, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list custody events: %w", err)
	}
	// Every created product has at least its Created event, so an empty
	// trail means the product does not exist.
	if len(trail) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return trail, nil
}

// Get reads the current owner. Inside a transaction the row is locked FOR
// UPDATE so the losing side of two concurrent transfers waits, then observes
// the winner's committed owner and fails its authorization check.
func (s *Store) Get(ctx context.Context, productID uint64) (id.Identity, error) {
	query := `SELECT owner FROM ownership WHERE product_id = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	var owner string
	if err := s.querier(ctx).QueryRowContext(ctx, query, int64(productID)).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("get owner: %w", err)
	}
	return id.Identity(owner), nil
}

func (s *Store) Set(ctx context.Context, productID uint64, owner id.Identity) error {
	_, err := s.querier(ctx).ExecContext(ctx, `
		INSERT INTO ownership (product_id, owner) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET owner = EXCLUDED.owner`,
		int64(productID), owner.String(),
	)
	if err != nil {
		return fmt.Errorf("set owner: %w", translate(err))
	}
	return nil
}

func (s *Store) EnumerateAll(ctx context.Context) ([]models.OwnershipRecord, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT product_id, owner FROM ownership ORDER BY product_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("enumerate ownership: %w", err)
	}
	defer rows.Close()

	var records []models.OwnershipRecord
	for rows.Next() {
		var record models.OwnershipRecord
		var owner string
		if err := rows.Scan(&record.ProductID, &owner); err != nil {
			return nil, fmt.Errorf("scan ownership record: %w", err)
		}
		record.Owner = id.Identity(owner)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enumerate ownership: %w", err)
	}
	return records, nil
}

// translate maps driver errors onto store sentinels.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "40001": // unique_violation, serialization_failure
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
	}
	return err
}
