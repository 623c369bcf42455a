package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore persists the ledger in Postgres. Conditional creates use
// ON CONFLICT DO NOTHING; conditional updates check the version column and
// inspect RowsAffected.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the ledger tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *PostgresStore) CreateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO inventory (product_id, sku, available_stock, reserved_stock, total_stock,
				low_stock_threshold, reorder_point, reorder_quantity, location, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
			ON CONFLICT DO NOTHING
			RETURNING version, created_at, updated_at`

		err := s.db.QueryRowxContext(ctx, query,
			rec.ProductID, rec.SKU, rec.AvailableStock, rec.ReservedStock, rec.TotalStock,
			rec.LowStockThreshold, rec.ReorderPoint, rec.ReorderQuantity, rec.Location,
		).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
		if err == sql.ErrNoRows {
			return ErrKeyExists
		}
		if isUniqueViolation(err) {
			return ErrKeyExists
		}
		return err
	})
}

func (s *PostgresStore) GetInventory(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &rec, "SELECT * FROM inventory WHERE product_id = $1", productID)
		if err == sql.ErrNoRows {
			return ErrNotExist
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &rec, "SELECT * FROM inventory WHERE sku = $1", sku)
		if err == sql.ErrNoRows {
			return ErrNotExist
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) UpdateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		query := `
			UPDATE inventory
			SET available_stock = $1, reserved_stock = $2, total_stock = $3,
				low_stock_threshold = $4, reorder_point = $5, reorder_quantity = $6,
				location = $7, version = version + 1, updated_at = NOW()
			WHERE product_id = $8 AND version = $9`

		result, err := s.db.ExecContext(ctx, query,
			rec.AvailableStock, rec.ReservedStock, rec.TotalStock,
			rec.LowStockThreshold, rec.ReorderPoint, rec.ReorderQuantity,
			rec.Location, rec.ProductID, rec.Version)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			var exists bool
			if err := s.db.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM inventory WHERE product_id = $1)", rec.ProductID); err != nil {
				return err
			}
			if !exists {
				return ErrNotExist
			}
			return ErrVersionConflict
		}

		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (s *PostgresStore) ListLowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &records,
			"SELECT * FROM inventory WHERE available_stock <= low_stock_threshold ORDER BY product_id")
	})
	return records, err
}

func (s *PostgresStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO reservations (reservation_id, product_id, order_id, quantity, status, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (reservation_id) DO NOTHING`

		result, err := s.db.ExecContext(ctx, query,
			res.ReservationID, res.ProductID, res.OrderID, res.Quantity,
			res.Status, res.CreatedAt, res.ExpiresAt)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrKeyExists
		}
		return nil
	})
}

func (s *PostgresStore) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	var res models.Reservation
	err := withBackoff(ctx, func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &res,
			"SELECT * FROM reservations WHERE reservation_id = $1", reservationID)
		if err == sql.ErrNoRows {
			return ErrNotExist
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *PostgresStore) TransitionReservation(ctx context.Context, reservationID, from, to string) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx,
			"UPDATE reservations SET status = $1 WHERE reservation_id = $2 AND status = $3",
			to, reservationID, from)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			var exists bool
			if err := s.db.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM reservations WHERE reservation_id = $1)", reservationID); err != nil {
				return err
			}
			if !exists {
				return ErrNotExist
			}
			return ErrVersionConflict
		}
		return nil
	})
}

func (s *PostgresStore) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := withBackoff(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &reservations, `
			SELECT * FROM reservations
			WHERE status = $1 AND expires_at < $2
			ORDER BY expires_at
			LIMIT $3`,
			models.ReservationStatusActive, before, limit)
	})
	return reservations, err
}

func (s *PostgresStore) AppendMovement(ctx context.Context, mv *models.StockMovement) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO stock_movements (movement_id, product_id, type, quantity, reference, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			mv.MovementID, mv.ProductID, mv.Type, mv.Quantity, mv.Reference, mv.Timestamp)
		return err
	})
}

func (s *PostgresStore) ListMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := withBackoff(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &movements, `
			SELECT * FROM stock_movements
			WHERE product_id = $1
			ORDER BY timestamp DESC, movement_id DESC
			LIMIT $2`,
			productID, limit)
	})
	return movements, err
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
