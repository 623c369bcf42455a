package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"inventory-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/create_inventory.lua
var createInventoryScript string

//go:embed scripts/update_inventory.lua
var updateInventoryScript string

//go:embed scripts/create_reservation.lua
var createReservationScript string

//go:embed scripts/transition_reservation.lua
var transitionReservationScript string

// Script results shared by the conditional-write scripts.
const (
	scriptMissing  = -1
	scriptConflict = 0
	scriptOK       = 1
)

// RedisStore persists the ledger in Redis. Each record is a JSON value;
// inventory records carry a version field in a sibling hash slot, and every
// conditional write runs as a Lua script so the check and the write commit
// atomically.
type RedisStore struct {
	rdb             *redis.Client
	createInventory *redis.Script
	updateInventory *redis.Script
	createRes       *redis.Script
	transitionRes   *redis.Script
}

// NewRedisStore connects to Redis and loads the conditional-write scripts.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		rdb:             rdb,
		createInventory: redis.NewScript(createInventoryScript),
		updateInventory: redis.NewScript(updateInventoryScript),
		createRes:       redis.NewScript(createReservationScript),
		transitionRes:   redis.NewScript(transitionReservationScript),
	}, nil
}

func invKey(productID string) string     { return fmt.Sprintf("inventory:%s", productID) }
func skuKey(sku string) string           { return fmt.Sprintf("inventory:sku:%s", sku) }
func resKey(reservationID string) string { return fmt.Sprintf("reservation:%s", reservationID) }
func movKey(productID string) string     { return fmt.Sprintf("movements:%s", productID) }

const (
	productIndexKey = "inventory:index"
	expiryIndexKey  = "reservations:expiry"
)

func (s *RedisStore) CreateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		rec.Version = 1
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		result, err := s.createInventory.Run(ctx, s.rdb,
			[]string{invKey(rec.ProductID), skuKey(rec.SKU), productIndexKey},
			string(data), rec.ProductID).Int64()
		if err != nil {
			return fmt.Errorf("create inventory script failed: %w", err)
		}
		if result != scriptOK {
			return ErrKeyExists
		}
		return nil
	})
}

func (s *RedisStore) GetInventory(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	var rec *models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.getInventory(ctx, productID)
		return err
	})
	return rec, err
}

func (s *RedisStore) getInventory(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	vals, err := s.rdb.HMGet(ctx, invKey(productID), "data", "ver").Result()
	if err != nil {
		return nil, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, ErrNotExist
	}

	var rec models.InventoryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("corrupt inventory record %s: %w", productID, err)
	}
	if verStr, ok := vals[1].(string); ok {
		rec.Version, _ = strconv.ParseInt(verStr, 10, 64)
	}
	return &rec, nil
}

func (s *RedisStore) GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	var rec *models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		productID, err := s.rdb.Get(ctx, skuKey(sku)).Result()
		if err == redis.Nil {
			return ErrNotExist
		}
		if err != nil {
			return err
		}
		rec, err = s.getInventory(ctx, productID)
		return err
	})
	return rec, err
}

func (s *RedisStore) UpdateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		next := *rec
		next.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(&next)
		if err != nil {
			return err
		}

		result, err := s.updateInventory.Run(ctx, s.rdb,
			[]string{invKey(rec.ProductID)},
			strconv.FormatInt(rec.Version, 10), string(data)).Int64()
		if err != nil {
			return fmt.Errorf("update inventory script failed: %w", err)
		}
		switch result {
		case scriptMissing:
			return ErrNotExist
		case scriptConflict:
			return ErrVersionConflict
		}

		rec.Version++
		rec.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (s *RedisStore) ListLowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	var out []models.InventoryRecord
	err := withBackoff(ctx, func(ctx context.Context) error {
		ids, err := s.rdb.SMembers(ctx, productIndexKey).Result()
		if err != nil {
			return err
		}

		out = out[:0]
		for _, id := range ids {
			rec, err := s.getInventory(ctx, id)
			if errors.Is(err, ErrNotExist) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.IsLowStock() {
				out = append(out, *rec)
			}
		}
		return nil
	})
	return out, err
}

func (s *RedisStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		data, err := json.Marshal(res)
		if err != nil {
			return err
		}

		result, err := s.createRes.Run(ctx, s.rdb,
			[]string{resKey(res.ReservationID), expiryIndexKey},
			string(data), res.ReservationID, res.ExpiresAt.UnixMilli()).Int64()
		if err != nil {
			return fmt.Errorf("create reservation script failed: %w", err)
		}
		if result != scriptOK {
			return ErrKeyExists
		}
		return nil
	})
}

func (s *RedisStore) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	var res models.Reservation
	err := withBackoff(ctx, func(ctx context.Context) error {
		raw, err := s.rdb.Get(ctx, resKey(reservationID)).Result()
		if err == redis.Nil {
			return ErrNotExist
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *RedisStore) TransitionReservation(ctx context.Context, reservationID, from, to string) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		result, err := s.transitionRes.Run(ctx, s.rdb,
			[]string{resKey(reservationID), expiryIndexKey},
			from, to, reservationID).Int64()
		if err != nil {
			return fmt.Errorf("transition reservation script failed: %w", err)
		}
		switch result {
		case scriptMissing:
			return ErrNotExist
		case scriptConflict:
			return ErrVersionConflict
		}
		return nil
	})
}

func (s *RedisStore) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	var out []models.Reservation
	err := withBackoff(ctx, func(ctx context.Context) error {
		// Scores are unix milliseconds; the exclusive bound keeps the
		// contract strict (expiresAt < before) without losing holds that
		// lapsed within the current second.
		ids, err := s.rdb.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
			Count: int64(limit),
		}).Result()
		if err != nil {
			return err
		}

		out = out[:0]
		for _, id := range ids {
			res, err := s.GetReservation(ctx, id)
			if errors.Is(err, ErrNotExist) {
				// Index entry outlived its reservation; drop it.
				s.rdb.ZRem(ctx, expiryIndexKey, id)
				continue
			}
			if err != nil {
				return err
			}
			if res.Status == models.ReservationStatusActive {
				out = append(out, *res)
			}
		}
		return nil
	})
	return out, err
}

func (s *RedisStore) AppendMovement(ctx context.Context, mv *models.StockMovement) error {
	return withBackoff(ctx, func(ctx context.Context) error {
		data, err := json.Marshal(mv)
		if err != nil {
			return err
		}
		return s.rdb.LPush(ctx, movKey(mv.ProductID), string(data)).Err()
	})
}

func (s *RedisStore) ListMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	var out []models.StockMovement
	err := withBackoff(ctx, func(ctx context.Context) error {
		entries, err := s.rdb.LRange(ctx, movKey(productID), 0, int64(limit)-1).Result()
		if err != nil {
			return err
		}

		out = make([]models.StockMovement, 0, len(entries))
		for _, raw := range entries {
			var mv models.StockMovement
			if err := json.Unmarshal([]byte(raw), &mv); err != nil {
				return fmt.Errorf("corrupt movement entry for %s: %w", productID, err)
			}
			out = append(out, mv)
		}
		return nil
	})
	return out, err
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
