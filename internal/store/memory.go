package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/models"
)

// MemoryStore is an in-process backend used in tests and dev mode. It
// honors the same conditional-write contract as the durable backends.
type MemoryStore struct {
	mu           sync.RWMutex
	inventory    map[string]*models.InventoryRecord
	skuIndex     map[string]string
	reservations map[string]*models.Reservation
	movements    map[string][]models.StockMovement
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inventory:    make(map[string]*models.InventoryRecord),
		skuIndex:     make(map[string]string),
		reservations: make(map[string]*models.Reservation),
		movements:    make(map[string][]models.StockMovement),
	}
}

func (s *MemoryStore) CreateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inventory[rec.ProductID]; ok {
		return ErrKeyExists
	}
	if _, ok := s.skuIndex[rec.SKU]; ok {
		return ErrKeyExists
	}

	rec.Version = 1
	cp := *rec
	s.inventory[rec.ProductID] = &cp
	s.skuIndex[rec.SKU] = rec.ProductID
	return nil
}

func (s *MemoryStore) GetInventory(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.inventory[productID]
	if !ok {
		return nil, ErrNotExist
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetInventoryBySKU(ctx context.Context, sku string) (*models.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	productID, ok := s.skuIndex[sku]
	if !ok {
		return nil, ErrNotExist
	}
	cp := *s.inventory[productID]
	return &cp, nil
}

func (s *MemoryStore) UpdateInventory(ctx context.Context, rec *models.InventoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.inventory[rec.ProductID]
	if !ok {
		return ErrNotExist
	}
	if cur.Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	s.inventory[rec.ProductID] = &cp
	return nil
}

func (s *MemoryStore) ListLowStock(ctx context.Context) ([]models.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.InventoryRecord
	for _, rec := range s.inventory {
		if rec.IsLowStock() {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *MemoryStore) CreateReservation(ctx context.Context, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[res.ReservationID]; ok {
		return ErrKeyExists
	}
	cp := *res
	s.reservations[res.ReservationID] = &cp
	return nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[reservationID]
	if !ok {
		return nil, ErrNotExist
	}
	cp := *res
	return &cp, nil
}

func (s *MemoryStore) TransitionReservation(ctx context.Context, reservationID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[reservationID]
	if !ok {
		return ErrNotExist
	}
	if res.Status != from {
		return ErrVersionConflict
	}
	res.Status = to
	return nil
}

func (s *MemoryStore) ListExpiredActive(ctx context.Context, before time.Time, limit int) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Reservation
	for _, res := range s.reservations {
		if res.Status == models.ReservationStatusActive && res.ExpiresAt.Before(before) {
			out = append(out, *res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendMovement(ctx context.Context, mv *models.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.movements[mv.ProductID] = append(s.movements[mv.ProductID], *mv)
	return nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hist := s.movements[productID]
	out := make([]models.StockMovement, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		out = append(out, hist[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
