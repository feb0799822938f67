package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"blink/internal/domain"
	"blink/internal/plate"
)

var ErrNotFound = errors.New("not found")

// RecordStore is the local structured store for routes and buses. List results
// keep insertion order so "first match" lookups are stable.
type RecordStore interface {
	ListRoutes(ctx context.Context) ([]*domain.BusRoute, error)
	RouteByCode(ctx context.Context, code string) (*domain.BusRoute, error)
	RoutesByStation(ctx context.Context, station string) ([]*domain.BusRoute, error)
	CountRoutes(ctx context.Context) (int, error)
	InsertRoute(ctx context.Context, route *domain.BusRoute) error

	ListBuses(ctx context.Context) ([]*domain.BusInfo, error)
	BusesByPlate(ctx context.Context, plateNumber string) ([]*domain.BusInfo, error)
	CountBuses(ctx context.Context) (int, error)
	InsertBus(ctx context.Context, bus *domain.BusInfo) error
	SaveBus(ctx context.Context, bus *domain.BusInfo) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	DeleteBus(ctx context.Context, id string) error

	Clear(ctx context.Context) error
	Close() error
}

type Memory struct {
	mu         sync.RWMutex
	routes     map[string]*domain.BusRoute
	routeOrder []string
	byCode     map[string]string
	byStation  map[string]map[string]struct{}

	buses    map[string]*domain.BusInfo
	busOrder []string
	byPlate  map[string]map[string]struct{}
}

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.routes = make(map[string]*domain.BusRoute)
	m.routeOrder = nil
	m.byCode = make(map[string]string)
	m.byStation = make(map[string]map[string]struct{})
	m.buses = make(map[string]*domain.BusInfo)
	m.busOrder = nil
	m.byPlate = make(map[string]map[string]struct{})
}

func (m *Memory) ListRoutes(ctx context.Context) ([]*domain.BusRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.BusRoute, 0, len(m.routeOrder))
	for _, id := range m.routeOrder {
		result = append(result, m.routes[id].Clone())
	}
	return result, nil
}

// RouteByCode returns the first route inserted with the given code.
func (m *Memory) RouteByCode(ctx context.Context, code string) (*domain.BusRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return m.routes[id].Clone(), nil
}

func (m *Memory) RoutesByStation(ctx context.Context, station string) ([]*domain.BusRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byStation[station]
	result := make([]*domain.BusRoute, 0, len(ids))
	for _, id := range m.routeOrder {
		if _, ok := ids[id]; ok {
			result = append(result, m.routes[id].Clone())
		}
	}
	return result, nil
}

func (m *Memory) CountRoutes(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routes), nil
}

func (m *Memory) InsertRoute(ctx context.Context, route *domain.BusRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := route.Clone()
	if _, exists := m.routes[r.ID]; !exists {
		m.routeOrder = append(m.routeOrder, r.ID)
	}
	m.routes[r.ID] = r

	if _, taken := m.byCode[r.RouteCode]; !taken {
		m.byCode[r.RouteCode] = r.ID
	}
	for _, s := range r.Stations {
		if m.byStation[s.Name] == nil {
			m.byStation[s.Name] = make(map[string]struct{})
		}
		m.byStation[s.Name][r.ID] = struct{}{}
	}
	return nil
}

func (m *Memory) ListBuses(ctx context.Context) ([]*domain.BusInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.BusInfo, 0, len(m.busOrder))
	for _, id := range m.busOrder {
		copy := *m.buses[id]
		result = append(result, &copy)
	}
	return result, nil
}

// BusesByPlate returns every bus whose plate normalizes to the same key as
// plateNumber, in insertion order. Duplicates are returned as stored.
func (m *Memory) BusesByPlate(ctx context.Context, plateNumber string) ([]*domain.BusInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byPlate[plate.Normalize(plateNumber)]
	var result []*domain.BusInfo
	for _, id := range m.busOrder {
		if _, ok := ids[id]; ok {
			copy := *m.buses[id]
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *Memory) CountBuses(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buses), nil
}

func (m *Memory) InsertBus(ctx context.Context, bus *domain.BusInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.buses[bus.ID]; exists {
		m.removeFromPlateIndex(existing)
	} else {
		m.busOrder = append(m.busOrder, bus.ID)
	}

	b := *bus
	m.buses[b.ID] = &b
	m.addToPlateIndex(&b)
	return nil
}

func (m *Memory) SaveBus(ctx context.Context, bus *domain.BusInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.buses[bus.ID]
	if !ok {
		return ErrNotFound
	}
	m.removeFromPlateIndex(existing)

	b := *bus
	m.buses[b.ID] = &b
	m.addToPlateIndex(&b)
	return nil
}

func (m *Memory) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buses[id]
	if !ok {
		return ErrNotFound
	}
	b.LastSeen = at
	return nil
}

func (m *Memory) DeleteBus(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buses[id]
	if !ok {
		return ErrNotFound
	}
	m.removeFromPlateIndex(b)
	delete(m.buses, id)
	for i, bid := range m.busOrder {
		if bid == id {
			m.busOrder = append(m.busOrder[:i], m.busOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) addToPlateIndex(b *domain.BusInfo) {
	key := plate.Normalize(b.PlateNumber)
	if m.byPlate[key] == nil {
		m.byPlate[key] = make(map[string]struct{})
	}
	m.byPlate[key][b.ID] = struct{}{}
}

func (m *Memory) removeFromPlateIndex(b *domain.BusInfo) {
	key := plate.Normalize(b.PlateNumber)
	if m.byPlate[key] != nil {
		delete(m.byPlate[key], b.ID)
		if len(m.byPlate[key]) == 0 {
			delete(m.byPlate, key)
		}
	}
}
