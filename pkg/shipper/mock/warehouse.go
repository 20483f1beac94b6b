package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tournevent/fulfillment/pkg/shipper"
)

// WarehouseData is an in-memory shipper.WarehouseData.
type WarehouseData struct {
	mu         sync.Mutex
	warehouses map[string]*shipper.Warehouse
	accounts   map[string]*shipper.Account
	pickups    map[string][]shipper.PickupRequest
	tracking   map[string][]shipper.TrackingRecord
	requires   map[string]bool
	booked     []int64
	updates    []shipper.TrackingUpdate

	// ErrMarkBooked makes MarkPickupBooked fail when set.
	ErrMarkBooked error
}

// NewWarehouseData creates empty warehouse data.
func NewWarehouseData() *WarehouseData {
	return &WarehouseData{
		warehouses: make(map[string]*shipper.Warehouse),
		accounts:   make(map[string]*shipper.Account),
		pickups:    make(map[string][]shipper.PickupRequest),
		tracking:   make(map[string][]shipper.TrackingRecord),
		requires:   make(map[string]bool),
	}
}

// AddWarehouse registers a warehouse and whether it needs a pickup.
func (d *WarehouseData) AddWarehouse(w shipper.Warehouse, requiresPickup bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warehouses[w.LocationID] = &w
	d.requires[w.LocationID] = requiresPickup
}

// AddAccount registers a carrier account for an origin country.
func (d *WarehouseData) AddAccount(a shipper.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[accountKey(a.Carrier, a.CountryCode)] = &a
}

// AddPendingPickup queues a pickup request for carrier.
func (d *WarehouseData) AddPendingPickup(carrier string, r shipper.PickupRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pickups[carrier] = append(d.pickups[carrier], r)
}

// AddPendingTracking queues a tracking record for carrier.
func (d *WarehouseData) AddPendingTracking(carrier string, r shipper.TrackingRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracking[carrier] = append(d.tracking[carrier], r)
}

// Booked returns the fulfillment ids marked as booked.
func (d *WarehouseData) Booked() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.booked...)
}

// Updates returns the saved tracking updates.
func (d *WarehouseData) Updates() []shipper.TrackingUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shipper.TrackingUpdate(nil), d.updates...)
}

func (d *WarehouseData) WarehouseInfo(ctx context.Context, locationID string) (*shipper.Warehouse, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.warehouses[locationID]
	if !ok {
		return nil, fmt.Errorf("warehouse %s not found", locationID)
	}
	cp := *w
	return &cp, nil
}

func (d *WarehouseData) AccountInfo(ctx context.Context, carrier, countryCode string) (*shipper.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[accountKey(carrier, countryCode)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (d *WarehouseData) PendingPickups(ctx context.Context, carrier string) ([]shipper.PickupRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shipper.PickupRequest(nil), d.pickups[carrier]...), nil
}

func (d *WarehouseData) PendingTrackingUpdates(ctx context.Context, carrier string) ([]shipper.TrackingRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shipper.TrackingRecord(nil), d.tracking[carrier]...), nil
}

func (d *WarehouseData) MarkPickupBooked(ctx context.Context, fulfillmentID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ErrMarkBooked != nil {
		return d.ErrMarkBooked
	}
	d.booked = append(d.booked, fulfillmentID)
	return nil
}

func (d *WarehouseData) RequiresPickup(ctx context.Context, locationID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requires[locationID], nil
}

func (d *WarehouseData) SaveTrackingUpdate(ctx context.Context, update shipper.TrackingUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, update)
	return nil
}

func accountKey(carrier, country string) string {
	return strings.ToUpper(carrier) + "/" + strings.ToUpper(country)
}

var _ shipper.WarehouseData = (*WarehouseData)(nil)

// LabelStore is an in-memory shipper.LabelStore.
type LabelStore struct {
	mu     sync.Mutex
	labels map[string]Label

	// Err makes PutLabel fail when set.
	Err error
}

// Label is a stored label.
type Label struct {
	ContentType string
	Data        []byte
}

// NewLabelStore creates an empty label store.
func NewLabelStore() *LabelStore {
	return &LabelStore{labels: make(map[string]Label)}
}

// PutLabel stores data under key and returns a fake public URL.
func (s *LabelStore) PutLabel(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[key] = Label{ContentType: contentType, Data: append([]byte(nil), data...)}
	return "https://labels.mock/" + key, nil
}

// Get returns the label stored under key.
func (s *LabelStore) Get(key string) (Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.labels[key]
	return l, ok
}

// Keys returns the stored label keys.
func (s *LabelStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.labels))
	for k := range s.labels {
		keys = append(keys, k)
	}
	return keys
}

var _ shipper.LabelStore = (*LabelStore)(nil)
