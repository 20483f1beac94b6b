// Package store persists warehouses, carrier accounts, fulfillments and
// tracking events in PostgreSQL using GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the GORM implementation of shipper.WarehouseData and of the
// fulfillment writes of the shipping orchestrator.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// New creates a store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

// WarehouseInfo returns the warehouse with the given location id.
func (s *Store) WarehouseInfo(ctx context.Context, locationID string) (*shipper.Warehouse, error) {
	var dto WarehouseDTO
	if err := s.db.WithContext(ctx).First(&dto, "location_id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("warehouse %s: %w", locationID, ErrNotFound)
		}
		return nil, err
	}
	return dto.toDomain(), nil
}

// AccountInfo returns the carrier account for an origin country, or nil
// when none is configured.
func (s *Store) AccountInfo(ctx context.Context, carrier, countryCode string) (*shipper.Account, error) {
	var dto AccountDTO
	err := s.db.WithContext(ctx).
		First(&dto, "carrier = ? AND country_code = ?", strings.ToUpper(carrier), strings.ToUpper(countryCode)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipper.Account{Carrier: dto.Carrier, CountryCode: dto.CountryCode, AccountNumber: dto.AccountNumber}, nil
}

// PendingPickups returns the fulfillments of carrier that need a pickup
// which has not been booked yet, oldest first.
func (s *Store) PendingPickups(ctx context.Context, carrier string) ([]shipper.PickupRequest, error) {
	var dtos []FulfillmentDTO
	err := s.db.WithContext(ctx).
		Where("shipping_provider = ? AND request_pickup AND NOT pickup_booked", strings.ToUpper(carrier)).
		Order("id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	out := make([]shipper.PickupRequest, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, shipper.PickupRequest{
			WarehouseID:     d.WarehouseID,
			ShippingCountry: d.ShippingCountry,
			FulfillmentID:   d.ID,
			OrderID:         d.OrderID,
		})
	}
	return out, nil
}

// PendingTrackingUpdates returns the tracked fulfillments of carrier that
// have not reached a final state.
func (s *Store) PendingTrackingUpdates(ctx context.Context, carrier string) ([]shipper.TrackingRecord, error) {
	var dtos []FulfillmentDTO
	err := s.db.WithContext(ctx).
		Where("shipping_provider = ? AND tracking_number <> '' AND status NOT IN ?", strings.ToUpper(carrier),
			[]string{string(shipper.StatusDelivered), string(shipper.StatusCancelled)}).
		Order("id").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	out := make([]shipper.TrackingRecord, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, shipper.TrackingRecord{
			FulfillmentID:  d.ID,
			TrackingNumber: d.TrackingNumber,
			Status:         shipper.ShipmentStatus(d.Status),
		})
	}
	return out, nil
}

// MarkPickupBooked flags the fulfillment's pickup as booked.
func (s *Store) MarkPickupBooked(ctx context.Context, fulfillmentID int64) error {
	result := s.db.WithContext(ctx).Model(&FulfillmentDTO{}).
		Where("id = ?", fulfillmentID).
		Update("pickup_booked", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("fulfillment %d: %w", fulfillmentID, ErrNotFound)
	}
	return nil
}

// RequiresPickup reports whether the warehouse needs carrier pickups.
func (s *Store) RequiresPickup(ctx context.Context, locationID string) (bool, error) {
	var dto WarehouseDTO
	if err := s.db.WithContext(ctx).Select("requires_pickup").First(&dto, "location_id = ?", locationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("warehouse %s: %w", locationID, ErrNotFound)
		}
		return false, err
	}
	return dto.RequiresPickup, nil
}

// SaveTrackingUpdate records a tracking event and moves the fulfillment to
// the reported status.
func (s *Store) SaveTrackingUpdate(ctx context.Context, update shipper.TrackingUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := TrackingEventDTO{
			FulfillmentID:  update.FulfillmentID,
			TrackingNumber: update.TrackingNumber,
			Status:         string(update.Status),
			Description:    update.Description,
			OccurredAt:     update.OccurredAt,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		return tx.Model(&FulfillmentDTO{}).
			Where("id = ?", update.FulfillmentID).
			Update("status", string(update.Status)).Error
	})
}

// AddToFulfillment stores a created shipment and returns its fulfillment id.
func (s *Store) AddToFulfillment(ctx context.Context, result shipper.ShipmentResult) (int64, error) {
	dto := fulfillmentFromResult(result)
	if err := s.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return 0, err
	}
	return dto.ID, nil
}

// AddToFulfilledLines stores the order lines shipped in a fulfillment.
func (s *Store) AddToFulfilledLines(ctx context.Context, lines []shipper.FulfillmentLine, fulfillmentID int64) error {
	if len(lines) == 0 {
		return nil
	}
	dtos := make([]FulfilledLineDTO, 0, len(lines))
	for _, l := range lines {
		dtos = append(dtos, FulfilledLineDTO{FulfillmentID: fulfillmentID, LineID: l.LineID, Quantity: l.Quantity})
	}
	return s.db.WithContext(ctx).Create(&dtos).Error
}

// SaveWarehouse inserts or replaces a warehouse.
func (s *Store) SaveWarehouse(ctx context.Context, w shipper.Warehouse, requiresPickup bool) error {
	dto := WarehouseDTO{
		LocationID:     w.LocationID,
		CompanyName:    w.CompanyName,
		FirstName:      w.FirstName,
		LastName:       w.LastName,
		Address:        w.Address,
		Address2:       w.Address2,
		City:           w.City,
		PostalCode:     w.PostalCode,
		CountryCode:    strings.ToUpper(w.CountryCode),
		Email:          w.Email,
		Phone:          w.Phone,
		RequiresPickup: requiresPickup,
	}
	return s.db.WithContext(ctx).Save(&dto).Error
}

// SaveAccount inserts or replaces a carrier account.
func (s *Store) SaveAccount(ctx context.Context, a shipper.Account) error {
	dto := AccountDTO{
		Carrier:       strings.ToUpper(a.Carrier),
		CountryCode:   strings.ToUpper(a.CountryCode),
		AccountNumber: a.AccountNumber,
	}
	return s.db.WithContext(ctx).Save(&dto).Error
}

var _ shipper.WarehouseData = (*Store)(nil)
