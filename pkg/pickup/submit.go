package pickup

import (
	"context"
	"fmt"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Booking is one consolidated pickup ready for submission to a carrier.
type Booking struct {
	Batch     shipper.PickupBatch
	Warehouse *shipper.Warehouse
	Date      time.Time
	Countries []shipper.CountryPickupCount
}

// BookFunc submits a booking and returns the carrier's pickup reference.
type BookFunc func(ctx context.Context, b Booking) (string, error)

// Submitter runs a pickup cycle for one carrier.
type Submitter struct {
	Carrier   string
	Scheduler *Scheduler
	Data      shipper.WarehouseData
	Logger    *otelzap.Logger
}

// Submit books every batch concurrently. Each batch yields one confirmation;
// a failing batch records its error and does not stop the others. Booked
// requests are marked in the warehouse data, and marking failures are only
// logged.
func (s *Submitter) Submit(ctx context.Context, batches []shipper.PickupBatch, book BookFunc) ([]shipper.PickupConfirmation, error) {
	confirmations := make([]shipper.PickupConfirmation, len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		g.Go(func() error {
			confirmations[i] = s.submitBatch(ctx, batch, book)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return confirmations, err
	}
	return confirmations, nil
}

func (s *Submitter) submitBatch(ctx context.Context, batch shipper.PickupBatch, book BookFunc) shipper.PickupConfirmation {
	conf := shipper.PickupConfirmation{
		LocationID: batch.LocationID,
		Carrier:    s.Carrier,
		Requests:   len(batch.Pickups),
		Countries:  CountByCountry(batch),
	}
	logger := s.Logger.Ctx(ctx)

	warehouse, err := s.Data.WarehouseInfo(ctx, batch.LocationID)
	if err != nil {
		conf.Err = fmt.Errorf("warehouse %s: %w", batch.LocationID, err)
		return conf
	}

	date, err := s.Scheduler.NextPickupDate(warehouse.CountryCode)
	if err != nil {
		conf.Err = err
		return conf
	}
	conf.PickupDate = date

	ref, err := book(ctx, Booking{
		Batch:     batch,
		Warehouse: warehouse,
		Date:      date,
		Countries: conf.Countries,
	})
	if err != nil {
		logger.Error("Pickup booking failed",
			zap.String("carrier", s.Carrier),
			zap.String("location_id", batch.LocationID),
			zap.Error(err),
		)
		conf.Err = err
		return conf
	}
	conf.Reference = ref

	logger.Info("Pickup booked",
		zap.String("carrier", s.Carrier),
		zap.String("location_id", batch.LocationID),
		zap.String("reference", ref),
		zap.Time("pickup_date", date),
		zap.Int("requests", len(batch.Pickups)),
	)

	for _, r := range batch.Pickups {
		if err := s.Data.MarkPickupBooked(ctx, r.FulfillmentID); err != nil {
			logger.Warn("Failed to mark pickup booked",
				zap.Int64("fulfillment_id", r.FulfillmentID),
				zap.Error(err),
			)
		}
	}
	return conf
}
