package shipper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TrackingConcurrency bounds the concurrent tracking lookups per cycle.
const TrackingConcurrency = 8

// TrackFunc fetches the latest carrier state for one record.
type TrackFunc func(ctx context.Context, rec TrackingRecord) (TrackingUpdate, error)

// ForEachRecord fetches and saves the tracking state of every record with
// bounded concurrency. Failures are isolated per record and returned joined.
func ForEachRecord(ctx context.Context, data WarehouseData, records []TrackingRecord, track TrackFunc) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(TrackingConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			update, err := track(gctx, rec)
			if err != nil {
				fail(fmt.Errorf("tracking %s: %w", rec.TrackingNumber, err))
				return nil
			}
			if update.FulfillmentID == 0 {
				update.FulfillmentID = rec.FulfillmentID
			}
			if update.TrackingNumber == "" {
				update.TrackingNumber = rec.TrackingNumber
			}
			if err := data.SaveTrackingUpdate(gctx, update); err != nil {
				fail(fmt.Errorf("saving tracking %s: %w", rec.TrackingNumber, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
