package pickup

import (
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Consolidate groups requests by warehouse. Batches appear in the order their
// warehouse was first seen and keep the request order within a batch.
func Consolidate(requests []shipper.PickupRequest) []shipper.PickupBatch {
	index := make(map[string]int)
	var batches []shipper.PickupBatch
	for _, r := range requests {
		i, ok := index[r.WarehouseID]
		if !ok {
			i = len(batches)
			index[r.WarehouseID] = i
			batches = append(batches, shipper.PickupBatch{LocationID: r.WarehouseID})
		}
		batches[i].Pickups = append(batches[i].Pickups, r)
	}
	return batches
}

// CountByCountry counts the batch's requests per destination country in
// first-seen order. The counts sum to len(batch.Pickups).
func CountByCountry(batch shipper.PickupBatch) []shipper.CountryPickupCount {
	index := make(map[string]int)
	var counts []shipper.CountryPickupCount
	for _, r := range batch.Pickups {
		i, ok := index[r.ShippingCountry]
		if !ok {
			i = len(counts)
			index[r.ShippingCountry] = i
			counts = append(counts, shipper.CountryPickupCount{Country: r.ShippingCountry})
		}
		counts[i].Count++
	}
	return counts
}
