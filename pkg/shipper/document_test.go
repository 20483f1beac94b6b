package shipper_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

func validShipment() shipper.Fields {
	return shipper.Fields{
		"order_id":          "1001",
		"bc_id":             float64(77),
		"bc_store_hash":     "abc123",
		"from_warehouse_id": "W1",
		"from_street":       "Stationsweg 1",
		"from_zip_code":     "3511AA",
		"from_locality":     "Utrecht",
		"from_country":      "nl",
		"to_street":         "Hauptstrasse 5",
		"to_zip_code":       "10115",
		"to_locality":       "Berlin",
		"to_country":        "DE",
		"to_given_name":     "Erika",
		"fulfillmentlines":  []any{map[string]any{"line_id": "L1", "quantity": float64(3)}},
	}
}

func with(f shipper.Fields, kv ...any) shipper.Fields {
	out := shipper.Fields{}
	for k, v := range f {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key := kv[i].(string)
		if kv[i+1] == nil {
			delete(out, key)
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}

func TestNewShipmentDocument(t *testing.T) {
	doc, err := shipper.NewShipmentDocument(validShipment())
	require.NoError(t, err)

	assert.Equal(t, "1001", doc.OrderID)
	assert.Equal(t, "77", doc.PlatformOrderID)
	assert.Equal(t, "abc123", doc.StoreID)
	assert.Equal(t, "NL", doc.From.CountryCode)
	assert.Equal(t, shipper.PreferenceNone, doc.Preference)
	assert.Equal(t, []shipper.FulfillmentLine{{LineID: "L1", Quantity: 3}}, doc.Lines)
	assert.Equal(t, shipper.RouteRequest{
		Type:          shipper.RequestShipment,
		Preference:    shipper.PreferenceNone,
		OriginCountry: "NL",
	}, doc.RouteRequest())
}

func TestNewShipmentDocument_Preference(t *testing.T) {
	doc, err := shipper.NewShipmentDocument(with(validShipment(), "preferred_shipper", "dhl"))
	require.NoError(t, err)
	assert.Equal(t, "DHL", doc.Carrier)
	assert.Equal(t, shipper.PreferenceSoft, doc.Preference)

	doc, err = shipper.NewShipmentDocument(with(validShipment(), "preferred_shipper", "dhl", "selected_shipper", "ups"))
	require.NoError(t, err)
	assert.Equal(t, "UPS", doc.Carrier, "selection wins over preference")
	assert.Equal(t, shipper.PreferenceExplicit, doc.Preference)
}

func TestNewShipmentDocument_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields shipper.Fields
		field  string
	}{
		{"missing order", with(validShipment(), "order_id", nil), "order_id"},
		{"empty warehouse", with(validShipment(), "from_warehouse_id", ""), "from_warehouse_id"},
		{"bad country", with(validShipment(), "to_country", "Germany"), "to_country"},
		{"numeric country", with(validShipment(), "from_country", "12"), "from_country"},
		{"no recipient name", with(validShipment(), "to_given_name", nil), "to_given_name"},
		{"missing locality", with(validShipment(), "to_locality", nil), "to_locality"},
		{"no lines", with(validShipment(), "fulfillmentlines", []any{}), "fulfillmentlines"},
		{"lines not a list", with(validShipment(), "fulfillmentlines", "L1"), "fulfillmentlines"},
		{"zero quantity", with(validShipment(), "fulfillmentlines", []any{map[string]any{"line_id": "L1", "quantity": 0}}), "fulfillmentlines[0].quantity"},
		{"fractional quantity", with(validShipment(), "fulfillmentlines", []any{map[string]any{"line_id": "L1", "quantity": 1.5}}), "fulfillmentlines[0].quantity"},
		{"bad drop off", with(validShipment(), "pack_drop_off", "maybe"), "pack_drop_off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shipper.NewShipmentDocument(tt.fields)
			require.Error(t, err)
			assert.ErrorIs(t, err, shipper.ErrValidation)

			var vErr *shipper.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestNewShipmentDocument_BusinessRecipient(t *testing.T) {
	doc, err := shipper.NewShipmentDocument(with(validShipment(), "to_given_name", nil, "to_business", "Garage BV", "pack_drop_off", "true"))
	require.NoError(t, err)
	assert.Equal(t, "Garage BV", doc.To.FullName())
	assert.True(t, doc.DropOff)
}

func TestNewShipmentDocument_FromJSON(t *testing.T) {
	body := `{
		"order_id": 1001,
		"from_warehouse_id": "W1",
		"from_street": "Stationsweg 1", "from_zip_code": "3511AA", "from_locality": "Utrecht", "from_country": "NL",
		"to_street": "Rue de Rivoli 1", "to_zip_code": "75001", "to_locality": "Paris", "to_country": "FR",
		"to_given_name": "Marie", "to_family_name": "Curie",
		"fulfillmentlines": [{"line_id": 5, "quantity": 2}]
	}`
	var f shipper.Fields
	require.NoError(t, json.Unmarshal([]byte(body), &f))

	doc, err := shipper.NewShipmentDocument(f)
	require.NoError(t, err)
	assert.Equal(t, "1001", doc.OrderID)
	assert.Equal(t, "Marie Curie", doc.To.FullName())
	assert.Equal(t, []shipper.FulfillmentLine{{LineID: "5", Quantity: 2}}, doc.Lines)
}

func TestNewDocument(t *testing.T) {
	doc, err := shipper.NewDocument(shipper.RequestPickup, shipper.Fields{"shipper": " ups "})
	require.NoError(t, err)
	assert.Equal(t, shipper.RequestPickup, doc.Type())
	assert.Equal(t, "UPS", doc.RouteRequest().Carrier)

	doc, err = shipper.NewDocument(shipper.RequestUpdate, shipper.Fields{"shipper": "DHL"})
	require.NoError(t, err)
	assert.Equal(t, &shipper.UpdateDocument{Carrier: "DHL"}, doc)

	_, err = shipper.NewDocument(shipper.RequestUpdate, shipper.Fields{})
	assert.ErrorIs(t, err, shipper.ErrValidation)

	_, err = shipper.NewDocument("Refund", shipper.Fields{})
	assert.ErrorIs(t, err, shipper.ErrUnsupportedOperation)

	doc, err = shipper.NewDocument(shipper.RequestShipment, validShipment())
	require.NoError(t, err)
	assert.Equal(t, shipper.RequestShipment, doc.Type())
}
