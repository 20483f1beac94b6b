package shipper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Fields is a raw field bag, typically decoded from a JSON request body.
type Fields map[string]any

// Document is a validated request document.
type Document interface {
	// Type returns the request type the document was built for.
	Type() RequestType

	// RouteRequest returns the data the resolver needs to pick a carrier.
	RouteRequest() RouteRequest
}

// ShipmentDocument is a normalized shipment request.
type ShipmentDocument struct {
	OrderID           string
	PlatformOrderID   string
	StoreID           string
	WarehouseID       string
	CustomerReference string
	Carrier           string
	Preference        PreferenceKind
	From              Address
	To                Address
	DropOff           bool
	ProcessedBy       string
	Lines             []FulfillmentLine
}

// Type implements Document.
func (d *ShipmentDocument) Type() RequestType { return RequestShipment }

// RouteRequest implements Document.
func (d *ShipmentDocument) RouteRequest() RouteRequest {
	return RouteRequest{
		Type:          RequestShipment,
		Carrier:       d.Carrier,
		Preference:    d.Preference,
		OriginCountry: d.From.CountryCode,
	}
}

// PickupDocument requests pickups for every pending request of a carrier.
type PickupDocument struct {
	Carrier string
}

// Type implements Document.
func (d *PickupDocument) Type() RequestType { return RequestPickup }

// RouteRequest implements Document.
func (d *PickupDocument) RouteRequest() RouteRequest {
	return RouteRequest{Type: RequestPickup, Carrier: d.Carrier, Preference: PreferenceExplicit}
}

// UpdateDocument requests a tracking refresh for a carrier.
type UpdateDocument struct {
	Carrier string
}

// Type implements Document.
func (d *UpdateDocument) Type() RequestType { return RequestUpdate }

// RouteRequest implements Document.
func (d *UpdateDocument) RouteRequest() RouteRequest {
	return RouteRequest{Type: RequestUpdate, Carrier: d.Carrier, Preference: PreferenceExplicit}
}

// NewDocument validates f and builds the document for t.
func NewDocument(t RequestType, f Fields) (Document, error) {
	switch t {
	case RequestShipment:
		return NewShipmentDocument(f)
	case RequestPickup:
		carrier, err := requiredCarrier(f)
		if err != nil {
			return nil, err
		}
		return &PickupDocument{Carrier: carrier}, nil
	case RequestUpdate:
		carrier, err := requiredCarrier(f)
		if err != nil {
			return nil, err
		}
		return &UpdateDocument{Carrier: carrier}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperation, t)
	}
}

// NewShipmentDocument validates f as a shipment request.
func NewShipmentDocument(f Fields) (*ShipmentDocument, error) {
	doc := &ShipmentDocument{}
	var err error

	if doc.OrderID, err = f.requiredString("order_id"); err != nil {
		return nil, err
	}
	if doc.WarehouseID, err = f.requiredString("from_warehouse_id"); err != nil {
		return nil, err
	}
	doc.PlatformOrderID = f.optString("bc_id")
	doc.StoreID = f.optString("bc_store_hash")
	doc.CustomerReference = f.optString("pack_customer_reference")
	doc.ProcessedBy = f.optString("processed_by")
	if doc.DropOff, err = f.optBool("pack_drop_off"); err != nil {
		return nil, err
	}

	if selected := f.optString("selected_shipper"); selected != "" {
		doc.Carrier = normalizeCarrier(selected)
		doc.Preference = PreferenceExplicit
	} else if preferred := f.optString("preferred_shipper"); preferred != "" {
		doc.Carrier = normalizeCarrier(preferred)
		doc.Preference = PreferenceSoft
	}

	if doc.From, err = f.address("from"); err != nil {
		return nil, err
	}
	if doc.To, err = f.address("to"); err != nil {
		return nil, err
	}
	if doc.To.GivenName == "" && doc.To.Business == "" {
		return nil, missingField("to_given_name")
	}

	if doc.Lines, err = f.lines("fulfillmentlines"); err != nil {
		return nil, err
	}
	return doc, nil
}

func requiredCarrier(f Fields) (string, error) {
	carrier, err := f.requiredString("shipper")
	if err != nil {
		return "", err
	}
	return normalizeCarrier(carrier), nil
}

func normalizeCarrier(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (f Fields) address(prefix string) (Address, error) {
	addr := Address{
		Business:          f.optString(prefix + "_business"),
		GivenName:         f.optString(prefix + "_given_name"),
		FamilyName:        f.optString(prefix + "_family_name"),
		Street2:           f.optString(prefix + "_street2"),
		HouseNumber:       f.optString(prefix + "_house_number"),
		ProvinceCode:      f.optString(prefix + "_province_code"),
		Phone:             f.optString(prefix + "_phone_number"),
		Email:             f.optString(prefix + "_email"),
		ChamberOfCommerce: f.optString(prefix + "_chamber_of_commerce_number"),
	}

	var err error
	if addr.Street, err = f.requiredString(prefix + "_street"); err != nil {
		return Address{}, err
	}
	if addr.ZipCode, err = f.requiredString(prefix + "_zip_code"); err != nil {
		return Address{}, err
	}
	if addr.Locality, err = f.requiredString(prefix + "_locality"); err != nil {
		return Address{}, err
	}
	if addr.CountryCode, err = f.country(prefix + "_country"); err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (f Fields) country(key string) (string, error) {
	code, err := f.requiredString(key)
	if err != nil {
		return "", err
	}
	code = strings.ToUpper(code)
	if len(code) != 2 || !isASCIILetter(code[0]) || !isASCIILetter(code[1]) {
		return "", invalidField(key, "must be an ISO 3166-1 alpha-2 code")
	}
	return code, nil
}

func isASCIILetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func (f Fields) lines(key string) ([]FulfillmentLine, error) {
	raw, ok := f[key]
	if !ok || raw == nil {
		return nil, missingField(key)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, invalidField(key, "must be a list")
	}
	if len(items) == 0 {
		return nil, invalidField(key, "must not be empty")
	}

	lines := make([]FulfillmentLine, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalidField(fmt.Sprintf("%s[%d]", key, i), "must be an object")
		}
		line := Fields(m)
		id, err := line.requiredString("line_id")
		if err != nil {
			return nil, invalidField(fmt.Sprintf("%s[%d].line_id", key, i), "is required")
		}
		qty, ok := toInt(line["quantity"])
		if !ok || qty <= 0 {
			return nil, invalidField(fmt.Sprintf("%s[%d].quantity", key, i), "must be a positive integer")
		}
		lines = append(lines, FulfillmentLine{LineID: id, Quantity: qty})
	}
	return lines, nil
}

func (f Fields) requiredString(key string) (string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", missingField(key)
	}
	s, ok := toString(v)
	if !ok {
		return "", invalidField(key, "must be a string or number")
	}
	if s == "" {
		return "", missingField(key)
	}
	return s, nil
}

func (f Fields) optString(key string) string {
	s, _ := toString(f[key])
	return s
}

func (f Fields) optBool(key string) (bool, error) {
	switch v := f[key].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		if v == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, invalidField(key, "must be a boolean")
		}
		return b, nil
	default:
		return false, invalidField(key, "must be a boolean")
	}
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
