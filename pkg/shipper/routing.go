package shipper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Route declares which origin countries a carrier serves and its priority
// in the automatic scan. Lower priority numbers are tried first.
type Route struct {
	Carrier  string
	Origins  []string
	Priority int
	// AnyOrigin routes match every origin when named but are never picked
	// by the automatic scan.
	AnyOrigin bool
}

// RouteRequest is the input to carrier selection.
type RouteRequest struct {
	Type          RequestType
	Carrier       string
	Preference    PreferenceKind
	OriginCountry string
}

type route struct {
	Route
	origins map[string]struct{}
}

func (r route) serves(country string) bool {
	if r.AnyOrigin {
		return true
	}
	_, ok := r.origins[country]
	return ok
}

// RoutingTable is the immutable carrier/country/priority table.
// It is safe for concurrent use.
type RoutingTable struct {
	ordered []route
	byName  map[string]int
}

// NewRoutingTable builds a table ordered by ascending priority.
// Duplicate carriers or duplicate priorities are rejected so the scan
// order is total.
func NewRoutingTable(routes ...Route) (*RoutingTable, error) {
	t := &RoutingTable{
		ordered: make([]route, 0, len(routes)),
		byName:  make(map[string]int, len(routes)),
	}

	priorities := make(map[int]string, len(routes))
	for _, r := range routes {
		name := normalizeCarrier(r.Carrier)
		if name == "" {
			return nil, fmt.Errorf("routing table: empty carrier name")
		}
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("routing table: duplicate carrier %q", name)
		}
		if other, dup := priorities[r.Priority]; dup && !r.AnyOrigin {
			return nil, fmt.Errorf("routing table: carriers %q and %q share priority %d", other, name, r.Priority)
		}
		if !r.AnyOrigin {
			priorities[r.Priority] = name
		}

		rt := route{Route: r, origins: make(map[string]struct{}, len(r.Origins))}
		rt.Carrier = name
		rt.Origins = make([]string, 0, len(r.Origins))
		for _, c := range r.Origins {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c == "" {
				continue
			}
			if _, seen := rt.origins[c]; !seen {
				rt.origins[c] = struct{}{}
				rt.Origins = append(rt.Origins, c)
			}
		}
		t.byName[name] = len(t.ordered)
		t.ordered = append(t.ordered, rt)
	}

	sort.SliceStable(t.ordered, func(i, j int) bool {
		return t.ordered[i].Priority < t.ordered[j].Priority
	})
	for i, r := range t.ordered {
		t.byName[r.Carrier] = i
	}
	return t, nil
}

// Routes returns the table entries in scan order.
func (t *RoutingTable) Routes() []Route {
	out := make([]Route, len(t.ordered))
	for i, r := range t.ordered {
		out[i] = r.Route
		out[i].Origins = append([]string(nil), r.Origins...)
	}
	return out
}

// Has reports whether carrier is in the table.
func (t *RoutingTable) Has(carrier string) bool {
	_, ok := t.byName[normalizeCarrier(carrier)]
	return ok
}

// Supports reports whether carrier serves shipments from country.
func (t *RoutingTable) Supports(carrier, country string) bool {
	i, ok := t.byName[normalizeCarrier(carrier)]
	if !ok {
		return false
	}
	return t.ordered[i].serves(strings.ToUpper(country))
}

// Select picks the carrier for req.
//
// Pickup and update requests name their carrier, which must be known.
// Shipments take a supported preference, reject an unsupported explicit
// preference, and otherwise fall back to the first route by priority that
// serves the origin country.
func (t *RoutingTable) Select(req RouteRequest) (string, error) {
	return t.SelectAvailable(req, nil)
}

// SelectAvailable is Select restricted to the carriers for which available
// reports true. A nil available admits every carrier in the table.
func (t *RoutingTable) SelectAvailable(req RouteRequest, available func(string) bool) (string, error) {
	has := func(name string) bool {
		return t.Has(name) && (available == nil || available(name))
	}
	carrier := normalizeCarrier(req.Carrier)
	origin := strings.ToUpper(strings.TrimSpace(req.OriginCountry))

	fail := func(err error) (string, error) {
		return "", &RouteError{
			RequestType:   req.Type,
			Carrier:       carrier,
			Preference:    req.Preference,
			OriginCountry: origin,
			Err:           err,
		}
	}

	switch req.Type {
	case RequestPickup, RequestUpdate:
		if carrier == "" || !has(carrier) {
			return fail(ErrUnsupportedCarrier)
		}
		return carrier, nil

	case RequestShipment:
		if carrier != "" && req.Preference != PreferenceNone {
			known := has(carrier)
			if known && t.Supports(carrier, origin) {
				return carrier, nil
			}
			if req.Preference == PreferenceExplicit {
				if !known {
					return fail(ErrUnsupportedCarrier)
				}
				return fail(ErrCarrierNotSupportedForRoute)
			}
		}

		for _, r := range t.ordered {
			if r.AnyOrigin || !has(r.Carrier) {
				continue
			}
			if _, ok := r.origins[origin]; ok {
				return r.Carrier, nil
			}
		}
		return fail(ErrNoCarrierForRoute)

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, req.Type)
	}
}

// ParseRoutes parses a compact routing spec such as
// "UPS:1:NL|BE|DE,DHL:2:NL|DE,MANUAL:0:*". A "*" origin marks an AnyOrigin route.
func ParseRoutes(spec []string) ([]Route, error) {
	routes := make([]Route, 0, len(spec))
	for _, entry := range spec {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("route %q: want CARRIER:PRIORITY:ORIGINS", entry)
		}
		priority, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("route %q: priority: %w", entry, err)
		}
		r := Route{Carrier: parts[0], Priority: priority}
		if parts[2] == "*" {
			r.AnyOrigin = true
		} else {
			r.Origins = strings.Split(parts[2], "|")
		}
		routes = append(routes, r)
	}
	return routes, nil
}
