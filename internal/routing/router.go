package routing

import (
	"math"

	"vehicle-sense/gateway/internal/domain"
)

// RouteSpec describes how one category is dispatched: where the predictor
// lives, which fields the reading must carry (in declared order), and which
// response key holds the decision.
type RouteSpec struct {
	Category      domain.Category
	EndpointURL   string
	Fields        []string
	DecisionField string
}

// Endpoints carries the configured predictor URL for each category. The
// gateway never hard-codes backend addresses.
type Endpoints struct {
	Accident    string
	Maintenance string
	Battery     string
}

type Router struct {
	routes map[domain.Category]RouteSpec
}

func New(eps Endpoints) *Router {
	return &Router{routes: map[domain.Category]RouteSpec{
		domain.CategoryAccident: {
			Category:      domain.CategoryAccident,
			EndpointURL:   eps.Accident,
			Fields:        []string{"x_accel", "y_accel", "z_accel", "gps_speed"},
			DecisionField: "collision_detected",
		},
		domain.CategoryMaintenance: {
			Category:      domain.CategoryMaintenance,
			EndpointURL:   eps.Maintenance,
			Fields:        []string{"engine_temp", "brake_status", "battery_level", "fuel_level"},
			DecisionField: "vehicle_failure",
		},
		domain.CategoryBattery: {
			Category:      domain.CategoryBattery,
			EndpointURL:   eps.Battery,
			Fields:        []string{"speed", "distance", "temperature"},
			DecisionField: "battery_used",
		},
	}}
}

// Resolve maps a category tag to its route. Unrecognized tags fail here,
// before any validation or network activity.
func (r *Router) Resolve(category string) (RouteSpec, error) {
	spec, ok := r.routes[domain.Category(category)]
	if !ok {
		return RouteSpec{}, domain.ErrUnknownCategory
	}
	return spec, nil
}

// Validate checks a decoded request body against the route's field list and
// returns the shaped reading. Fields are checked in declared order so the
// reported field is deterministic. A field must be present and a finite
// number; null, strings, and missing keys all reject.
func (spec RouteSpec) Validate(body map[string]any) (domain.Reading, error) {
	values := make(map[string]float64, len(spec.Fields))
	for _, field := range spec.Fields {
		raw, ok := body[field]
		if !ok {
			return domain.Reading{}, &domain.InvalidPayloadError{Field: field}
		}
		f, ok := raw.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return domain.Reading{}, &domain.InvalidPayloadError{Field: field}
		}
		values[field] = f
	}
	return domain.Reading{Category: spec.Category, Values: values}, nil
}
