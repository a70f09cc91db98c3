package domain

import (
	"encoding/json"
	"time"
)

type Category string

const (
	CategoryAccident    Category = "accident"
	CategoryMaintenance Category = "maintenance"
	CategoryBattery     Category = "battery"
)

// Reading is one validated sensor snapshot. Values holds exactly the fields
// declared for the category, already checked to be finite numbers.
type Reading struct {
	Category Category           `json:"category"`
	Values   map[string]float64 `json:"values"`
}

// PredictionResult is the outcome of one backend inference call.
// Decision is a bool or float64 depending on what the backend returns in
// its decision field; Raw is the backend body, forwarded to callers unchanged.
type PredictionResult struct {
	Category Category        `json:"category"`
	Decision any             `json:"decision"`
	Raw      json.RawMessage `json:"raw"`
}

// AuditRecord pairs an input reading with its prediction. Records are
// append-only; the gateway drops its reference once the write is handed off.
type AuditRecord struct {
	ID        string             `json:"id"`
	Category  Category           `json:"category"`
	Input     map[string]float64 `json:"input"`
	Decision  any                `json:"decision"`
	Raw       json.RawMessage    `json:"raw,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}
