package store

import (
	"context"
	"time"
)

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// TelemetryRecord is one logged telemetry frame. Unknown fields are nil.
type TelemetryRecord struct {
	Session    string
	ReceivedAt time.Time
	Lat        *float64
	Lon        *float64
	Alt        *float64
	Heading    *float64
	Raw        string
}

// TelemetryStore records telemetry frames received over the link.
type TelemetryStore interface {
	SaveTelemetry(ctx context.Context, rec *TelemetryRecord) error
	RecentTelemetry(ctx context.Context, session string, limit int) ([]TelemetryRecord, error)
	PruneTelemetry(ctx context.Context, olderThan time.Duration) (int64, error)
}
