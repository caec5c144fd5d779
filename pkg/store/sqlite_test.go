package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pathplanner/pkg/db"
)

// setupTestStore creates a test database and store for each test.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	d, err := db.Init(dbPath)
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}

	store := NewSQLiteStore(d)
	t.Cleanup(func() { store.Close() })
	return store
}

func ptr(f float64) *float64 { return &f }

func TestStateStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, ok := store.GetState(ctx, "missing"); ok {
		t.Error("expected missing key to be absent")
	}

	if err := store.SetState(ctx, "k1", "v1"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if v, ok := store.GetState(ctx, "k1"); !ok || v != "v1" {
		t.Errorf("GetState = %q, %v; want v1, true", v, ok)
	}

	if err := store.SetState(ctx, "k1", "v2"); err != nil {
		t.Fatalf("SetState overwrite failed: %v", err)
	}
	if v, _ := store.GetState(ctx, "k1"); v != "v2" {
		t.Errorf("overwrite: got %q, want v2", v)
	}

	if err := store.SetState(ctx, "empty", ""); err != nil {
		t.Fatalf("SetState empty failed: %v", err)
	}
	if v, ok := store.GetState(ctx, "empty"); !ok || v != "" {
		t.Errorf("empty value: got %q, %v", v, ok)
	}

	if err := store.DeleteState(ctx, "k1"); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if _, ok := store.GetState(ctx, "k1"); ok {
		t.Error("expected k1 to be deleted")
	}
}

func TestTelemetryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		records []TelemetryRecord
		session string
		limit   int
		wantLen int
		check   func(t *testing.T, got []TelemetryRecord)
	}{
		{
			name:    "empty",
			session: "s1",
			wantLen: 0,
		},
		{
			name: "filters by session and keeps order",
			records: []TelemetryRecord{
				{Session: "s1", ReceivedAt: now, Lat: ptr(51.5), Lon: ptr(-0.1), Raw: `{"lat":51.5,"lon":-0.1}`},
				{Session: "s2", ReceivedAt: now, Alt: ptr(10)},
				{Session: "s1", ReceivedAt: now.Add(time.Second), Alt: ptr(320), Raw: `{"alt":320}`},
			},
			session: "s1",
			wantLen: 2,
			check: func(t *testing.T, got []TelemetryRecord) {
				if got[0].Lat == nil || *got[0].Lat != 51.5 {
					t.Errorf("first lat = %v", got[0].Lat)
				}
				if got[0].Alt != nil {
					t.Errorf("first alt should be unknown, got %v", *got[0].Alt)
				}
				if got[1].Alt == nil || *got[1].Alt != 320 {
					t.Errorf("second alt = %v", got[1].Alt)
				}
				if got[1].Raw != `{"alt":320}` {
					t.Errorf("raw = %q", got[1].Raw)
				}
			},
		},
		{
			name: "limit keeps the newest",
			records: []TelemetryRecord{
				{Session: "s1", ReceivedAt: now, Heading: ptr(1)},
				{Session: "s1", ReceivedAt: now, Heading: ptr(2)},
				{Session: "s1", ReceivedAt: now, Heading: ptr(3)},
			},
			session: "s1",
			limit:   2,
			wantLen: 2,
			check: func(t *testing.T, got []TelemetryRecord) {
				if *got[0].Heading != 2 || *got[1].Heading != 3 {
					t.Errorf("got headings %v, %v; want 2, 3", *got[0].Heading, *got[1].Heading)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			for i := range tt.records {
				if err := store.SaveTelemetry(ctx, &tt.records[i]); err != nil {
					t.Fatalf("SaveTelemetry failed: %v", err)
				}
			}
			got, err := store.RecentTelemetry(ctx, tt.session, tt.limit)
			if err != nil {
				t.Fatalf("RecentTelemetry failed: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("got %d records, want %d", len(got), tt.wantLen)
			}
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestTelemetryStore_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.SaveTelemetry(ctx, &TelemetryRecord{Session: "s", ReceivedAt: now.Add(-48 * time.Hour)})
	_ = store.SaveTelemetry(ctx, &TelemetryRecord{Session: "s", ReceivedAt: now})

	n, err := store.PruneTelemetry(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneTelemetry failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
	got, _ := store.RecentTelemetry(ctx, "s", 10)
	if len(got) != 1 {
		t.Errorf("remaining %d rows, want 1", len(got))
	}
}
