package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/ingest"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

type fakeMirror struct {
	failGeo  int // GeoAdd failures before success
	failH    int // HSet failures before success
	geoCalls int
	hCalls   int
}

func (f *fakeMirror) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeMirror) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	return nil
}

func TestMirrorWithRetrySucceedsAfterRetries(t *testing.T) {
	f := &fakeMirror{failGeo: 1, failH: 1}
	u := ingest.LocationUpdate{DriverID: "d1", Loc: models.Coord{Lat: 30.05, Lon: 31.23}, At: time.Now()}
	start := time.Now()
	if err := mirrorWithRetry(context.Background(), f, u, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("expected at least one backoff delay")
	}
}

func TestMirrorWithRetryFailsWhenExhausted(t *testing.T) {
	f := &fakeMirror{failGeo: 5}
	u := ingest.LocationUpdate{DriverID: "d1", Loc: models.Coord{Lat: 30.05, Lon: 31.23}}
	if err := mirrorWithRetry(context.Background(), f, u, 3, 5*time.Millisecond); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if f.hCalls != 0 {
		t.Fatalf("HSet should not run when GeoAdd keeps failing, got %d calls", f.hCalls)
	}
}
