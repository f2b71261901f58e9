package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load with empty env: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.PlaceLimit != 5 || cfg.PlaceCountry != "eg" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.NominatimURL != "https://nominatim.openstreetmap.org" {
		t.Fatalf("unexpected nominatim default: %s", cfg.NominatimURL)
	}
}

func TestEnvOverridesAndErrors(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("PLACE_LIMIT", "7")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" || cfg.ReadTimeout != 2*time.Second || cfg.PlaceLimit != 7 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("broker list not trimmed: %+v", cfg.KafkaBrokers)
	}

	t.Setenv("PLACE_LIMIT", "zero")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for unparsable PLACE_LIMIT")
	}
	t.Setenv("PLACE_LIMIT", "-1")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for non-positive PLACE_LIMIT")
	}
}
