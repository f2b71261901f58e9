package store

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/models"
)

// Journal receives best-effort copies of ride writes. The in-memory store
// stays authoritative; a journal failure never fails the transaction that
// produced it.
type Journal interface {
	SaveRide(r models.Ride) error
	UpdateRide(r models.Ride) error
}

// PostgresJournal writes rides through to a rides table for ad-hoc
// inspection across restarts.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresJournal{db: db}, nil
}

func (p *PostgresJournal) SaveRide(r models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, passenger_name, pickup_label, dropoff_label, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon, status, driver_id, distance_km, fare, requested_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.PassengerName, r.PickupLabel, r.DropoffLabel,
		r.Pickup.Lat, r.Pickup.Lon, r.Dropoff.Lat, r.Dropoff.Lon,
		string(r.Status), nullable(r.DriverID), r.DistanceKm, r.Fare, r.RequestedAt, time.Now())
	return err
}

func (p *PostgresJournal) UpdateRide(r models.Ride) error {
	_, err := p.db.Exec(`UPDATE rides SET status=$1, driver_id=$2, distance_km=$3, fare=$4, updated_at=$5 WHERE id=$6`,
		string(r.Status), nullable(r.DriverID), r.DistanceKm, r.Fare, time.Now(), r.ID)
	return err
}

func (p *PostgresJournal) Close() error { return p.db.Close() }

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
