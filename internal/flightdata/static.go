package flightdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/skybrief/turbcast/internal/geo"
	"github.com/skybrief/turbcast/pkg/logger"
	_ "modernc.org/sqlite"
)

// StaticProvider is the last-resort route source: a local SQLite database
// of known routes and airports. It is read-only reference data; forecasts
// themselves are never persisted.
type StaticProvider struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStaticProvider opens the route database at the given path
func NewStaticProvider(dbPath string, log *logger.Logger) (*StaticProvider, error) {
	staticLogger := log.Named("static-routes")

	staticLogger.Info("Opening static route database",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &StaticProvider{
		db:     db,
		logger: staticLogger,
	}, nil
}

// initSchema creates the reference tables when opening a fresh database
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS airports (
			iata TEXT PRIMARY KEY,
			icao TEXT,
			name TEXT,
			lat REAL,
			lon REAL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create airports table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS routes (
			flight_number TEXT PRIMARY KEY,
			from_iata TEXT NOT NULL,
			to_iata TEXT NOT NULL,
			airline_name TEXT,
			airline_iata TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create routes table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (p *StaticProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetDB returns the database connection, used for seeding reference data
func (p *StaticProvider) GetDB() *sql.DB {
	return p.db
}

func (p *StaticProvider) Name() string { return "static" }

// Resolve looks the flight number up in the routes table. Status is always
// unknown: the static table knows city pairs, not today's operation.
func (p *StaticProvider) Resolve(ctx context.Context, flightNumber string) (*FlightRoute, error) {
	key := Normalize(flightNumber)

	row := p.db.QueryRowContext(ctx, `
		SELECT from_iata, to_iata, airline_name, airline_iata
		FROM routes WHERE flight_number = ?
	`, key)

	var fromIATA, toIATA string
	var airlineName, airlineIATA sql.NullString
	if err := row.Scan(&fromIATA, &toIATA, &airlineName, &airlineIATA); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNoMatch
		}
		return nil, fmt.Errorf("route query failed: %w", err)
	}

	route := &FlightRoute{
		FlightNumber: key,
		From:         p.lookupAirport(ctx, fromIATA),
		To:           p.lookupAirport(ctx, toIATA),
		Airline: Airline{
			Name: airlineName.String,
			IATA: airlineIATA.String,
		},
		Status: StatusUnknown,
		Source: "static",
	}
	if !route.Usable() {
		return nil, errNoMatch
	}

	p.logger.Debug("Resolved route from static database",
		logger.String("flight", key),
		logger.String("from", route.From.IATA),
		logger.String("to", route.To.IATA))

	return route, nil
}

// AirportByIATA returns airport reference data for coordinate enrichment.
// Returns nil when the airport is unknown or the lookup fails.
func (p *StaticProvider) AirportByIATA(ctx context.Context, iata string) *Airport {
	code := strings.ToUpper(strings.TrimSpace(iata))
	if code == "" {
		return nil
	}

	row := p.db.QueryRowContext(ctx, `
		SELECT iata, icao, name, lat, lon FROM airports WHERE iata = ?
	`, code)

	var airport Airport
	var icao, name sql.NullString
	var lat, lon sql.NullFloat64
	if err := row.Scan(&airport.IATA, &icao, &name, &lat, &lon); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			p.logger.Warn("Airport lookup failed",
				logger.String("iata", code),
				logger.Error(err))
		}
		return nil
	}

	airport.ICAO = icao.String
	airport.Name = name.String
	if lat.Valid && lon.Valid {
		airport.Coordinates = &geo.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &airport
}

func (p *StaticProvider) lookupAirport(ctx context.Context, iata string) Airport {
	if airport := p.AirportByIATA(ctx, iata); airport != nil {
		return *airport
	}
	return Airport{IATA: strings.ToUpper(iata)}
}
