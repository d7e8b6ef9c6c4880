// Package domain defines the core interfaces and types for fuelrecon.
package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a required argument is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// RecordStore is the tenant-scoped store the reconciliation core reads and writes.
// All methods require tenantID for strict multi-tenancy isolation.
type RecordStore interface {
	// Vehicle resolution
	FindVehicleByNormalizedPlate(ctx context.Context, tenantID string, plate string) (*Vehicle, error)
	FindActiveVehicles(ctx context.Context, tenantID string) ([]*Vehicle, error)

	// Candidate lookup, newest first
	FindFuelRecords(ctx context.Context, tenantID string, vehicleID string, window DateRange) ([]*FuelRecord, error)

	// Imports
	CreateImport(ctx context.Context, tenantID string, imp *Import) error
	UpdateImport(ctx context.Context, tenantID string, imp *Import) error
	GetImport(ctx context.Context, tenantID string, importID string) (*Import, error)
	ListImports(ctx context.Context, tenantID string, filter ImportFilter, page Page) ([]*Import, int, error)

	// Import lines
	CreateImportLine(ctx context.Context, tenantID string, line *ImportLine) error
	UpdateImportLine(ctx context.Context, tenantID string, line *ImportLine) error
	GetImportLine(ctx context.Context, tenantID string, lineID string) (*ImportLine, error)

	// SaveProcessedImport atomically replaces the import's lines and stores the import.
	SaveProcessedImport(ctx context.Context, tenantID string, imp *Import, lines []*ImportLine) error
	ListImportLines(ctx context.Context, tenantID string, importID string) ([]*ImportLine, error)
	CountImportLines(ctx context.Context, tenantID string, filter ImportLineFilter) (int, error)
}

// TemplateStore persists supplier templates.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tenantID string, tpl *Template) error
	GetTemplate(ctx context.Context, tenantID string, templateID string) (*Template, error)
	ListTemplates(ctx context.Context, tenantID string) ([]*Template, error)
}

// FleetStore writes the vehicles and fuel records the core matches against.
// In production these are owned by the fleet application; the server uses it
// for seeding and the CLI for offline runs.
type FleetStore interface {
	SaveVehicle(ctx context.Context, tenantID string, v *Vehicle) error
	SaveFuelRecord(ctx context.Context, tenantID string, rec *FuelRecord) error
}

// Repository is the full persistence surface of the service.
type Repository interface {
	RecordStore
	TemplateStore
	FleetStore

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" yaml:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath" yaml:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost" yaml:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" yaml:"postgresPort"`
	PostgresUser     string `json:"postgresUser" yaml:"postgresUser"`
	PostgresPassword string `json:"-" yaml:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" yaml:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" yaml:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}
