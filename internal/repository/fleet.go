package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

const vehicleColumns = `id, tenant_id, plate, normalized_plate, disposed_at, created_at`

func scanVehicle(s scanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	var disposed sql.NullTime
	if err := s.Scan(&v.ID, &v.TenantID, &v.Plate, &v.NormalizedPlate, &disposed, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.DisposedAt = timePtr(disposed)
	return &v, nil
}

// SaveVehicle inserts or replaces a vehicle. The normalized plate is
// derived from Plate when empty.
func (r *SQLRepository) SaveVehicle(ctx context.Context, tenantID string, v *domain.Vehicle) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if v.NormalizedPlate == "" {
		v.NormalizedPlate = normalize.Plate(v.Plate)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.TenantID = tenantID

	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plate = excluded.plate,
			normalized_plate = excluded.normalized_plate,
			disposed_at = excluded.disposed_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, tenantID, v.Plate, v.NormalizedPlate, nullTime(v.DisposedAt), utc(v.CreatedAt),
	)
	return err
}

// FindVehicleByNormalizedPlate returns the first vehicle with the plate,
// preferring vehicles still in service.
func (r *SQLRepository) FindVehicleByNormalizedPlate(ctx context.Context, tenantID string, plate string) (*domain.Vehicle, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE tenant_id = ? AND normalized_plate = ?
		ORDER BY CASE WHEN disposed_at IS NULL THEN 0 ELSE 1 END, created_at DESC
		LIMIT 1
	`

	v, err := scanVehicle(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, plate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

// FindActiveVehicles returns every vehicle not yet disposed of.
func (r *SQLRepository) FindActiveVehicles(ctx context.Context, tenantID string) ([]*domain.Vehicle, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + vehicleColumns + `
		FROM vehicles
		WHERE tenant_id = ? AND disposed_at IS NULL
		ORDER BY plate
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// SaveFuelRecord inserts or replaces a fuel record.
func (r *SQLRepository) SaveFuelRecord(ctx context.Context, tenantID string, rec *domain.FuelRecord) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if rec.VehicleID == "" {
		return fmt.Errorf("%w: vehicleID is required", domain.ErrInvalidInput)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.TenantID = tenantID

	query := `
		INSERT INTO fuel_records (
			id, tenant_id, vehicle_id, date, quantity, total_cost, fuel_type, odometer, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vehicle_id = excluded.vehicle_id,
			date = excluded.date,
			quantity = excluded.quantity,
			total_cost = excluded.total_cost,
			fuel_type = excluded.fuel_type,
			odometer = excluded.odometer
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.VehicleID, utc(rec.Date),
		rec.Quantity, rec.TotalCost, rec.FuelType, nullInt(rec.Odometer),
		utc(rec.CreatedAt),
	)
	return err
}

// FindFuelRecords returns the vehicle's records inside the window, newest first.
func (r *SQLRepository) FindFuelRecords(ctx context.Context, tenantID string, vehicleID string, window domain.DateRange) ([]*domain.FuelRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, vehicle_id, date, quantity, total_cost, fuel_type, odometer, created_at
		FROM fuel_records
		WHERE tenant_id = ? AND vehicle_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, vehicleID, utc(window.From), utc(window.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.FuelRecord
	for rows.Next() {
		var rec domain.FuelRecord
		var odometer sql.NullInt64
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.VehicleID, &rec.Date,
			&rec.Quantity, &rec.TotalCost, &rec.FuelType, &odometer,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Odometer = intPtr(odometer)
		rec.Date = rec.Date.UTC()
		records = append(records, &rec)
	}
	return records, rows.Err()
}
