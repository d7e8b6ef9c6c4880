package repository

// Schema definitions for the fuelrecon database.
// Compatible with both SQLite and PostgreSQL.

// schemaVehicles and schemaFuelRecords mirror the fleet application's data.
// The server owns them only for seeding and offline runs.
const schemaVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    plate TEXT NOT NULL,
    normalized_plate TEXT NOT NULL,
    disposed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vehicles_tenant ON vehicles(tenant_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_plate ON vehicles(tenant_id, normalized_plate);
`

const schemaFuelRecords = `
CREATE TABLE IF NOT EXISTS fuel_records (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    quantity REAL NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0,
    fuel_type TEXT NOT NULL DEFAULT '',
    odometer INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fuel_records_vehicle ON fuel_records(tenant_id, vehicle_id, date);
`

const schemaTemplates = `
CREATE TABLE IF NOT EXISTS templates (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    supplier_vat TEXT,
    config TEXT NOT NULL,
    tolerances TEXT NOT NULL,
    require_manual_confirm INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_templates_tenant ON templates(tenant_id, name);
`

const schemaImports = `
CREATE TABLE IF NOT EXISTS imports (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    template_id TEXT NOT NULL,
    file_name TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    status TEXT NOT NULL,
    invoice_number TEXT,
    invoice_date TIMESTAMP,
    supplier_vat TEXT,
    extracted_count INTEGER NOT NULL DEFAULT 0,
    filtered_count INTEGER NOT NULL DEFAULT 0,
    matched_count INTEGER NOT NULL DEFAULT 0,
    created_count INTEGER NOT NULL DEFAULT 0,
    skipped_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    processing_log TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    processed_at TIMESTAMP,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_imports_tenant ON imports(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_imports_status ON imports(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_imports_hash ON imports(tenant_id, content_hash);
`

// schemaImportLines stores one extracted and matched line per row.
// The extracted values are kept as read, next to the match outcome and
// the review status.
const schemaImportLines = `
CREATE TABLE IF NOT EXISTS import_lines (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    import_id TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    plate TEXT,
    raw_date TEXT,
    purchase_date TIMESTAMP,
    fuel_type TEXT,
    quantity REAL,
    amount REAL,
    card_number TEXT,
    odometer INTEGER,
    description TEXT,
    unit_price REAL,
    extraction_errors TEXT NOT NULL,
    match_status TEXT NOT NULL,
    matched_record_id TEXT,
    match_score REAL,
    breakdown TEXT,
    vehicle_id TEXT,
    candidate_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    status TEXT NOT NULL,
    created_record_id TEXT,
    reviewed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

DROP INDEX IF EXISTS idx_import_lines_import;
CREATE UNIQUE INDEX IF NOT EXISTS idx_import_lines_number ON import_lines(tenant_id, import_id, line_number);
CREATE INDEX IF NOT EXISTS idx_import_lines_status ON import_lines(tenant_id, import_id, status);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaVehicles,
		schemaFuelRecords,
		schemaTemplates,
		schemaImports,
		schemaImportLines,
	}
}
