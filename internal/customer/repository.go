package customer

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// maxCodeAttempts bounds the retry loop when generating a setup code.
// The code space has 9000 values; hitting this many collisions means the
// space is effectively full.
const maxCodeAttempts = 100

// Repository defines persistence for customers, setup codes, device
// assignments and device locations.
type Repository interface {
	// CreateCustomer inserts a new customer and sets its ID.
	CreateCustomer(ctx context.Context, c *Customer) error

	// GetCustomer retrieves a customer by ID.
	// Returns ErrCustomerNotFound if it does not exist.
	GetCustomer(ctx context.Context, id int64) (*Customer, error)

	// ListCustomers retrieves all customers ordered by name.
	ListCustomers(ctx context.Context) ([]Customer, error)

	// DeleteCustomer removes a customer; codes and assignments cascade.
	DeleteCustomer(ctx context.Context, id int64) error

	// CreateCode inserts a setup code. An empty Code field gets a
	// generated unique four digit code.
	CreateCode(ctx context.Context, code *Code) error

	// GetCode retrieves a setup code.
	// Returns ErrCodeNotFound if it does not exist.
	GetCode(ctx context.Context, code string) (*Code, error)

	// ListCodes retrieves all setup codes for a customer.
	ListCodes(ctx context.Context, customerID int64) ([]Code, error)

	// DeleteCode removes a setup code.
	DeleteCode(ctx context.Context, code string) error

	// Assign links a device to a customer via the code that provisioned
	// it. Re-provisioning a device replaces its assignment.
	Assign(ctx context.Context, deviceID string, code *Code) error

	// GetAssignment retrieves a device's customer assignment.
	// Returns ErrAssignmentNotFound if the device is unassigned.
	GetAssignment(ctx context.Context, deviceID string) (*Assignment, error)

	// ListAssignments retrieves all device assignments for a customer.
	ListAssignments(ctx context.Context, customerID int64) ([]Assignment, error)

	// UpsertLocation records a device's latest geolocation fix,
	// replacing any earlier fix.
	UpsertLocation(ctx context.Context, loc *Location) error

	// GetLocation retrieves a device's last geolocation fix.
	// Returns ErrLocationNotFound if none was recorded.
	GetLocation(ctx context.Context, deviceID string) (*Location, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed customer repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateCustomer inserts a new customer and sets its ID.
func (r *SQLiteRepository) CreateCustomer(ctx context.Context, c *Customer) error {
	if c.Name == "" {
		return fmt.Errorf("customer name is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO customers (name, created_at) VALUES (?, ?)",
		c.Name,
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading customer id: %w", err)
	}
	c.ID = id

	return nil
}

// GetCustomer retrieves a customer by ID.
func (r *SQLiteRepository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var c Customer
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &c, nil
}

// ListCustomers retrieves all customers ordered by name.
func (r *SQLiteRepository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM customers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		customers = append(customers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customers: %w", err)
	}

	return customers, nil
}

// DeleteCustomer removes a customer; codes and assignments cascade.
func (r *SQLiteRepository) DeleteCustomer(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCustomerNotFound
	}

	return nil
}

// CreateCode inserts a setup code, generating a unique four digit code
// when none is given.
func (r *SQLiteRepository) CreateCode(ctx context.Context, code *Code) error {
	if code.CustomerID == 0 {
		return fmt.Errorf("customer id is required")
	}
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}

	if code.Code != "" {
		return r.insertCode(ctx, code)
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := randomCode()
		if err != nil {
			return err
		}
		code.Code = candidate

		err = r.insertCode(ctx, code)
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		return err
	}

	code.Code = ""
	return ErrCodeExhausted
}

// insertCode performs the actual insert for CreateCode.
func (r *SQLiteRepository) insertCode(ctx context.Context, code *Code) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customer_codes (code, customer_id, start_url, auto_approve, kiosk_mode, keep_screen_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.Code,
		code.CustomerID,
		code.StartURL,
		boolToInt(code.AutoApprove),
		boolToInt(code.KioskMode),
		boolToInt(code.KeepScreenOn),
		code.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("inserting setup code: %w", err)
	}
	return nil
}

// GetCode retrieves a setup code.
func (r *SQLiteRepository) GetCode(ctx context.Context, code string) (*Code, error) {
	var c Code
	var autoApprove, kioskMode, keepScreenOn int
	var createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT code, customer_id, start_url, auto_approve, kiosk_mode, keep_screen_on, created_at
		 FROM customer_codes
		 WHERE code = ?`,
		code,
	).Scan(&c.Code, &c.CustomerID, &c.StartURL, &autoApprove, &kioskMode, &keepScreenOn, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("querying setup code: %w", err)
	}

	c.AutoApprove = autoApprove != 0
	c.KioskMode = kioskMode != 0
	c.KeepScreenOn = keepScreenOn != 0
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &c, nil
}

// ListCodes retrieves all setup codes for a customer.
func (r *SQLiteRepository) ListCodes(ctx context.Context, customerID int64) ([]Code, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT code, customer_id, start_url, auto_approve, kiosk_mode, keep_screen_on, created_at
		 FROM customer_codes
		 WHERE customer_id = ?
		 ORDER BY code`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying setup codes: %w", err)
	}
	defer rows.Close()

	var codes []Code
	for rows.Next() {
		var c Code
		var autoApprove, kioskMode, keepScreenOn int
		var createdAt string

		if err := rows.Scan(&c.Code, &c.CustomerID, &c.StartURL, &autoApprove, &kioskMode, &keepScreenOn, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning setup code: %w", err)
		}

		c.AutoApprove = autoApprove != 0
		c.KioskMode = kioskMode != 0
		c.KeepScreenOn = keepScreenOn != 0
		c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		codes = append(codes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating setup codes: %w", err)
	}

	return codes, nil
}

// DeleteCode removes a setup code.
func (r *SQLiteRepository) DeleteCode(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM customer_codes WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("deleting setup code: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCodeNotFound
	}

	return nil
}

// Assign links a device to a customer via the code that provisioned it.
func (r *SQLiteRepository) Assign(ctx context.Context, deviceID string, code *Code) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if code == nil {
		return fmt.Errorf("code is required")
	}

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO assignments (device_id, customer_id, code, assigned_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			code = excluded.code,
			assigned_at = excluded.assigned_at`,
		deviceID,
		code.CustomerID,
		code.Code,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("assigning device: %w", err)
	}

	return nil
}

// GetAssignment retrieves a device's customer assignment.
func (r *SQLiteRepository) GetAssignment(ctx context.Context, deviceID string) (*Assignment, error) {
	var a Assignment
	var assignedAt string

	err := r.db.QueryRowContext(ctx,
		"SELECT device_id, customer_id, code, assigned_at FROM assignments WHERE device_id = ?",
		deviceID,
	).Scan(&a.DeviceID, &a.CustomerID, &a.Code, &assignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("querying assignment: %w", err)
	}

	a.AssignedAt, err = time.Parse(time.RFC3339, assignedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing assigned_at: %w", err)
	}

	return &a, nil
}

// ListAssignments retrieves all device assignments for a customer.
func (r *SQLiteRepository) ListAssignments(ctx context.Context, customerID int64) ([]Assignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_id, customer_id, code, assigned_at
		 FROM assignments
		 WHERE customer_id = ?
		 ORDER BY device_id`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		var assignedAt string
		if err := rows.Scan(&a.DeviceID, &a.CustomerID, &a.Code, &assignedAt); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		a.AssignedAt, err = time.Parse(time.RFC3339, assignedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing assigned_at: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}

	return assignments, nil
}

// UpsertLocation records a device's latest geolocation fix.
func (r *SQLiteRepository) UpsertLocation(ctx context.Context, loc *Location) error {
	if loc.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if loc.UpdatedAt.IsZero() {
		loc.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (device_id, latitude, longitude, accuracy, provider, address, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			accuracy = excluded.accuracy,
			provider = excluded.provider,
			address = excluded.address,
			updated_at = excluded.updated_at`,
		loc.DeviceID,
		loc.Latitude,
		loc.Longitude,
		loc.Accuracy,
		loc.Provider,
		loc.Address,
		loc.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting location: %w", err)
	}

	return nil
}

// GetLocation retrieves a device's last geolocation fix.
func (r *SQLiteRepository) GetLocation(ctx context.Context, deviceID string) (*Location, error) {
	var loc Location
	var updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, device_id, latitude, longitude, accuracy, provider, address, updated_at
		 FROM locations
		 WHERE device_id = ?`,
		deviceID,
	).Scan(&loc.ID, &loc.DeviceID, &loc.Latitude, &loc.Longitude, &loc.Accuracy, &loc.Provider, &loc.Address, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("querying location: %w", err)
	}

	loc.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &loc, nil
}

// randomCode draws a four digit setup code from 1000-9999.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generating setup code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
