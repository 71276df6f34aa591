package customer

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the customer tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE customer_codes (
			code TEXT PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			start_url TEXT NOT NULL DEFAULT '',
			auto_approve INTEGER NOT NULL DEFAULT 0,
			kiosk_mode INTEGER NOT NULL DEFAULT 1,
			keep_screen_on INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);
		CREATE TABLE assignments (
			device_id TEXT PRIMARY KEY,
			customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			code TEXT NOT NULL,
			assigned_at TEXT NOT NULL
		);
		CREATE TABLE locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL UNIQUE,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			accuracy REAL NOT NULL DEFAULT 0,
			provider TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testCustomer inserts a customer and returns it.
func testCustomer(t *testing.T, repo *SQLiteRepository, name string) *Customer {
	t.Helper()
	c := &Customer{Name: name}
	if err := repo.CreateCustomer(context.Background(), c); err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	return c
}

func TestSQLiteRepository_Customers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("creates and retrieves customer", func(t *testing.T) {
		c := testCustomer(t, repo, "Nordkyst Ejendomme")
		if c.ID == 0 {
			t.Error("CreateCustomer() did not set ID")
		}

		got, err := repo.GetCustomer(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetCustomer() error = %v", err)
		}
		if got.Name != "Nordkyst Ejendomme" {
			t.Errorf("Name = %q, want %q", got.Name, "Nordkyst Ejendomme")
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		if err := repo.CreateCustomer(ctx, &Customer{}); err == nil {
			t.Error("CreateCustomer() with empty name did not error")
		}
	})

	t.Run("returns ErrCustomerNotFound for missing customer", func(t *testing.T) {
		_, err := repo.GetCustomer(ctx, 99999)
		if !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("GetCustomer() error = %v, want ErrCustomerNotFound", err)
		}
	})

	t.Run("lists customers ordered by name", func(t *testing.T) {
		testCustomer(t, repo, "Aarhus Bibliotek")
		customers, err := repo.ListCustomers(ctx)
		if err != nil {
			t.Fatalf("ListCustomers() error = %v", err)
		}
		if len(customers) < 2 {
			t.Fatalf("ListCustomers() returned %d, want at least 2", len(customers))
		}
		if customers[0].Name != "Aarhus Bibliotek" {
			t.Errorf("first customer = %q, want %q", customers[0].Name, "Aarhus Bibliotek")
		}
	})

	t.Run("delete cascades to codes", func(t *testing.T) {
		c := testCustomer(t, repo, "Midlertidig Kunde")
		code := &Code{CustomerID: c.ID, StartURL: "https://screens.example.com/temp"}
		if err := repo.CreateCode(ctx, code); err != nil {
			t.Fatalf("CreateCode() error = %v", err)
		}

		if err := repo.DeleteCustomer(ctx, c.ID); err != nil {
			t.Fatalf("DeleteCustomer() error = %v", err)
		}

		_, err := repo.GetCode(ctx, code.Code)
		if !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("GetCode() after cascade error = %v, want ErrCodeNotFound", err)
		}
	})
}

func TestSQLiteRepository_Codes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	c := testCustomer(t, repo, "Nordkyst Ejendomme")

	t.Run("generates four digit code", func(t *testing.T) {
		code := &Code{CustomerID: c.ID, StartURL: "https://screens.example.com/lobby", AutoApprove: true}
		if err := repo.CreateCode(ctx, code); err != nil {
			t.Fatalf("CreateCode() error = %v", err)
		}

		if !regexp.MustCompile(`^\d{4}$`).MatchString(code.Code) {
			t.Errorf("generated code = %q, want four digits", code.Code)
		}

		got, err := repo.GetCode(ctx, code.Code)
		if err != nil {
			t.Fatalf("GetCode() error = %v", err)
		}
		if !got.AutoApprove {
			t.Error("AutoApprove = false, want true")
		}
		if got.StartURL != "https://screens.example.com/lobby" {
			t.Errorf("StartURL = %q", got.StartURL)
		}
	})

	t.Run("accepts explicit code", func(t *testing.T) {
		code := &Code{Code: "4711", CustomerID: c.ID}
		if err := repo.CreateCode(ctx, code); err != nil {
			t.Fatalf("CreateCode() error = %v", err)
		}

		duplicate := &Code{Code: "4711", CustomerID: c.ID}
		err := repo.CreateCode(ctx, duplicate)
		if !errors.Is(err, ErrCodeExists) {
			t.Errorf("CreateCode() duplicate error = %v, want ErrCodeExists", err)
		}
	})

	t.Run("unknown code returns ErrCodeNotFound", func(t *testing.T) {
		_, err := repo.GetCode(ctx, "0000")
		if !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("GetCode() error = %v, want ErrCodeNotFound", err)
		}
	})

	t.Run("lists codes for customer", func(t *testing.T) {
		codes, err := repo.ListCodes(ctx, c.ID)
		if err != nil {
			t.Fatalf("ListCodes() error = %v", err)
		}
		if len(codes) != 2 {
			t.Errorf("ListCodes() returned %d, want 2", len(codes))
		}
	})

	t.Run("deletes code", func(t *testing.T) {
		if err := repo.DeleteCode(ctx, "4711"); err != nil {
			t.Fatalf("DeleteCode() error = %v", err)
		}
		if err := repo.DeleteCode(ctx, "4711"); !errors.Is(err, ErrCodeNotFound) {
			t.Errorf("second DeleteCode() error = %v, want ErrCodeNotFound", err)
		}
	})
}

func TestSQLiteRepository_Assignments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	first := testCustomer(t, repo, "Nordkyst Ejendomme")
	second := testCustomer(t, repo, "Aarhus Bibliotek")

	firstCode := &Code{Code: "1111", CustomerID: first.ID}
	if err := repo.CreateCode(ctx, firstCode); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}
	secondCode := &Code{Code: "2222", CustomerID: second.ID}
	if err := repo.CreateCode(ctx, secondCode); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}

	t.Run("assigns device to customer", func(t *testing.T) {
		if err := repo.Assign(ctx, "fully-a1b2c3", firstCode); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		a, err := repo.GetAssignment(ctx, "fully-a1b2c3")
		if err != nil {
			t.Fatalf("GetAssignment() error = %v", err)
		}
		if a.CustomerID != first.ID || a.Code != "1111" {
			t.Errorf("assignment = %+v, want customer %d code 1111", a, first.ID)
		}
	})

	t.Run("re-provisioning replaces assignment", func(t *testing.T) {
		if err := repo.Assign(ctx, "fully-a1b2c3", secondCode); err != nil {
			t.Fatalf("Assign() error = %v", err)
		}

		a, err := repo.GetAssignment(ctx, "fully-a1b2c3")
		if err != nil {
			t.Fatalf("GetAssignment() error = %v", err)
		}
		if a.CustomerID != second.ID || a.Code != "2222" {
			t.Errorf("assignment = %+v, want customer %d code 2222", a, second.ID)
		}
	})

	t.Run("unassigned device returns ErrAssignmentNotFound", func(t *testing.T) {
		_, err := repo.GetAssignment(ctx, "pi-unassigned")
		if !errors.Is(err, ErrAssignmentNotFound) {
			t.Errorf("GetAssignment() error = %v, want ErrAssignmentNotFound", err)
		}
	})

	t.Run("lists assignments per customer", func(t *testing.T) {
		assignments, err := repo.ListAssignments(ctx, second.ID)
		if err != nil {
			t.Fatalf("ListAssignments() error = %v", err)
		}
		if len(assignments) != 1 || assignments[0].DeviceID != "fully-a1b2c3" {
			t.Errorf("ListAssignments() = %v, want [fully-a1b2c3]", assignments)
		}
	})
}

func TestSQLiteRepository_Locations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("upsert replaces earlier fix", func(t *testing.T) {
		loc := &Location{DeviceID: "pi-lobby-01", Latitude: 56.1629, Longitude: 10.2039, Accuracy: 12.5, Provider: "network"}
		if err := repo.UpsertLocation(ctx, loc); err != nil {
			t.Fatalf("UpsertLocation() error = %v", err)
		}

		loc2 := &Location{DeviceID: "pi-lobby-01", Latitude: 56.1630, Longitude: 10.2040, Accuracy: 8.0, Provider: "gps", Address: "Aarhus, Midtjylland, Danmark"}
		if err := repo.UpsertLocation(ctx, loc2); err != nil {
			t.Fatalf("second UpsertLocation() error = %v", err)
		}

		got, err := repo.GetLocation(ctx, "pi-lobby-01")
		if err != nil {
			t.Fatalf("GetLocation() error = %v", err)
		}
		if got.Provider != "gps" || got.Accuracy != 8.0 {
			t.Errorf("location = %+v, want the gps fix", got)
		}
		if got.Address != "Aarhus, Midtjylland, Danmark" {
			t.Errorf("Address = %q", got.Address)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM locations WHERE device_id = ?", "pi-lobby-01").Scan(&count); err != nil {
			t.Fatalf("counting locations: %v", err)
		}
		if count != 1 {
			t.Errorf("location rows = %d, want 1", count)
		}
	})

	t.Run("missing fix returns ErrLocationNotFound", func(t *testing.T) {
		_, err := repo.GetLocation(ctx, "pi-nowhere")
		if !errors.Is(err, ErrLocationNotFound) {
			t.Errorf("GetLocation() error = %v, want ErrLocationNotFound", err)
		}
	})
}
