package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/device-inventory/internal/infrastructure/database"
)

// timestampLayout stores created_at as fixed-width UTC text so that
// lexical order matches chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Repository defines the interface for device persistence.
type Repository interface {
	// Insert stores a new device and fills in its ID (and CreatedAt when zero).
	// Returns ErrDuplicateDeviceID if the label is already taken.
	Insert(ctx context.Context, d *Device) error

	// GetByID retrieves a device by its store-assigned id.
	// Returns ErrDeviceNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// GetByDeviceID retrieves a device by its label.
	// Returns ErrDeviceNotFound if absent.
	GetByDeviceID(ctx context.Context, deviceID string) (*Device, error)

	// Update loads the device, applies mutate and writes the issuance fields
	// back, all in one transaction. Returns ErrDeviceNotFound if absent and
	// any error from mutate unchanged.
	Update(ctx context.Context, id int64, mutate func(d *Device) error) (*Device, error)

	// Delete removes a device permanently.
	// Returns ErrDeviceNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// ListAll returns every device, newest first.
	ListAll(ctx context.Context) ([]Device, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT id, device_id, date_added, is_issued, issued_to, date_issued, created_at FROM devices`

// Insert stores a new device.
func (r *SQLiteRepository) Insert(ctx context.Context, d *Device) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, date_added, is_issued, issued_to, date_issued, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.DeviceID,
		d.DateAdded.String(),
		boolToInt(d.IsIssued),
		nullableString(d.IssuedTo),
		nullableDate(d.DateIssued),
		formatTimestamp(d.CreatedAt),
	)
	if err != nil {
		return mapWriteError(err, "inserting device")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted device id: %w", err)
	}
	d.ID = id
	return nil
}

// GetByID retrieves a device by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	return getDevice(ctx, r.db, selectColumns+" WHERE id = ?", id)
}

// GetByDeviceID retrieves a device by label.
func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID string) (*Device, error) {
	return getDevice(ctx, r.db, selectColumns+" WHERE device_id = ?", deviceID)
}

// Update applies mutate to the stored device inside a transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, mutate func(d *Device) error) (*Device, error) {
	var updated *Device

	err := database.WithTx(ctx, r.db, nil, func(ctx context.Context, tx database.DBTX) error {
		d, err := getDevice(ctx, tx, selectColumns+" WHERE id = ?", id)
		if err != nil {
			return err
		}

		if err := mutate(d); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE devices SET is_issued = ?, issued_to = ?, date_issued = ? WHERE id = ?`,
			boolToInt(d.IsIssued),
			nullableString(d.IssuedTo),
			nullableDate(d.DateIssued),
			id,
		)
		if err != nil {
			return mapWriteError(err, "updating device")
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a device by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted rows: %w", err)
	}
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// ListAll returns every device ordered by created_at then id, newest first.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// getDevice runs a single-row query on db or tx.
func getDevice(ctx context.Context, q database.DBTX, query string, args ...any) (*Device, error) {
	d, err := scanDevice(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return d, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(s rowScanner) (*Device, error) {
	var (
		d          Device
		dateAdded  string
		isIssued   int
		issuedTo   sql.NullString
		dateIssued sql.NullString
		createdAt  string
	)

	err := s.Scan(&d.ID, &d.DeviceID, &dateAdded, &isIssued, &issuedTo, &dateIssued, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	if d.DateAdded, err = ParseDate(dateAdded); err != nil {
		return nil, fmt.Errorf("device %d: %w", d.ID, err)
	}
	d.IsIssued = isIssued != 0
	if issuedTo.Valid {
		d.IssuedTo = &issuedTo.String
	}
	if dateIssued.Valid {
		di, err := ParseDate(dateIssued.String)
		if err != nil {
			return nil, fmt.Errorf("device %d: %w", d.ID, err)
		}
		d.DateIssued = &di
	}
	if d.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
		return nil, fmt.Errorf("device %d: parsing created_at: %w", d.ID, err)
	}

	return &d, nil
}

// mapWriteError translates SQLite constraint failures into domain errors.
func mapWriteError(err error, action string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return ErrDuplicateDeviceID
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrInvalidDevice, sqliteErr.Error())
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableDate(d *Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
