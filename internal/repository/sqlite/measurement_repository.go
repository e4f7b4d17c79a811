package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sensorlog/internal/model"
)

const measurementColumns = `id, timestamp, sensor_type, latitude, longitude,
	acceleration_x, acceleration_y, acceleration_z, photo_path, notes`

// MeasurementRepository implements repository.MeasurementRepository for SQLite.
type MeasurementRepository struct {
	db *DB
}

// NewMeasurementRepository creates a new SQLite measurement repository.
func NewMeasurementRepository(db *DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// Insert adds a new measurement and returns the id SQLite assigned to it.
func (r *MeasurementRepository) Insert(ctx context.Context, m *model.Measurement) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO sensor_measurements (timestamp, sensor_type, latitude, longitude,
			acceleration_x, acceleration_y, acceleration_z, photo_path, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, insertArgs(m)...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert measurement: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple measurements in a single transaction.
func (r *MeasurementRepository) InsertBatch(ctx context.Context, ms []model.Measurement) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensor_measurements (timestamp, sensor_type, latitude, longitude,
			acceleration_x, acceleration_y, acceleration_z, photo_path, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range ms {
		if _, err := stmt.ExecContext(ctx, insertArgs(&ms[i])...); err != nil {
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a measurement by its ID. It returns nil, nil when absent.
func (r *MeasurementRepository) GetByID(ctx context.Context, id int64) (*model.Measurement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `SELECT `+measurementColumns+` FROM sensor_measurements WHERE id = ?`, id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return m, nil
}

// GetAll retrieves measurements matching the filter, newest first.
// Equal timestamps are ordered by descending id so the latest insert comes first.
func (r *MeasurementRepository) GetAll(ctx context.Context, filter *model.MeasurementFilter) ([]model.Measurement, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + measurementColumns + ` FROM sensor_measurements WHERE 1=1` + where +
		` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter != nil && filter.Offset > 0 {
		if filter.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	measurements := make([]model.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		measurements = append(measurements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}

	return measurements, nil
}

// GetTotalCount returns the number of measurements matching the filter.
// Limit and Offset are ignored.
func (r *MeasurementRepository) GetTotalCount(ctx context.Context, filter *model.MeasurementFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_measurements WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count measurements: %w", err)
	}

	return count, nil
}

// Delete removes a measurement by its ID and reports whether a row was removed.
func (r *MeasurementRepository) Delete(ctx context.Context, id int64) (bool, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM sensor_measurements WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete measurement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteAll removes every measurement and returns how many were removed.
func (r *MeasurementRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().ExecContext(ctx, `DELETE FROM sensor_measurements`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete measurements: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func buildWhere(filter *model.MeasurementFilter) (string, []interface{}) {
	where := ""
	args := []interface{}{}
	if filter == nil {
		return where, args
	}

	if filter.SensorType != "" {
		where += " AND sensor_type = ?"
		args = append(args, string(filter.SensorType))
	}

	if filter.Since > 0 {
		where += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}

	if filter.Until > 0 {
		where += " AND timestamp <= ?"
		args = append(args, filter.Until)
	}

	return where, args
}

func insertArgs(m *model.Measurement) []interface{} {
	return []interface{}{
		m.Timestamp, string(m.SensorType),
		nullFloat(m.Latitude), nullFloat(m.Longitude),
		nullFloat(m.AccelerationX), nullFloat(m.AccelerationY), nullFloat(m.AccelerationZ),
		nullString(m.PhotoPath), nullString(m.Notes),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeasurement(row rowScanner) (*model.Measurement, error) {
	var (
		m          model.Measurement
		sensorType string
		lat, lon   sql.NullFloat64
		ax, ay, az sql.NullFloat64
		photo      sql.NullString
		notes      sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Timestamp, &sensorType, &lat, &lon, &ax, &ay, &az, &photo, &notes); err != nil {
		return nil, err
	}

	m.SensorType = model.SensorType(sensorType)
	m.Latitude = floatPtr(lat)
	m.Longitude = floatPtr(lon)
	m.AccelerationX = floatPtr(ax)
	m.AccelerationY = floatPtr(ay)
	m.AccelerationZ = floatPtr(az)
	m.PhotoPath = stringPtr(photo)
	m.Notes = stringPtr(notes)
	return &m, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
