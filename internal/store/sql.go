package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/meshcore-heatmap/internal/metrics"
	"github.com/i474232898/meshcore-heatmap/internal/telemetry"
)

// dialect captures the SQL differences between the supported engines.
type dialect struct {
	name   Dialect
	driver string
	// returning is true when INSERT ... RETURNING id is available.
	returning bool
	// numbered is true for $1-style placeholders.
	numbered bool
}

var dialects = map[Dialect]dialect{
	DialectSQLite:   {name: DialectSQLite, driver: "sqlite", returning: true},
	DialectPostgres: {name: DialectPostgres, driver: "pgx", returning: true, numbered: true},
	DialectMySQL:    {name: DialectMySQL, driver: "mysql"},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists ping samples in a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

const sampleColumns = `origin_node_id, target_node_id, created_at,
	latitude, longitude, altitude_m,
	rssi_dbm, snr_db, round_trip_ms,
	hardware_model, firmware_version, antenna_model, antenna_gain_dbi, antenna_polarization,
	tx_power_dbm, frequency_mhz, channel_id, region`

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// NewSQLStore wraps an open handle. Migrations are not applied; see Open.
func NewSQLStore(db *sql.DB, d Dialect) (*SQLStore, error) {
	dl, ok := dialects[d]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", d)
	}
	return &SQLStore{db: db, dialect: dl}, nil
}

func (s *SQLStore) observe(operation string, start time.Time, err error) {
	metrics.ObserveStore(string(s.dialect.name), operation, start, err)
}

// InsertSamples inserts all samples in one transaction.
func (s *SQLStore) InsertSamples(ctx context.Context, samples []telemetry.PingSample) (out []telemetry.PingSample, err error) {
	start := time.Now()
	defer func() { s.observe("insert", start, err) }()

	if len(samples) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := "INSERT INTO ping_samples (" + sampleColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	if s.dialect.returning {
		query += " RETURNING id"
	}
	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(query))
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out = make([]telemetry.PingSample, 0, len(samples))
	for _, sample := range samples {
		args := []any{
			sample.OriginNodeID, sample.TargetNodeID, toMillis(sample.CreatedAt),
			sample.Latitude, sample.Longitude, sample.AltitudeM,
			sample.RSSIDbm, sample.SNRDb, sample.RoundTripMs,
			sample.HardwareModel, sample.FirmwareVersion, sample.AntennaModel, sample.AntennaGainDbi, sample.AntennaPolarization,
			sample.TxPowerDbm, sample.FrequencyMHz, sample.ChannelID, sample.Region,
		}
		if s.dialect.returning {
			if err = stmt.QueryRowContext(ctx, args...).Scan(&sample.ID); err != nil {
				return nil, fmt.Errorf("insert sample: %w", err)
			}
		} else {
			res, execErr := stmt.ExecContext(ctx, args...)
			if execErr != nil {
				err = execErr
				return nil, fmt.Errorf("insert sample: %w", err)
			}
			if sample.ID, err = res.LastInsertId(); err != nil {
				return nil, fmt.Errorf("read inserted id: %w", err)
			}
		}
		sample.CreatedAt = fromMillis(toMillis(sample.CreatedAt))
		out = append(out, sample)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return out, nil
}

// AggregateCells groups located samples by exact coordinate.
func (s *SQLStore) AggregateCells(ctx context.Context, f telemetry.AggregateFilter) (cells []telemetry.CellAggregate, err error) {
	start := time.Now()
	defer func() { s.observe("aggregate", start, err) }()

	query, args, err := buildAggregateQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query heatmap cells: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c          telemetry.CellAggregate
			metricAvg  sql.NullFloat64
			latestSeen sql.NullInt64
			gain, tx   sql.NullFloat64
			hardware   sql.NullString
		)
		if err = rows.Scan(&c.Latitude, &c.Longitude, &metricAvg, &c.SampleCount, &latestSeen, &gain, &tx, &hardware); err != nil {
			return nil, fmt.Errorf("scan heatmap cell: %w", err)
		}
		c.MetricAvg = floatPtr(metricAvg)
		c.AntennaGain = floatPtr(gain)
		c.TxPower = floatPtr(tx)
		c.HardwareModel = stringPtr(hardware)
		if latestSeen.Valid {
			c.LatestSeen = fromMillis(latestSeen.Int64)
		}
		cells = append(cells, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate heatmap cells: %w", err)
	}
	return cells, nil
}

// buildAggregateQuery renders the grouping query with ? placeholders. The
// metric column is interpolated only after ParseMetric has accepted it.
func buildAggregateQuery(f telemetry.AggregateFilter) (string, []any, error) {
	metric, err := telemetry.ParseMetric(string(f.Metric))
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT latitude, longitude, AVG(`)
	b.WriteString(metric.Column())
	b.WriteString(`), COUNT(id), MAX(created_at), AVG(antenna_gain_dbi), AVG(tx_power_dbm), MAX(hardware_model)
FROM ping_samples
WHERE latitude IS NOT NULL AND longitude IS NOT NULL`)

	var args []any
	if !f.Since.IsZero() {
		b.WriteString(" AND created_at >= ?")
		args = append(args, toMillis(f.Since))
	}
	if f.HardwareModel != "" {
		b.WriteString(" AND hardware_model = ?")
		args = append(args, f.HardwareModel)
	}
	if f.AntennaModel != "" {
		b.WriteString(" AND antenna_model = ?")
		args = append(args, f.AntennaModel)
	}
	if f.Bounds != nil {
		b.WriteString(" AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?")
		args = append(args, f.Bounds.MinLat, f.Bounds.MaxLat, f.Bounds.MinLon, f.Bounds.MaxLon)
	}
	b.WriteString("\nGROUP BY latitude, longitude\nORDER BY latitude, longitude")
	return b.String(), args, nil
}

// RecentSamples returns up to limit samples, newest first.
func (s *SQLStore) RecentSamples(ctx context.Context, limit int) (samples []telemetry.PingSample, err error) {
	start := time.Now()
	defer func() { s.observe("recent", start, err) }()

	query := "SELECT id, " + sampleColumns + " FROM ping_samples ORDER BY created_at DESC, id DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent samples: %w", err)
	}
	defer rows.Close()

	samples = make([]telemetry.PingSample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent samples: %w", err)
	}
	return samples, nil
}

// DeleteBefore removes samples created before cutoff.
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (n int64, err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	res, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM ping_samples WHERE created_at < ?"), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete samples: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted samples: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanSample(rows *sql.Rows) (telemetry.PingSample, error) {
	var (
		p                                  telemetry.PingSample
		createdAt                          int64
		lat, lon, alt, rssi, snr, rtt      sql.NullFloat64
		gain, txPower, freq                sql.NullFloat64
		hardware, firmware, antenna, polar sql.NullString
		channel, region                    sql.NullString
	)
	err := rows.Scan(
		&p.ID, &p.OriginNodeID, &p.TargetNodeID, &createdAt,
		&lat, &lon, &alt,
		&rssi, &snr, &rtt,
		&hardware, &firmware, &antenna, &gain, &polar,
		&txPower, &freq, &channel, &region,
	)
	if err != nil {
		return telemetry.PingSample{}, fmt.Errorf("scan sample: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	p.Latitude, p.Longitude, p.AltitudeM = floatPtr(lat), floatPtr(lon), floatPtr(alt)
	p.RSSIDbm, p.SNRDb, p.RoundTripMs = floatPtr(rssi), floatPtr(snr), floatPtr(rtt)
	p.HardwareModel, p.FirmwareVersion, p.AntennaModel = stringPtr(hardware), stringPtr(firmware), stringPtr(antenna)
	p.AntennaGainDbi, p.AntennaPolarization = floatPtr(gain), stringPtr(polar)
	p.TxPowerDbm, p.FrequencyMHz = floatPtr(txPower), floatPtr(freq)
	p.ChannelID, p.Region = stringPtr(channel), stringPtr(region)
	return p, nil
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
