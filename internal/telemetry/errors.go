package telemetry

import "errors"

var (
	// ErrInvalidMetric is returned for a metric outside rssi_dbm, snr_db and round_trip_ms.
	ErrInvalidMetric = errors.New("unsupported metric")

	// ErrNoSamples is returned when a batch ingest carries no samples.
	ErrNoSamples = errors.New("no samples provided")

	// ErrInvalidSample wraps validation failures on ingested samples.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrInvalidQuery wraps validation failures on heatmap and listing queries.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrGeocoderDisabled is returned for place-name queries when no Locator is configured.
	ErrGeocoderDisabled = errors.New("geocoder is not configured")

	// ErrLocateFailed wraps Locator failures for place-name queries.
	ErrLocateFailed = errors.New("could not resolve place")

	errInvalidTimestamp = errors.New("invalid timestamp; use ISO 8601 or unix seconds")
	errTimestampRange   = errors.New("timestamp outside years 0001-9999")
)
