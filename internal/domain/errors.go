package domain

import "errors"

var (
	// ErrNoData is returned when a service has no data for the request (HTTP 204/404).
	ErrNoData = errors.New("no data available")

	// ErrInvalidWindow is returned when a window does not end after it starts.
	ErrInvalidWindow = errors.New("invalid time window")

	// ErrNoArrival is returned when no requested phase arrives at the given distance.
	ErrNoArrival = errors.New("no phase arrival")

	// ErrUnknownCatalogFormat is returned for catalog files with an unrecognized suffix.
	ErrUnknownCatalogFormat = errors.New("unrecognized catalog format")

	// ErrUnsupported is returned when a provider does not offer the requested service.
	ErrUnsupported = errors.New("service not supported by provider")
)
