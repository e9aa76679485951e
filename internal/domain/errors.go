package domain

import "errors"

var (
	// ErrRemoteUnavailable is returned when the INIES search endpoint cannot be reached or answers non-200
	ErrRemoteUnavailable = errors.New("INIES remote unavailable")

	// ErrMalformedResponse is returned when the discovery payload is not a flat array of identifiers
	ErrMalformedResponse = errors.New("malformed INIES response")

	// ErrNoRemoteData is returned by a sync that got no identifiers to work with
	ErrNoRemoteData = errors.New("no remote data")

	// ErrEmptyInput is returned when scoring an empty comparison set
	ErrEmptyInput = errors.New("empty comparison set")

	// ErrInsufficientVariance is returned when a comparison set has fewer than two rows or zero spread
	ErrInsufficientVariance = errors.New("insufficient variance to compute z-scores")

	// ErrProductNotFound is returned when an identifier is not in the catalogue
	ErrProductNotFound = errors.New("product not found in catalogue")

	// ErrSolutionNotFound is returned when a solution name is unknown
	ErrSolutionNotFound = errors.New("solution not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrMalformedCatalogue is returned when the catalogue file lacks the expected header
	ErrMalformedCatalogue = errors.New("malformed catalogue file")

	// ErrMalformedSolutions is returned when the solutions file is not valid JSON
	ErrMalformedSolutions = errors.New("malformed solutions file")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrSyncInProgress is returned when a sync is requested while another one runs
	ErrSyncInProgress = errors.New("sync already in progress")
)
