package model

import "errors"

// Sentinel errors shared by the store, lending and import/export layers.
var (
	// ErrStoreUnavailable is returned when the database cannot be opened or
	// initialized. It is fatal to every other operation.
	ErrStoreUnavailable = errors.New("catalog store unavailable")

	// ErrDuplicateKey is returned when an id or catalog number already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned when the target book does not exist.
	ErrNotFound = errors.New("book not found")

	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when lending a book that is already on loan.
	ErrInvalidTransition = errors.New("invalid loan transition")

	// ErrEmptyCollection is returned when exporting an empty catalog.
	ErrEmptyCollection = errors.New("catalog is empty")

	// ErrEmptyImport is returned when an import payload yields no records.
	ErrEmptyImport = errors.New("import contains no records")

	// ErrImportDeclined is returned when the replace confirmation was not given.
	ErrImportDeclined = errors.New("import not confirmed")

	// ErrMalformedImport is returned when an import payload cannot be parsed.
	ErrMalformedImport = errors.New("malformed import payload")

	// ErrUnknownFormat is returned for file names without a known suffix.
	ErrUnknownFormat = errors.New("unknown file format")
)
