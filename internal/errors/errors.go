package errors

import "errors"

// Per-item errors. These are logged and skipped; they never abort a run.
var (
	ErrMalformedName = errors.New("malformed document name")
	ErrFetch         = errors.New("fetching object failed")
)

// Manifest errors.
var (
	ErrManifestLoad    = errors.New("loading manifest failed")
	ErrManifestPersist = errors.New("persisting manifest failed")
)

// Run-level errors. Any of these makes the process exit non-zero.
var (
	ErrListObjects = errors.New("listing bucket failed")
	ErrRender      = errors.New("rendering index failed")
)
