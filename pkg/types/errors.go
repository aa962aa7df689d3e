package types

import "errors"

// Relation engine configuration errors. These are fatal at registry parse
// or model registration time and never recovered.
var (
	ErrUnknownRelationOption = errors.New("unknown relation option")
	ErrInvalidRelationOption = errors.New("invalid relation option value")
	ErrUnknownKeyMode        = errors.New("unknown relation key mode")
	ErrInvalidRelationMeta   = errors.New("invalid relation metadata")
	ErrExtraColumns          = errors.New("junction extra columns provider must produce a map")
)

// Relation engine runtime errors.
var (
	ErrRelationUndeclared = errors.New("relation not declared for saving")
	ErrRelationUnknown    = errors.New("relation not defined on model")
	ErrValidationFailed   = errors.New("validation failed")
)

// Storage layer errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidData     = errors.New("invalid record data")
	ErrRecordNew       = errors.New("record has not been saved")
	ErrModelUnknown    = errors.New("model not registered")
	ErrDuplicateModel  = errors.New("model already registered")
	ErrBackendDetached = errors.New("backend is detached")
	ErrAlreadyAttached = errors.New("backend is already attached")
)
