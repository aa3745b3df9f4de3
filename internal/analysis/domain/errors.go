package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("analysis session not found")
	ErrSessionNotReady = errors.New("analysis session is not ready")
	ErrInvalidAmpUnit  = errors.New("invalid amplitude unit")
	ErrInvalidKind     = errors.New("invalid view kind")
	ErrNoSamples       = errors.New("session has no samples")
	ErrNoFrequency     = errors.New("no frequency given and no staged marker")
)
