package manifest

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotFound     = errors.New("video not in manifest")
	ErrUnknownStage = errors.New("unknown stage")
	ErrClosed       = errors.New("manifest store closed")
)
