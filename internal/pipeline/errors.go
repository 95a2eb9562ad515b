package pipeline

import "errors"

var (
	// ErrStageDependencyUnmet marks a video whose previous stage has not
	// completed; the video fails, the batch continues.
	ErrStageDependencyUnmet = errors.New("previous stage not completed")

	// ErrUnknownStage is returned for a stage name outside the pipeline.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)
