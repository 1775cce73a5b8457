package app

import (
	"errors"

	"autogensocial/pkg/ai"
)

var (
	// ErrInvalidInput indicates a missing brandId or templateId.
	ErrInvalidInput     = errors.New("brandId and templateId are required")
	ErrTemplateNotFound = errors.New("template not found")
	// ErrInvalidTemplate indicates a template without a usable prompt.
	ErrInvalidTemplate  = errors.New("template has no usable promptTemplate")
	ErrUpstream         = errors.New("completion service error")
	ErrEmptyCompletion  = ai.ErrEmptyCompletion
	ErrMalformedContent = errors.New("malformed content")
	ErrAssetGeneration  = errors.New("asset generation failed")
	ErrPublish          = errors.New("publish failed")
	ErrPostNotFound     = errors.New("post not found")
)

// Pipeline stages, used for StageError and stage metrics.
const (
	StageContent = "content"
	StageAssets  = "assets"
	StagePublish = "publish"
)

// StageError reports the pipeline stage that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
