package ports

import "context"

// ModelInput is everything a model computation receives.
type ModelInput struct {
	// SubjectDir is the directory holding the subject's anatomy data.
	SubjectDir string
	// Images are stimulus image paths in group declaration order.
	Images []string
	// Parameters are image group options merged with run arguments.
	Parameters map[string]any
	// WorkDir is an empty directory the model may write its output to.
	WorkDir string
}

// ModelOutput describes the files produced by a model computation.
type ModelOutput struct {
	// PrimaryFile is the path of the main result file.
	PrimaryFile string
	// ImageList is an optional file listing the images the model used.
	// It is superseded by the group manifest when results are archived.
	ImageList string
}

// Model is the opaque, long-running predictive computation. Run blocks until
// the computation finishes. Timeouts are the model's responsibility.
type Model interface {
	Run(ctx context.Context, in ModelInput) (ModelOutput, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, in ModelInput) (ModelOutput, error)

func (f ModelFunc) Run(ctx context.Context, in ModelInput) (ModelOutput, error) {
	return f(ctx, in)
}
