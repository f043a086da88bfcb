// Package media turns raw uploads into stored, normalized attachments.
// Processing sits behind the Processor interface so deployments can swap the
// in-process pipeline for a dedicated media service.
package media

import "context"

// ProcessInput carries one raw upload into a processor.
type ProcessInput struct {
	OwnerID     uint
	Filename    string
	ContentType string
	Content     []byte
}

// ProcessResult describes the stored asset a processor produced.
type ProcessResult struct {
	Ref         string
	ContentType string
	SizeBytes   int64
	Width       int
	Height      int
}

// Processor validates, normalizes, and stores media content.
type Processor interface {
	// Process stores the upload and returns its stable reference. Input
	// problems surface as models.AppError with VALIDATION_ERROR; transport
	// and storage failures surface as plain errors.
	Process(ctx context.Context, in ProcessInput) (*ProcessResult, error)

	// Remove deletes the stored asset for ref. Removing an unknown ref is
	// not an error.
	Remove(ctx context.Context, ref string) error
}

// PathResolver is the optional capability of processors that keep assets on
// the local filesystem and can hand out a path for direct serving.
type PathResolver interface {
	ResolvePath(ref string) (string, error)
}
