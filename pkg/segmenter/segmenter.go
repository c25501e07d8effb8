package segmenter

import "context"

// Evidence is one answer image passed to the segmentation service.
type Evidence struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is the structured output of the segmentation service.
type Result struct {
	Success          bool                     `json:"success"`
	Message          string                   `json:"message"`
	CroppedQuestions []map[string]interface{} `json:"cropped_questions"`
	Summary          map[string]interface{}   `json:"summary"`
}

// Segmenter describes a service able to crop per-question regions out of
// answer sheet images.
type Segmenter interface {
	Process(ctx context.Context, evidence []Evidence) (Result, error)
}

// Noop is a disabled segmenter used when no service is configured and in
// tests. It reports an unsuccessful result without an error so callers treat
// it like a degraded collaborator.
type Noop struct{}

// Process implements Segmenter.
func (Noop) Process(context.Context, []Evidence) (Result, error) {
	return Result{Success: false, Message: "segmentation disabled"}, nil
}
