package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure class of a cycle.
var (
	ErrCaptureAborted = errors.New("capture produced no session")
	ErrTranscription  = errors.New("transcription failed")
	ErrAITransform    = errors.New("ai transform failed")
	ErrPaste          = errors.New("paste failed")
	ErrPersistence    = errors.New("persisting history failed")
)

// StageError ties a failure to the cycle and stage it happened in.
type StageError struct {
	Generation uint64
	Stage      error
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %d: %v: %v", e.Generation, e.Stage, e.Err)
}

// Unwrap exposes both the stage sentinel and the underlying cause.
func (e *StageError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

func stageError(gen uint64, stage, err error) *StageError {
	return &StageError{Generation: gen, Stage: stage, Err: err}
}

// Severity ranks a user-visible notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Notification is a single human readable message about a cycle.
type Notification struct {
	Generation uint64
	Severity   Severity
	Err        error
	Message    string
}

func notificationFor(serr *StageError) Notification {
	n := Notification{
		Generation: serr.Generation,
		Severity:   SeverityWarning,
		Err:        serr,
	}

	switch {
	case errors.Is(serr, ErrTranscription):
		n.Severity = SeverityError
		n.Message = "Transcription failed: " + serr.Err.Error()
	case errors.Is(serr, ErrAITransform):
		n.Message = "AI function failed, kept the original text: " + serr.Err.Error()
	case errors.Is(serr, ErrPaste):
		n.Message = "Could not paste the transcript: " + serr.Err.Error()
	case errors.Is(serr, ErrPersistence):
		n.Message = "Could not save the transcript to history: " + serr.Err.Error()
	default:
		n.Message = serr.Error()
	}

	return n
}
