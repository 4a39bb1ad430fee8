// Package pipeline sequences one dictation cycle from capture to paste and
// keeps overlapping cycles from stepping on each other.
package pipeline

import "time"

// State models the lifecycle of a recording cycle.
type State string

const (
	StateIdle         State = "idle"
	StateWillStart    State = "will-start"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateAIProcessing State = "ai-processing"
	StateComplete     State = "complete"
)

// CaptureResult is the payload of the capture-stopped signal.
// An empty SessionHandle means capture never produced usable audio.
type CaptureResult struct {
	SessionHandle string `json:"sessionHandle"`
	DurationMs    int64  `json:"durationMs"`
	SampleCount   int64  `json:"sampleCount"`
}

// Segment is a timed slice of a transcription.
type Segment struct {
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
	Text    string `json:"text"`
}

// Transcription is what a speech-to-text engine returns for one session.
type Transcription struct {
	Text       string    `json:"text"`
	Language   string    `json:"language,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// TranscribeRequest carries everything the engine needs for one session.
type TranscribeRequest struct {
	SessionHandle string
	ModelID       string
	Language      string
	Credential    string
}

// AIInvocation selects the AI function applied to a cycle, if any.
type AIInvocation struct {
	FunctionID string `json:"functionId"`
	ProviderID string `json:"providerId"`
	APIKey     string `json:"-"`
	Model      string `json:"model,omitempty"`
}

// HistoryRecord is what gets archived for every transcribed cycle.
type HistoryRecord struct {
	SessionHandle string
	RawTranscript string
	FinalText     string
	ModelID       string
	Language      string
	AIFunctionID  string
	DurationMs    int64
}

// Settings is the per-cycle configuration snapshot, taken when the cycle
// begins.
type Settings struct {
	ModelID       string
	Language      string
	STTCredential string
	Rules         []string
	AI            *AIInvocation
}

// EventKind identifies the payload of an Event.
type EventKind string

const (
	// EventState carries the post-capture states: transcribing,
	// ai-processing and complete.
	EventState EventKind = "pipeline-state"
	// EventCycle carries the capture lifecycle: will-start, recording and
	// idle after an aborted capture.
	EventCycle   EventKind = "cycle-state"
	EventLevel   EventKind = "audio-level"
	EventElapsed EventKind = "elapsed"
)

// stateEventKind picks the kind a state change is broadcast under.
func stateEventKind(s State) EventKind {
	switch s {
	case StateTranscribing, StateAIProcessing, StateComplete:
		return EventState
	default:
		return EventCycle
	}
}

// Event is broadcast to observers such as the indicator UI or the status API.
type Event struct {
	Kind       EventKind     `json:"kind"`
	Generation uint64        `json:"generation"`
	State      State         `json:"state,omitempty"`
	Level      float64       `json:"level,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	Text       string        `json:"text,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// IsStateChange reports whether the event carries a State.
func (e Event) IsStateChange() bool {
	return e.Kind == EventState || e.Kind == EventCycle
}
