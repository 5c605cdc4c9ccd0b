package types

import "time"

// EventKind identifies one of the out-bound pipeline events.
type EventKind string

const (
	EventProblemDetected EventKind = "ProblemDetected"
	EventSolutionReady   EventKind = "SolutionReady"
	EventSkippedFrame    EventKind = "SkippedFrame"
	EventPipelineError   EventKind = "PipelineError"
)

// Event is one message published to the overlay UI. Only the fields
// relevant to the kind are populated.
type Event struct {
	Kind      EventKind          `json:"kind"`
	FrameID   string             `json:"frame_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Problem   *DetectedProblem   `json:"problem,omitempty"`
	Solution  *GeneratedSolution `json:"solution,omitempty"`
	Stage     string             `json:"stage,omitempty"`
	Message   string             `json:"message,omitempty"`
}
