package domain

type SegmentType string

const (
	SegmentNarrative  SegmentType = "narrative"
	SegmentDefinition SegmentType = "definition"
	SegmentExample    SegmentType = "example"
	SegmentTransition SegmentType = "transition"
	SegmentSummary    SegmentType = "summary"
)

type CheckpointType string

const (
	CheckpointNone       CheckpointType = ""
	CheckpointDefinition CheckpointType = "definition"
	CheckpointLength     CheckpointType = "length"
	CheckpointBoundary   CheckpointType = "boundary"
	CheckpointExample    CheckpointType = "worked_example"
)

// Segment is one delivery-sized unit of content. Segments are produced once
// and never mutated; re-segmentation replaces the whole sequence.
type Segment struct {
	ID                 string             `json:"id"`
	NodeID             string             `json:"node_id,omitempty"`
	Ordinal            int                `json:"ordinal"`
	Text               string             `json:"text"`
	Type               SegmentType        `json:"type"`
	Span               Span               `json:"span"`
	WordCount          int                `json:"word_count"`
	BoundaryConfidence float64            `json:"boundary_confidence"`
	BoundarySignals    map[string]float64 `json:"boundary_signals,omitempty"`
	IsCheckpoint       bool               `json:"is_checkpoint"`
	CheckpointType     CheckpointType     `json:"checkpoint_type,omitempty"`
	KeyConcepts        []string           `json:"key_concepts,omitempty"`
	// Oversized marks a segment whose single source sentence exceeds the
	// configured maximum and therefore could not be split.
	Oversized bool `json:"oversized,omitempty"`
}
