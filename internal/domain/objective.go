package domain

// BloomLevel is one of the six ordered cognitive-demand categories.
type BloomLevel string

const (
	BloomRemember   BloomLevel = "remember"
	BloomUnderstand BloomLevel = "understand"
	BloomApply      BloomLevel = "apply"
	BloomAnalyze    BloomLevel = "analyze"
	BloomEvaluate   BloomLevel = "evaluate"
	BloomCreate     BloomLevel = "create"
)

// BloomOrder returns the 0-based rank of a level, -1 when unknown.
func BloomOrder(l BloomLevel) int {
	switch l {
	case BloomRemember:
		return 0
	case BloomUnderstand:
		return 1
	case BloomApply:
		return 2
	case BloomAnalyze:
		return 3
	case BloomEvaluate:
		return 4
	case BloomCreate:
		return 5
	}
	return -1
}

// AllBloomLevels lists the six levels in ascending cognitive demand.
var AllBloomLevels = []BloomLevel{
	BloomRemember, BloomUnderstand, BloomApply, BloomAnalyze, BloomEvaluate, BloomCreate,
}

type ObjectiveProvenance string

const (
	ObjectiveExtracted ObjectiveProvenance = "extracted"
	ObjectiveInferred  ObjectiveProvenance = "inferred"
	ObjectiveGenerated ObjectiveProvenance = "generated"
)

// StandardAlignment links an objective to an external standards taxonomy.
type StandardAlignment struct {
	Framework string  `json:"framework"`
	Code      string  `json:"code"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

type LearningObjective struct {
	ID         string              `json:"id"`
	NodeID     string              `json:"node_id,omitempty"`
	Text       string              `json:"text"`
	Bloom      BloomLevel          `json:"bloom"`
	SourceVerb string              `json:"source_verb,omitempty"`
	Provenance ObjectiveProvenance `json:"provenance"`
	Confidence float64             `json:"confidence"`
	SegmentIDs []string            `json:"segment_ids,omitempty"`
	Alignments []StandardAlignment `json:"alignments,omitempty"`
}
