package domain

// SegmenterWeights combines the three boundary signals into one score.
// Weights are configuration, never derived per-document.
type SegmenterWeights struct {
	Surprisal  float64 `json:"surprisal"`
	Margin     float64 `json:"margin"`
	Similarity float64 `json:"similarity"`
}

// Tunables collects the constants the source material left unspecified.
// They are configuration on purpose; none of them is hard-coded downstream.
type Tunables struct {
	SegmentMinWords    int              `json:"segment_min_words"`
	SegmentTargetWords int              `json:"segment_target_words"`
	SegmentMaxWords    int              `json:"segment_max_words"`
	BoundaryThreshold  float64          `json:"boundary_threshold"`
	BoundaryWeights    SegmenterWeights `json:"boundary_weights"`

	ExplicitStructureShortCircuit float64 `json:"explicit_structure_short_circuit"`
	StructureMergeOverlap         float64 `json:"structure_merge_overlap"`

	ObjectiveDedupeSimilarity float64 `json:"objective_dedupe_similarity"`
	StandardsAlignSimilarity  float64 `json:"standards_align_similarity"`
	AnswerabilityFloor        float64 `json:"answerability_floor"`
	RelatedEdgeSimilarity     float64 `json:"related_edge_similarity"`
	PrereqEdgeConfidenceFloor float64 `json:"prereq_edge_confidence_floor"`
}

// DefaultTunables returns the shipped defaults; callers may override any field.
func DefaultTunables() Tunables {
	return Tunables{
		SegmentMinWords:    50,
		SegmentTargetWords: 150,
		SegmentMaxWords:    300,
		BoundaryThreshold:  0.55,
		BoundaryWeights:    SegmenterWeights{Surprisal: 0.4, Margin: 0.25, Similarity: 0.35},

		ExplicitStructureShortCircuit: 0.8,
		StructureMergeOverlap:         0.5,

		ObjectiveDedupeSimilarity: 0.85,
		StandardsAlignSimilarity:  0.4,
		AnswerabilityFloor:        0.5,
		RelatedEdgeSimilarity:     0.78,
		PrereqEdgeConfidenceFloor: 0.3,
	}
}

// StageToggles turns individual enrichment sub-stages on and off.
// A disabled stage is skipped, never failed.
type StageToggles struct {
	Analyze             bool `json:"analyze"`
	InferStructure      bool `json:"infer_structure"`
	Segment             bool `json:"segment"`
	GenerateObjectives  bool `json:"generate_objectives"`
	GenerateAssessments bool `json:"generate_assessments"`
	EnhanceTutoring     bool `json:"enhance_tutoring"`
	BuildKnowledgeGraph bool `json:"build_knowledge_graph"`
}

func AllStagesEnabled() StageToggles {
	return StageToggles{
		Analyze:             true,
		InferStructure:      true,
		Segment:             true,
		GenerateObjectives:  true,
		GenerateAssessments: true,
		EnhanceTutoring:     true,
		BuildKnowledgeGraph: true,
	}
}

// ImportConfig is the per-job configuration snapshot. It mirrors the import
// request body: source/course selection, content inclusion flags, enrichment
// toggles, and tunables.
type ImportConfig struct {
	SourceID   string `json:"source_id"`
	CourseID   string `json:"course_id"`
	OutputName string `json:"output_name,omitempty"`

	SelectedLectures    []string `json:"selected_lectures,omitempty"`
	IncludeTranscripts  bool     `json:"include_transcripts"`
	IncludeLectureNotes bool     `json:"include_lecture_notes"`
	IncludeAssignments  bool     `json:"include_assignments"`
	IncludeExams        bool     `json:"include_exams"`
	IncludeVideos       bool     `json:"include_videos"`

	Stages StageToggles `json:"stages"`

	// CreateCheckpoints keeps segment checkpoint marking on/off independent
	// of the segmenter itself.
	CreateCheckpoints bool `json:"create_checkpoints"`
	// GenerateSpokenText and friends toggle enhancer sub-calls individually.
	GenerateSpokenText       bool `json:"generate_spoken_text"`
	GenerateAlternatives     bool `json:"generate_alternatives"`
	GenerateGlossary         bool `json:"generate_glossary"`
	GenerateMisconceptions   bool `json:"generate_misconceptions"`
	GeneratePracticeProblems bool `json:"generate_practice_problems"`

	BloomTargets   []BloomLevel `json:"bloom_targets,omitempty"`
	DomainTemplate string       `json:"domain_template,omitempty"`
	Audience       string       `json:"audience,omitempty"`

	// Provider identifies the generative/embedding backend. Credentials are
	// owned by a collaborator; the pipeline never reads them from here.
	Provider string `json:"provider,omitempty"`

	Tunables Tunables `json:"tunables"`

	Concurrency int `json:"concurrency,omitempty"`
}

// Normalize fills zero-valued fields with defaults so downstream code can
// rely on sane bounds.
func (c *ImportConfig) Normalize() {
	zero := Tunables{}
	if c.Tunables == zero {
		c.Tunables = DefaultTunables()
	}
	t := &c.Tunables
	if t.SegmentMinWords <= 0 {
		t.SegmentMinWords = 50
	}
	if t.SegmentMaxWords <= 0 {
		t.SegmentMaxWords = 300
	}
	if t.SegmentTargetWords <= 0 {
		t.SegmentTargetWords = 150
	}
	if t.SegmentMinWords > t.SegmentMaxWords {
		t.SegmentMinWords, t.SegmentMaxWords = t.SegmentMaxWords, t.SegmentMinWords
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Stages == (StageToggles{}) {
		c.Stages = AllStagesEnabled()
	}
}
