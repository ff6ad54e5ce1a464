package domain

type AssessmentType string

const (
	AssessmentSingleChoice AssessmentType = "single_choice"
	AssessmentMultiChoice  AssessmentType = "multi_choice"
	AssessmentFreeText     AssessmentType = "free_text"
)

type DifficultyTier string

const (
	DifficultyIntro   DifficultyTier = "intro"
	DifficultyCore    DifficultyTier = "core"
	DifficultyStretch DifficultyTier = "stretch"
)

type AssessmentChoice struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

type GeneratedAssessment struct {
	ID      string             `json:"id"`
	Type    AssessmentType     `json:"type"`
	Prompt  string             `json:"prompt"`
	Choices []AssessmentChoice `json:"choices,omitempty"`
	// ExpectedAnswer describes the model answer for free-text items.
	ExpectedAnswer string   `json:"expected_answer,omitempty"`
	AcceptableVars []string `json:"acceptable_variations,omitempty"`

	Bloom       BloomLevel     `json:"bloom"`
	Difficulty  DifficultyTier `json:"difficulty"`
	SegmentID   string         `json:"segment_id"`
	ObjectiveID string         `json:"objective_id,omitempty"`
	ConceptIDs  []string       `json:"concept_ids,omitempty"`

	FeedbackCorrect   string   `json:"feedback_correct,omitempty"`
	FeedbackIncorrect string   `json:"feedback_incorrect,omitempty"`
	Hints             []string `json:"hints,omitempty"`

	// Answerability is the confidence that the prompt is answerable strictly
	// from the source segment.
	Answerability float64 `json:"answerability"`
	Flagged       bool    `json:"flagged,omitempty"`
}
