package domain

// ContentAnalysis is the immutable profile of a raw text produced by the
// analyzer stage. Every later stage reads it; nothing mutates it.
type ContentAnalysis struct {
	GradeLevel           float64 `json:"grade_level"`
	ReadingEase          float64 `json:"reading_ease"`
	VocabularyDifficulty float64 `json:"vocabulary_difficulty"`

	WordCount      int     `json:"word_count"`
	SentenceCount  int     `json:"sentence_count"`
	ParagraphCount int     `json:"paragraph_count"`
	AvgSentenceLen float64 `json:"avg_sentence_len"`
	AvgWordLen     float64 `json:"avg_word_len"`

	HasHeadings  bool `json:"has_headings"`
	HasLists     bool `json:"has_lists"`
	HasCode      bool `json:"has_code"`
	HasEquations bool `json:"has_equations"`
	HasCitations bool `json:"has_citations"`

	Domain           string `json:"domain"`
	Language         string `json:"language"`
	Formality        string `json:"formality"`
	DomainSource     string `json:"domain_source"` // "model" or "rules"
	RecommendedChunk int    `json:"recommended_chunk"`
}
