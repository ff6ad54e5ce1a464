package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReviewItem is an advisory finding attached to the output for an operator
// to look at. Advisory items never fail a stage.
type ReviewItem struct {
	Kind   string `json:"kind"`
	RefID  string `json:"ref_id,omitempty"`
	Detail string `json:"detail"`
}

// CurriculumDocument is the canonical enriched output (UMCF): hierarchy,
// segments, objectives, assessments, tutoring enhancements and graph,
// plus the pass-through rights block.
type CurriculumDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SourceID string `json:"source_id"`
	CourseID string `json:"course_id"`

	Analysis    *ContentAnalysis      `json:"analysis,omitempty"`
	Structure   *StructureResult      `json:"structure,omitempty"`
	Segments    []Segment             `json:"segments,omitempty"`
	Objectives  []LearningObjective   `json:"objectives,omitempty"`
	Assessments []GeneratedAssessment `json:"assessments,omitempty"`
	Tutoring    *TutoringEnhancements `json:"tutoring,omitempty"`
	Graph       *KnowledgeGraph       `json:"graph,omitempty"`

	// Rights is attached verbatim by the license validator collaborator.
	Rights      *LicenseInfo `json:"rights,omitempty"`
	Attribution string       `json:"attribution,omitempty"`

	ReviewList []ReviewItem `json:"review_list,omitempty"`
	Warnings   []string     `json:"warnings,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// CurriculumDoc is the persistence row wrapping a serialized document.
type CurriculumDoc struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID  string         `gorm:"column:source_id;not null;index" json:"source_id"`
	CourseID  string         `gorm:"column:course_id;not null;index" json:"course_id"`
	Title     string         `gorm:"column:title" json:"title"`
	JobID     uuid.UUID      `gorm:"type:uuid;column:job_id;index" json:"job_id"`
	Document  datatypes.JSON `gorm:"column:document;type:jsonb" json:"document"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CurriculumDoc) TableName() string { return "curriculum_doc" }
