package importer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
)

// assemble folds the stage outputs into the canonical document. Rights and
// attribution pass through unmodified from the source handler.
func (r *jobRun) assemble(course *ExtractedCourse, out *enrichOutputs) *domain.CurriculumDocument {
	title := r.cfg.OutputName
	if title == "" {
		title = course.Title
	}
	if title == "" {
		title = r.cfg.CourseID
	}
	doc := &domain.CurriculumDocument{
		ID:          uuid.NewString(),
		Title:       title,
		SourceID:    r.cfg.SourceID,
		CourseID:    r.cfg.CourseID,
		Analysis:    out.analysis,
		Structure:   out.structure,
		Segments:    out.segments,
		Objectives:  out.objectives,
		Assessments: out.assessments,
		Tutoring:    out.tutoring,
		Graph:       out.graph,
		Rights:      course.License,
		Attribution: course.Attribution,
		GeneratedAt: time.Now().UTC(),
	}
	doc.Warnings = append(doc.Warnings, course.Warnings...)
	for _, e := range out.stageErrors {
		doc.Warnings = append(doc.Warnings, "stage degraded: "+e)
	}
	return doc
}

// validateDocument runs the advisory pass: findings that an operator should
// look at but that never fail the import.
func validateDocument(doc *domain.CurriculumDocument, tun domain.Tunables) ([]domain.ReviewItem, []string) {
	var review []domain.ReviewItem
	var warnings []string

	for _, seg := range doc.Segments {
		if seg.Oversized {
			review = append(review, domain.ReviewItem{
				Kind:   "oversized_segment",
				RefID:  seg.ID,
				Detail: fmt.Sprintf("segment has %d words, above the %d-word bound", seg.WordCount, tun.SegmentMaxWords),
			})
		}
	}

	for _, a := range doc.Assessments {
		if a.Flagged {
			review = append(review, domain.ReviewItem{
				Kind:   "low_answerability",
				RefID:  a.ID,
				Detail: fmt.Sprintf("answerability %.2f is below the %.2f floor", a.Answerability, tun.AnswerabilityFloor),
			})
		}
	}

	if doc.Graph != nil {
		for _, e := range doc.Graph.DroppedEdges {
			review = append(review, domain.ReviewItem{
				Kind:   "dropped_prerequisite",
				RefID:  e.From,
				Detail: fmt.Sprintf("prerequisite %s -> %s removed to keep the graph acyclic (confidence %.2f)", e.From, e.To, e.Confidence),
			})
		}
		for _, id := range doc.Graph.Unresolved {
			review = append(review, domain.ReviewItem{
				Kind:   "unresolved_concept",
				RefID:  id,
				Detail: "concept could not be linked to an external entity",
			})
		}
	}

	if doc.Structure != nil && doc.Structure.Confidence < 0.3 {
		warnings = append(warnings, fmt.Sprintf("structure confidence %.2f is low; hierarchy may be unreliable", doc.Structure.Confidence))
	}
	if len(doc.Segments) == 0 {
		warnings = append(warnings, "document contains no segments")
	}
	if len(doc.Objectives) == 0 {
		warnings = append(warnings, "no learning objectives were produced")
	}
	if doc.Rights != nil && doc.Rights.RequiresAttribution && doc.Attribution == "" {
		warnings = append(warnings, "license requires attribution but none was provided")
	}

	return review, warnings
}
