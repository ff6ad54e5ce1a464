package assessment

import (
	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// validItem enforces structural soundness before any scoring: choice items
// need 2+ choices and the right number of correct ones; free-text items need
// an expected answer.
func validItem(it *domain.GeneratedAssessment) bool {
	if it.Prompt == "" || domain.BloomOrder(it.Bloom) < 0 {
		return false
	}
	switch it.Type {
	case domain.AssessmentSingleChoice:
		return len(it.Choices) >= 2 && correctCount(it.Choices) == 1
	case domain.AssessmentMultiChoice:
		return len(it.Choices) >= 3 && correctCount(it.Choices) >= 2
	case domain.AssessmentFreeText:
		return it.ExpectedAnswer != ""
	}
	return false
}

func correctCount(choices []domain.AssessmentChoice) int {
	n := 0
	for _, c := range choices {
		if c.Correct {
			n++
		}
	}
	return n
}

// answerability scores how much of the item's answer material is actually
// present in the source segment. The correct answer text carries most of the
// weight; prompt overlap breaks ties for free-text items with short answers.
func answerability(it domain.GeneratedAssessment, seg domain.Segment) float64 {
	segWords := textutil.Words(seg.Text)
	segSet := make(map[string]struct{}, len(segWords))
	for _, w := range segWords {
		segSet[w] = struct{}{}
	}

	answer := it.ExpectedAnswer
	for _, c := range it.Choices {
		if c.Correct {
			answer += " " + c.Text
		}
	}
	answerScore := coverage(textutil.Words(answer), segSet)
	promptScore := coverage(textutil.Words(it.Prompt), segSet)
	return 0.75*answerScore + 0.25*promptScore
}

// coverage is the fraction of content words found in the segment vocabulary.
// Very short word lists are judged on what they have.
func coverage(words []string, segSet map[string]struct{}) float64 {
	total, hit := 0, 0
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		total++
		if _, ok := segSet[w]; ok {
			hit++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}
