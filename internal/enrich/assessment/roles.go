package assessment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// semanticRoles is a shallow per-sentence decomposition used by the template
// generator. The extraction is deliberately conservative: a role left empty
// just means the corresponding template is skipped.
type semanticRoles struct {
	Agent    string
	Action   string
	Patient  string
	Location string
	Time     string
}

var (
	// "<agent> <verb(s)> <patient> [in/at <location>] [during/when <time>]"
	svoRe      = regexp.MustCompile(`^([A-Z][\w'\- ]{2,40}?)\s+(is|are|was|were|converts?|produces?|uses?|forms?|creates?|causes?|enables?|requires?|transfers?|stores?|releases?|absorbs?|regulates?|controls?|divides?|combines?|performs?)\s+(.+)$`)
	locationRe = regexp.MustCompile(`\b(?:in|at|inside|within)\s+(the\s+)?([a-z][\w\- ]{2,30}?)(?:[,.]|$)`)
	timeRe     = regexp.MustCompile(`\b(?:during|when|while|after|before)\s+([a-z][\w\- ]{2,40}?)(?:[,.]|$)`)
)

func extractRoles(sentence string) (semanticRoles, bool) {
	var r semanticRoles
	m := svoRe.FindStringSubmatch(strings.TrimSpace(sentence))
	if m == nil {
		return r, false
	}
	r.Agent = strings.TrimSpace(m[1])
	r.Action = strings.TrimSpace(m[2])
	rest := strings.TrimSuffix(strings.TrimSpace(m[3]), ".")

	if lm := locationRe.FindStringSubmatch(rest); lm != nil {
		r.Location = strings.TrimSpace(lm[2])
		rest = strings.TrimSpace(strings.Replace(rest, lm[0], "", 1))
	}
	if tm := timeRe.FindStringSubmatch(rest); tm != nil {
		r.Time = strings.TrimSpace(tm[1])
		rest = strings.TrimSpace(strings.Replace(rest, tm[0], "", 1))
	}
	r.Patient = strings.TrimRight(rest, ",. ")
	if textutil.WordCount(r.Patient) < 1 {
		return r, false
	}
	return r, true
}

// templateQuestions renders free-text items from extracted roles. Every item
// quotes its answer from the source sentence, so answerability is high by
// construction.
func templateQuestions(seg domain.Segment) []domain.GeneratedAssessment {
	var out []domain.GeneratedAssessment
	for _, sent := range textutil.SplitSentences(seg.Text) {
		roles, ok := extractRoles(sent.Text)
		if !ok {
			continue
		}
		add := func(prompt, answer string, bloom domain.BloomLevel) {
			if answer == "" {
				return
			}
			out = append(out, domain.GeneratedAssessment{
				Type:           domain.AssessmentFreeText,
				Prompt:         prompt,
				ExpectedAnswer: answer,
				Bloom:          bloom,
				Difficulty:     domain.DifficultyIntro,
				SegmentID:      seg.ID,
			})
		}
		switch roles.Action {
		case "is", "are", "was", "were":
			add(fmt.Sprintf("What %s %s?", roles.Action, roles.Agent), roles.Patient, domain.BloomRemember)
		default:
			add(fmt.Sprintf("What does %s %s?", roles.Agent, strings.TrimSuffix(roles.Action, "s")), roles.Patient, domain.BloomRemember)
			add(fmt.Sprintf("What %s %s?", pluralVerb(roles.Action), roles.Patient), roles.Agent, domain.BloomUnderstand)
		}
		if roles.Location != "" {
			add(fmt.Sprintf("Where does %s take place?", lowerFirst(roles.Agent)), roles.Location, domain.BloomRemember)
		}
		if roles.Time != "" {
			add(fmt.Sprintf("When does %s happen?", lowerFirst(roles.Agent)), roles.Time, domain.BloomRemember)
		}
		if len(out) >= 4 {
			break
		}
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func pluralVerb(v string) string {
	if strings.HasSuffix(v, "s") {
		return v
	}
	return v + "s"
}
