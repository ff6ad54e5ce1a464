package objectives

import (
	"strings"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/textutil"
)

// bloomVerbs maps objective verbs to taxonomy levels. Lookup scans the
// statement left to right and the first hit wins, so "analyze and list"
// classifies as analyze.
var bloomVerbs = map[string]domain.BloomLevel{
	"define":    domain.BloomRemember,
	"list":      domain.BloomRemember,
	"recall":    domain.BloomRemember,
	"name":      domain.BloomRemember,
	"identify":  domain.BloomRemember,
	"state":     domain.BloomRemember,
	"label":     domain.BloomRemember,
	"recognize": domain.BloomRemember,
	"memorize":  domain.BloomRemember,

	"explain":     domain.BloomUnderstand,
	"describe":    domain.BloomUnderstand,
	"summarize":   domain.BloomUnderstand,
	"interpret":   domain.BloomUnderstand,
	"classify":    domain.BloomUnderstand,
	"discuss":     domain.BloomUnderstand,
	"paraphrase":  domain.BloomUnderstand,
	"distinguish": domain.BloomUnderstand,
	"understand":  domain.BloomUnderstand,

	"apply":       domain.BloomApply,
	"use":         domain.BloomApply,
	"solve":       domain.BloomApply,
	"demonstrate": domain.BloomApply,
	"compute":     domain.BloomApply,
	"calculate":   domain.BloomApply,
	"implement":   domain.BloomApply,
	"execute":     domain.BloomApply,
	"practice":    domain.BloomApply,

	"analyze":       domain.BloomAnalyze,
	"compare":       domain.BloomAnalyze,
	"contrast":      domain.BloomAnalyze,
	"differentiate": domain.BloomAnalyze,
	"examine":       domain.BloomAnalyze,
	"decompose":     domain.BloomAnalyze,
	"categorize":    domain.BloomAnalyze,
	"investigate":   domain.BloomAnalyze,

	"evaluate": domain.BloomEvaluate,
	"judge":    domain.BloomEvaluate,
	"justify":  domain.BloomEvaluate,
	"critique": domain.BloomEvaluate,
	"assess":   domain.BloomEvaluate,
	"defend":   domain.BloomEvaluate,
	"argue":    domain.BloomEvaluate,
	"appraise": domain.BloomEvaluate,

	"create":     domain.BloomCreate,
	"design":     domain.BloomCreate,
	"construct":  domain.BloomCreate,
	"develop":    domain.BloomCreate,
	"formulate":  domain.BloomCreate,
	"compose":    domain.BloomCreate,
	"synthesize": domain.BloomCreate,
	"invent":     domain.BloomCreate,
}

// classifyBloom picks the level of the first matching verb in the statement
// and reports the verb that decided it. Statements that name no known verb
// default to understand.
func classifyBloom(statement string) (domain.BloomLevel, string) {
	for _, w := range textutil.Words(statement) {
		if lvl, ok := bloomVerbs[w]; ok {
			return lvl, w
		}
		// "defining" / "applies" style inflections.
		for _, suffix := range []string{"ing", "es", "s", "d"} {
			if stem, found := strings.CutSuffix(w, suffix); found && len(stem) >= 3 {
				if lvl, ok := bloomVerbs[stem]; ok {
					return lvl, stem
				}
			}
		}
	}
	return domain.BloomUnderstand, ""
}
