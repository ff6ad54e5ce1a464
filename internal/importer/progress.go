package importer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	"github.com/yungbote/curricula-backend/internal/sse"
)

// phase percentage bands. Progress within a phase maps linearly into its
// band, so overall job progress is monotone across phase transitions.
var phaseBands = map[domain.ImportStatus][2]int{
	domain.StatusQueued:      {0, 0},
	domain.StatusDownloading: {0, 20},
	domain.StatusExtracting:  {20, 30},
	domain.StatusEnriching:   {30, 90},
	domain.StatusValidating:  {90, 99},
	domain.StatusComplete:    {100, 100},
}

// progressReporter throttles and monotonizes job progress writes. Progress
// never decreases for the lifetime of a job, whatever the stages report.
type progressReporter struct {
	mu          sync.Mutex
	o           *Orchestrator
	jobID       uuid.UUID
	lastPct     int
	lastWrite   time.Time
	minInterval time.Duration
}

func newProgressReporter(o *Orchestrator, jobID uuid.UUID) *progressReporter {
	return &progressReporter{
		o:           o,
		jobID:       jobID,
		minInterval: 500 * time.Millisecond,
	}
}

// report maps phase-local progress (0..1) into the phase band and persists it
// if it advanced. Forced writes (phase boundaries) skip the interval check.
func (p *progressReporter) report(dbc dbctx.Context, status domain.ImportStatus, frac float64, message string, force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	band := phaseBands[status]
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	pct := band[0] + int(frac*float64(band[1]-band[0]))
	if pct < p.lastPct {
		pct = p.lastPct
	}
	now := time.Now()
	if !force && pct == p.lastPct {
		return
	}
	if !force && now.Sub(p.lastWrite) < p.minInterval {
		return
	}
	p.lastPct = pct
	p.lastWrite = now

	updates := map[string]interface{}{"progress": pct}
	if message != "" {
		updates["message"] = message
	}
	ok, err := p.o.jobs.UpdateFieldsUnlessStatus(dbc, p.jobID, terminalStatuses, updates)
	if err != nil {
		p.o.log.Warn("progress write failed", "job_id", p.jobID, "error", err)
		return
	}
	if !ok {
		return // job reached a terminal state; stop reporting
	}
	p.o.publish(p.jobID, sse.EventJobProgress, map[string]any{
		"progress": pct,
		"status":   status,
		"message":  message,
	})
}

var terminalStatuses = []domain.ImportStatus{
	domain.StatusComplete,
	domain.StatusFailed,
	domain.StatusCancelled,
}
