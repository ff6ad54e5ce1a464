// Package importer owns the import job lifecycle: a state machine from
// queued through downloading, extracting, enriching and validating to exactly
// one terminal state. Stages are fault-isolated; a failed enrichment stage
// degrades the document instead of failing the job.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/enrich/analyzer"
	"github.com/yungbote/curricula-backend/internal/enrich/assessment"
	"github.com/yungbote/curricula-backend/internal/enrich/kgraph"
	"github.com/yungbote/curricula-backend/internal/enrich/objectives"
	"github.com/yungbote/curricula-backend/internal/enrich/segment"
	"github.com/yungbote/curricula-backend/internal/enrich/structure"
	"github.com/yungbote/curricula-backend/internal/enrich/tutoring"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	pkgerr "github.com/yungbote/curricula-backend/internal/pkg/errors"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
	"github.com/yungbote/curricula-backend/internal/platform/neo4jdb"
	"github.com/yungbote/curricula-backend/internal/platform/textgen"
	"github.com/yungbote/curricula-backend/internal/platform/wikidata"
	"github.com/yungbote/curricula-backend/internal/repos"
	"github.com/yungbote/curricula-backend/internal/sse"
)

var tracer = otel.Tracer("github.com/yungbote/curricula-backend/internal/importer")

type Deps struct {
	Log      *logger.Logger
	Jobs     repos.ImportJobRepo
	Docs     repos.CurriculumDocRepo
	Hub      *sse.Hub
	Handlers map[string]SourceHandler

	AI       textgen.Client
	GraphDB  *neo4jdb.Client
	Entities wikidata.Resolver
	Symbols  *tutoring.SymbolTable
	// Standards is the external taxonomy objectives are aligned against;
	// empty disables alignment.
	Standards []objectives.Standard
	// TemplateDir holds domain structure templates; empty disables them.
	TemplateDir string
}

type Orchestrator struct {
	log      *logger.Logger
	jobs     repos.ImportJobRepo
	docs     repos.CurriculumDocRepo
	hub      *sse.Hub
	handlers map[string]SourceHandler

	ai          textgen.Client
	graphDB     *neo4jdb.Client
	entities    wikidata.Resolver
	symbols     *tutoring.SymbolTable
	standards   []objectives.Standard
	templateDir string
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Log == nil || deps.Jobs == nil || deps.Docs == nil {
		return nil, fmt.Errorf("importer: missing required dependencies")
	}
	return &Orchestrator{
		log:         deps.Log.With("component", "ImportOrchestrator"),
		jobs:        deps.Jobs,
		docs:        deps.Docs,
		hub:         deps.Hub,
		handlers:    deps.Handlers,
		ai:          deps.AI,
		graphDB:     deps.GraphDB,
		entities:    deps.Entities,
		symbols:     deps.Symbols,
		standards:   deps.Standards,
		templateDir: deps.TemplateDir,
	}, nil
}

// Handler returns the source handler for a source id.
func (o *Orchestrator) Handler(sourceID string) (SourceHandler, bool) {
	h, ok := o.handlers[sourceID]
	return h, ok
}

// Sources lists the registered source descriptors.
func (o *Orchestrator) Sources() []domain.CurriculumSource {
	out := make([]domain.CurriculumSource, 0, len(o.handlers))
	for _, h := range o.handlers {
		out = append(out, h.Source())
	}
	return out
}

// CreateJob validates the request and persists a queued job row.
func (o *Orchestrator) CreateJob(ctx context.Context, cfg domain.ImportConfig) (*domain.ImportJob, error) {
	if cfg.SourceID == "" || cfg.CourseID == "" {
		return nil, fmt.Errorf("%w: source_id and course_id are required", pkgerr.ErrInvalidArgument)
	}
	if _, ok := o.handlers[cfg.SourceID]; !ok {
		return nil, fmt.Errorf("%w: unknown source %q", pkgerr.ErrInvalidArgument, cfg.SourceID)
	}
	cfg.Normalize()

	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("importer: marshal config: %w", err)
	}
	job := &domain.ImportJob{
		ID:       uuid.New(),
		SourceID: cfg.SourceID,
		CourseID: cfg.CourseID,
		Status:   domain.StatusQueued,
		Config:   datatypes.JSON(rawCfg),
	}
	if err := o.jobs.Create(dbctx.Context{Ctx: ctx}, job); err != nil {
		return nil, err
	}
	o.publish(job.ID, sse.EventJobQueued, map[string]any{"job_id": job.ID})
	return job, nil
}

// Cancel requests cooperative cancellation. False means the job had already
// reached a terminal state.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) (bool, error) {
	ok, err := o.jobs.RequestCancel(dbctx.Context{Ctx: ctx}, jobID)
	if err != nil {
		return false, err
	}
	if ok {
		o.publish(jobID, sse.EventJobLog, map[string]any{"message": "cancellation requested"})
	}
	return ok, nil
}

// Run executes one queued job to a terminal state. It returns an error only
// for caller mistakes (unknown job, wrong state); job failures are recorded
// on the row, not returned.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "import.run",
		trace.WithAttributes(attribute.String("job_id", jobID.String())))
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	job, err := o.jobs.GetByID(dbc, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.StatusQueued {
		return fmt.Errorf("%w: job %s is %s, not queued", pkgerr.ErrInvalidArgument, jobID, job.Status)
	}

	var cfg domain.ImportConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		o.fail(dbc, jobID, nil, fmt.Errorf("decode config: %w", err))
		return nil
	}
	cfg.Normalize()

	handler, ok := o.handlers[cfg.SourceID]
	if !ok {
		o.fail(dbc, jobID, nil, fmt.Errorf("unknown source %q", cfg.SourceID))
		return nil
	}

	run := &jobRun{
		o:        o,
		dbc:      dbc,
		jobID:    jobID,
		cfg:      cfg,
		handler:  handler,
		progress: newProgressReporter(o, jobID),
		log:      o.log.With("job_id", jobID),
	}

	stopHeartbeat := o.startHeartbeat(ctx, jobID)
	defer stopHeartbeat()

	// Stages receive a context that dies as soon as cancellation is
	// requested, so in-flight provider calls and per-item loops stop too.
	// DB writes keep the parent context: marking the row cancelled must
	// still succeed after runCtx dies.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	stopWatch := o.watchCancel(ctx, jobID, cancelRun)
	defer stopWatch()

	now := time.Now().UTC()
	_ = o.jobs.UpdateFields(dbc, jobID, map[string]interface{}{"started_at": &now})

	if err := run.execute(runCtx); err != nil {
		// Terminal handling already happened inside execute.
		run.log.Info("job finished without completing", "reason", err)
	}
	return nil
}

// watchCancel polls the cancel flag and kills the run context when it is set.
func (o *Orchestrator) watchCancel(ctx context.Context, jobID uuid.UUID, cancelRun context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				job, err := o.jobs.GetByID(dbctx.Context{Ctx: ctx}, jobID)
				if err != nil {
					continue
				}
				if job.CancelRequested || job.Status.Terminal() {
					cancelRun()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (o *Orchestrator) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				if err := o.jobs.Heartbeat(dbctx.Context{Ctx: ctx}, jobID); err != nil {
					o.log.Warn("heartbeat failed", "job_id", jobID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (o *Orchestrator) publish(jobID uuid.UUID, event sse.Event, data any) {
	if o.hub == nil {
		return
	}
	o.hub.Publish(sse.Message{Channel: sse.JobChannel(jobID), Event: event, Data: data})
}

// fail moves a job to failed unless it is already terminal.
func (o *Orchestrator) fail(dbc dbctx.Context, jobID uuid.UUID, logLines []domain.LogEntry, cause error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      domain.StatusFailed,
		"error":       cause.Error(),
		"finished_at": &now,
	}
	if logLines != nil {
		if raw, err := json.Marshal(logLines); err == nil {
			updates["log"] = datatypes.JSON(raw)
		}
	}
	ok, err := o.jobs.UpdateFieldsUnlessStatus(dbc, jobID, terminalStatuses, updates)
	if err != nil {
		o.log.Error("failed to mark job failed", "job_id", jobID, "error", err)
		return
	}
	if ok {
		o.publish(jobID, sse.EventJobFailed, map[string]any{"error": cause.Error()})
	}
}

// ---------------- per-run state ----------------

type jobRun struct {
	o        *Orchestrator
	dbc      dbctx.Context
	jobID    uuid.UUID
	cfg      domain.ImportConfig
	handler  SourceHandler
	progress *progressReporter
	log      *logger.Logger

	logLines  []domain.LogEntry
	stages    []domain.StageState
	cancelled bool
}

func (r *jobRun) appendLog(level, message string) {
	r.logLines = append(r.logLines, domain.LogEntry{At: time.Now().UTC(), Level: level, Message: message})
	if raw, err := json.Marshal(r.logLines); err == nil {
		_, _ = r.o.jobs.UpdateFieldsUnlessStatus(r.dbc, r.jobID, terminalStatuses,
			map[string]interface{}{"log": datatypes.JSON(raw)})
	}
	r.o.publish(r.jobID, sse.EventJobLog, map[string]any{"level": level, "message": message})
}

func (r *jobRun) writeStages() {
	if raw, err := json.Marshal(r.stages); err == nil {
		_, _ = r.o.jobs.UpdateFieldsUnlessStatus(r.dbc, r.jobID, terminalStatuses,
			map[string]interface{}{"stages": datatypes.JSON(raw)})
	}
}

// transition advances the state machine. A false return means the row is
// already terminal (a cancel raced ahead); the run must stop silently.
func (r *jobRun) transition(status domain.ImportStatus, message string) (bool, error) {
	ok, err := r.o.jobs.UpdateFieldsUnlessStatus(r.dbc, r.jobID, terminalStatuses, map[string]interface{}{
		"status":  status,
		"stage":   string(status),
		"message": message,
	})
	if err != nil {
		return false, err
	}
	if ok {
		r.o.publish(r.jobID, sse.EventJobStatus, map[string]any{"status": status, "message": message})
		r.progress.report(r.dbc, status, 0, message, true)
	}
	return ok, nil
}

// checkCancel enforces cooperative cancellation at stage boundaries.
func (r *jobRun) checkCancel(ctx context.Context) error {
	cancelled := ctx.Err() != nil
	if !cancelled {
		job, err := r.o.jobs.GetByID(r.dbc, r.jobID)
		if err == nil && job.CancelRequested {
			cancelled = true
		}
		if err == nil && job.Status.Terminal() {
			return pkgerr.ErrCancelled
		}
	}
	if !cancelled {
		return nil
	}
	r.appendLog("info", "job cancelled")
	now := time.Now().UTC()
	ok, err := r.o.jobs.UpdateFieldsUnlessStatus(r.dbc, r.jobID, terminalStatuses, map[string]interface{}{
		"status":      domain.StatusCancelled,
		"finished_at": &now,
	})
	if err != nil {
		r.log.Error("failed to mark job cancelled", "error", err)
	}
	if ok {
		r.o.publish(r.jobID, sse.EventJobCancelled, nil)
	}
	return pkgerr.ErrCancelled
}

func (r *jobRun) execute(ctx context.Context) error {
	// License gate: validated before a single byte is transferred. A
	// restricted course fails with exactly one log entry.
	lic, err := r.handler.ValidateLicense(ctx, r.cfg.CourseID)
	if err != nil {
		r.appendLog("error", "license validation failed: "+err.Error())
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("license validation: %w", err))
		return err
	}
	if lic == nil || !lic.CanImport {
		r.appendLog("error", "import blocked: license does not permit redistribution")
		r.o.fail(r.dbc, r.jobID, r.logLines, pkgerr.ErrLicenseRestricted)
		return pkgerr.ErrLicenseRestricted
	}
	for _, w := range lic.Warnings {
		r.appendLog("warn", "license: "+w)
	}

	if err := r.checkCancel(ctx); err != nil {
		return err
	}

	// Download.
	if ok, err := r.transition(domain.StatusDownloading, "downloading course archive"); err != nil || !ok {
		return err
	}
	archiveRef, err := r.handler.Download(ctx, r.cfg, func(done, total int64) {
		if total > 0 {
			r.progress.report(r.dbc, domain.StatusDownloading, float64(done)/float64(total), "", false)
		}
	})
	if err != nil {
		r.appendLog("error", "download failed: "+err.Error())
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("download: %w", err))
		return err
	}
	r.appendLog("info", "download complete")

	if err := r.checkCancel(ctx); err != nil {
		return err
	}

	// Extract.
	if ok, err := r.transition(domain.StatusExtracting, "extracting course content"); err != nil || !ok {
		return err
	}
	course, err := r.handler.Extract(ctx, archiveRef, r.cfg)
	if err != nil {
		r.appendLog("error", "extraction failed: "+err.Error())
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("extract: %w", err))
		return err
	}
	if course == nil || course.Text == "" {
		r.appendLog("error", "extraction produced no content")
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("extract: empty course content"))
		return fmt.Errorf("empty course content")
	}
	// Rights from the validator win over the archive's copy.
	if lic.License != nil {
		course.License = lic.License
	}
	if lic.Attribution != "" {
		course.Attribution = lic.Attribution
	}
	r.appendLog("info", "extraction complete")

	if err := r.checkCancel(ctx); err != nil {
		return err
	}

	// Enrich.
	if ok, err := r.transition(domain.StatusEnriching, "running enrichment stages"); err != nil || !ok {
		return err
	}
	outputs := r.enrich(ctx, course)

	if err := r.checkCancel(ctx); err != nil {
		return err
	}

	// Validate and assemble.
	if ok, err := r.transition(domain.StatusValidating, "validating enriched document"); err != nil || !ok {
		return err
	}
	doc := r.assemble(course, outputs)
	review, warnings := validateDocument(doc, r.cfg.Tunables)
	doc.ReviewList = review
	doc.Warnings = append(doc.Warnings, warnings...)
	for _, w := range warnings {
		r.appendLog("warn", w)
	}

	rawDoc, err := json.Marshal(doc)
	if err != nil {
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("marshal document: %w", err))
		return err
	}
	row := &domain.CurriculumDoc{
		ID:       uuid.New(),
		SourceID: r.cfg.SourceID,
		CourseID: r.cfg.CourseID,
		Title:    doc.Title,
		JobID:    r.jobID,
		Document: datatypes.JSON(rawDoc),
	}
	if err := r.o.docs.Create(r.dbc, row); err != nil {
		r.o.fail(r.dbc, r.jobID, r.logLines, fmt.Errorf("persist document: %w", err))
		return err
	}

	result, _ := json.Marshal(map[string]any{
		"document_id": row.ID,
		"segments":    len(doc.Segments),
		"objectives":  len(doc.Objectives),
		"assessments": len(doc.Assessments),
		"review":      len(doc.ReviewList),
	})
	now := time.Now().UTC()
	r.appendLog("info", "import complete")
	ok, err := r.o.jobs.UpdateFieldsUnlessStatus(r.dbc, r.jobID, terminalStatuses, map[string]interface{}{
		"status":      domain.StatusComplete,
		"progress":    100,
		"result":      datatypes.JSON(result),
		"finished_at": &now,
	})
	if err != nil {
		return err
	}
	if ok {
		r.o.publish(r.jobID, sse.EventJobCompleted, map[string]any{"document_id": row.ID})
	}
	return nil
}

// enrich runs the seven stages with fault isolation: each failure marks its
// stage failed, logs, and lets the remaining stages run on whatever inputs
// exist.
func (r *jobRun) enrich(ctx context.Context, course *ExtractedCourse) *enrichOutputs {
	out := &enrichOutputs{}
	toggles := r.cfg.Stages
	total := 7
	done := 0

	step := func(name string, enabled bool, fn func() error) {
		// Cancellation is re-checked before every sub-stage: once it is
		// requested, no further stage runs and no further provider call is
		// issued.
		if r.cancelled {
			return
		}
		if err := r.checkCancel(ctx); err != nil {
			r.cancelled = true
			return
		}
		_, span := tracer.Start(ctx, "import.stage."+name,
			trace.WithAttributes(attribute.Bool("enabled", enabled)))
		defer span.End()
		state := domain.StageState{Name: name, Status: domain.StageRunning}
		switch {
		case !enabled:
			state.Status = domain.StageSkipped
		default:
			if err := fn(); err != nil {
				span.RecordError(err)
				state.Status = domain.StageFailed
				state.Error = err.Error()
				r.appendLog("warn", name+" stage failed: "+err.Error())
				out.stageErrors = append(out.stageErrors, name+": "+err.Error())
			} else {
				state.Status = domain.StageComplete
				state.Progress = 100
			}
		}
		done++
		r.stages = append(r.stages, state)
		r.writeStages()
		r.progress.report(r.dbc, domain.StatusEnriching, float64(done)/float64(total), name, true)
	}

	step("analyze", toggles.Analyze, func() error {
		res, err := analyzer.Analyze(ctx, analyzer.Deps{Log: r.o.log, AI: r.o.ai}, analyzer.Input{
			Text:          course.Text,
			Audience:      r.cfg.Audience,
			DefaultTarget: r.cfg.Tunables.SegmentTargetWords,
		})
		if err != nil {
			return err
		}
		out.analysis = res
		return nil
	})

	step("infer_structure", toggles.InferStructure, func() error {
		var tpl *structure.DomainTemplate
		if r.cfg.DomainTemplate != "" && r.o.templateDir != "" {
			t, err := structure.LoadTemplate(r.o.templateDir, r.cfg.DomainTemplate)
			if err != nil {
				r.appendLog("warn", "domain template unavailable: "+err.Error())
			} else {
				tpl = t
			}
		}
		res, err := structure.Infer(ctx, structure.Deps{Log: r.o.log, AI: r.o.ai, Template: tpl}, structure.Input{
			Text:     course.Text,
			Analysis: out.analysis,
			Hints:    course.Hints,
			Tunables: r.cfg.Tunables,
			Audience: r.cfg.Audience,
		})
		if err != nil {
			return err
		}
		out.structure = res
		return nil
	})

	step("segment", toggles.Segment, func() error {
		var roots []*domain.StructureNode
		if out.structure != nil {
			roots = out.structure.Roots
		}
		var signals segment.SignalBackend
		if r.o.ai != nil {
			signals = segment.NewEmbeddingBackend(r.o.ai)
		}
		segs, err := segment.Segment(ctx, segment.Deps{Log: r.o.log, Signals: signals}, segment.Input{
			Text:              course.Text,
			Roots:             roots,
			Tunables:          r.cfg.Tunables,
			CreateCheckpoints: r.cfg.CreateCheckpoints,
		})
		if err != nil {
			return err
		}
		out.segments = segs
		return nil
	})

	step("generate_objectives", toggles.GenerateObjectives, func() error {
		targets := map[string]int{}
		for _, b := range r.cfg.BloomTargets {
			targets[string(b)]++
		}
		var roots []*domain.StructureNode
		if out.structure != nil {
			roots = out.structure.Roots
		}
		objs, err := objectives.Extract(ctx, objectives.Deps{Log: r.o.log, AI: r.o.ai}, objectives.Input{
			Text:         course.Text,
			Roots:        roots,
			Segments:     out.segments,
			BloomTargets: targets,
			Tunables:     r.cfg.Tunables,
			Audience:     r.cfg.Audience,
			Standards:    r.o.standards,
		})
		if err != nil {
			return err
		}
		out.objectives = objs
		return nil
	})

	step("generate_assessments", toggles.GenerateAssessments, func() error {
		if len(out.segments) == 0 {
			return fmt.Errorf("no segments to generate from")
		}
		items, err := assessment.Generate(ctx, assessment.Deps{Log: r.o.log, AI: r.o.ai}, assessment.Input{
			Segments:   out.segments,
			Objectives: out.objectives,
			Tunables:   r.cfg.Tunables,
			Audience:   r.cfg.Audience,
		})
		if err != nil {
			return err
		}
		out.assessments = items
		return nil
	})

	step("enhance_tutoring", toggles.EnhanceTutoring, func() error {
		if len(out.segments) == 0 {
			return fmt.Errorf("no segments to enhance")
		}
		enh, err := tutoring.Enhance(ctx, tutoring.Deps{Log: r.o.log, AI: r.o.ai, Symbols: r.o.symbols}, tutoring.Input{
			Segments:       out.segments,
			Spoken:         r.cfg.GenerateSpokenText,
			Glossary:       r.cfg.GenerateGlossary,
			Alternatives:   r.cfg.GenerateAlternatives,
			Misconceptions: r.cfg.GenerateMisconceptions,
			Audience:       r.cfg.Audience,
		})
		if err != nil {
			return err
		}
		out.tutoring = enh
		return nil
	})

	step("build_knowledge_graph", toggles.BuildKnowledgeGraph, func() error {
		var roots []*domain.StructureNode
		if out.structure != nil {
			roots = out.structure.Roots
		}
		g, err := kgraph.Build(ctx, kgraph.Deps{Log: r.o.log, AI: r.o.ai, Entities: r.o.entities}, kgraph.Input{
			Roots:       roots,
			Segments:    out.segments,
			Assessments: out.assessments,
			Tunables:    r.cfg.Tunables,
		})
		if err != nil {
			return err
		}
		out.graph = g
		if r.o.graphDB != nil {
			if err := kgraph.Sync(ctx, r.o.graphDB, r.jobID.String(), g); err != nil {
				r.appendLog("warn", "graph sync failed: "+err.Error())
			}
		}
		return nil
	})

	return out
}

type enrichOutputs struct {
	analysis    *domain.ContentAnalysis
	structure   *domain.StructureResult
	segments    []domain.Segment
	objectives  []domain.LearningObjective
	assessments []domain.GeneratedAssessment
	tutoring    *domain.TutoringEnhancements
	graph       *domain.KnowledgeGraph
	stageErrors []string
}
