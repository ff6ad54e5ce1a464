package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/pkg/dbctx"
	pkgerr "github.com/yungbote/curricula-backend/internal/pkg/errors"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// ---------------- in-memory repos ----------------

type memJobRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.ImportJob
	// statusTrail records every status written, in order.
	statusTrail []domain.ImportStatus
	// progressTrail records every progress write, in order.
	progressTrail []int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{rows: map[uuid.UUID]*domain.ImportJob{}}
}

func (m *memJobRepo) Create(_ dbctx.Context, job *domain.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	cp := *job
	m.rows[job.ID] = &cp
	return nil
}

func (m *memJobRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, pkgerr.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memJobRepo) List(_ dbctx.Context, status domain.ImportStatus, limit, offset int) ([]*domain.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ImportJob
	for _, row := range m.rows {
		if status != "" && row.Status != status {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memJobRepo) apply(row *domain.ImportJob, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			row.Status = v.(domain.ImportStatus)
			m.statusTrail = append(m.statusTrail, row.Status)
		case "stage":
			row.Stage = v.(string)
		case "progress":
			row.Progress = v.(int)
			m.progressTrail = append(m.progressTrail, row.Progress)
		case "message":
			row.Message = v.(string)
		case "error":
			row.Error = v.(string)
		case "config":
			row.Config = v.(datatypes.JSON)
		case "stages":
			row.Stages = v.(datatypes.JSON)
		case "log":
			row.Log = v.(datatypes.JSON)
		case "result":
			row.Result = v.(datatypes.JSON)
		case "cancel_requested":
			row.CancelRequested = v.(bool)
		case "started_at":
			row.StartedAt = v.(*time.Time)
		case "finished_at":
			row.FinishedAt = v.(*time.Time)
		case "heartbeat_at":
			row.HeartbeatAt = v.(*time.Time)
		}
	}
	row.UpdatedAt = time.Now().UTC()
}

func (m *memJobRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return pkgerr.ErrNotFound
	}
	m.apply(row, updates)
	return nil
}

func (m *memJobRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowed []domain.ImportStatus, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return false, pkgerr.ErrNotFound
	}
	for _, s := range disallowed {
		if row.Status == s {
			return false, nil
		}
	}
	m.apply(row, updates)
	return true, nil
}

func (m *memJobRepo) RequestCancel(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return m.UpdateFieldsUnlessStatus(dbc, id, terminalStatuses,
		map[string]interface{}{"cancel_requested": true})
}

func (m *memJobRepo) Heartbeat(_ dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return m.UpdateFields(dbctx.Context{}, id, map[string]interface{}{"heartbeat_at": &now})
}

func (m *memJobRepo) DeleteFinishedBefore(_ dbctx.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, row := range m.rows {
		if row.FinishedAt != nil && row.FinishedAt.Before(cutoff) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type memDocRepo struct {
	mu   sync.Mutex
	rows []*domain.CurriculumDoc
}

func (m *memDocRepo) Create(_ dbctx.Context, doc *domain.CurriculumDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memDocRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.CurriculumDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, pkgerr.ErrNotFound
}

func (m *memDocRepo) GetByJobID(_ dbctx.Context, jobID uuid.UUID) (*domain.CurriculumDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.JobID == jobID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, pkgerr.ErrNotFound
}

func (m *memDocRepo) List(_ dbctx.Context, sourceID string, limit, offset int) ([]*domain.CurriculumDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.CurriculumDoc
	for _, row := range m.rows {
		if sourceID != "" && row.SourceID != sourceID {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memDocRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return pkgerr.ErrNotFound
}

// ---------------- scripted source handler ----------------

type fakeHandler struct {
	lic         *domain.LicenseValidationResult
	licErr      error
	course      *ExtractedCourse
	downloadErr error
	extractErr  error
	// onDownload runs mid-download, between the license gate and extract.
	onDownload func()
	downloaded bool
}

func (f *fakeHandler) Source() domain.CurriculumSource {
	return domain.CurriculumSource{ID: "test", Name: "Test Source"}
}

func (f *fakeHandler) ListCourses(context.Context, int, int) ([]domain.CourseCatalogEntry, int, error) {
	return nil, 0, nil
}

func (f *fakeHandler) SearchCourses(context.Context, string) ([]domain.CourseCatalogEntry, error) {
	return nil, nil
}

func (f *fakeHandler) GetCourse(context.Context, string) (*domain.CourseDetail, error) {
	return nil, pkgerr.ErrNotFound
}

func (f *fakeHandler) ValidateLicense(context.Context, string) (*domain.LicenseValidationResult, error) {
	return f.lic, f.licErr
}

func (f *fakeHandler) Download(_ context.Context, _ domain.ImportConfig, report func(done, total int64)) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	if report != nil {
		report(50, 100)
		report(100, 100)
	}
	if f.onDownload != nil {
		f.onDownload()
	}
	f.downloaded = true
	return "archive://test", nil
}

func (f *fakeHandler) Extract(context.Context, string, domain.ImportConfig) (*ExtractedCourse, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.course, nil
}

// ---------------- fixtures ----------------

func openLicense() *domain.LicenseValidationResult {
	return &domain.LicenseValidationResult{
		CanImport: true,
		License: &domain.LicenseInfo{
			Name:                 "CC BY-NC-SA 4.0",
			AllowsRedistribution: true,
			RequiresAttribution:  true,
		},
		Attribution: "Test University OpenCourseWare",
	}
}

func sampleCourse() *ExtractedCourse {
	var b strings.Builder
	b.WriteString("# Cell Biology\n\n")
	b.WriteString("By the end of this module, students will be able to describe the structure of the cell membrane.\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "Osmosis is defined as the diffusion of water across a membrane, case %d of the survey. ", i)
		fmt.Fprintf(&b, "The gradient in example %d drives water toward the concentrated side over time. ", i)
	}
	b.WriteString("\n\n# Energy\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "Photosynthesis converts light energy into chemical energy in observation number %d. ", i)
		fmt.Fprintf(&b, "For example, chloroplasts in study %d capture photons and store the yield as sugar. ", i)
	}
	return &ExtractedCourse{
		Title: "Introductory Cell Biology",
		Text:  b.String(),
	}
}

func newTestOrchestrator(t *testing.T, h SourceHandler) (*Orchestrator, *memJobRepo, *memDocRepo) {
	t.Helper()
	jobs := newMemJobRepo()
	docs := &memDocRepo{}
	o, err := New(Deps{
		Log:      testLogger(t),
		Jobs:     jobs,
		Docs:     docs,
		Handlers: map[string]SourceHandler{"test": h},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, jobs, docs
}

func queueJob(t *testing.T, o *Orchestrator) uuid.UUID {
	t.Helper()
	job, err := o.CreateJob(context.Background(), domain.ImportConfig{
		SourceID: "test",
		CourseID: "bio-101",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job.ID
}

// ---------------- tests ----------------

func TestRunCompletesAndPersistsDocument(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, docs := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, err := jobs.GetByID(dbctx.Context{}, jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.StatusComplete {
		t.Fatalf("status = %s, want complete (error: %s)", job.Status, job.Error)
	}
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if job.FinishedAt == nil {
		t.Fatalf("finished_at not set")
	}

	row, err := docs.GetByJobID(dbctx.Context{}, jobID)
	if err != nil {
		t.Fatalf("document not persisted: %v", err)
	}
	var doc domain.CurriculumDocument
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.Title != "Introductory Cell Biology" {
		t.Fatalf("title = %q", doc.Title)
	}
	if len(doc.Segments) == 0 {
		t.Fatalf("expected segments in assembled document")
	}
	if doc.Rights == nil || doc.Rights.Name != "CC BY-NC-SA 4.0" {
		t.Fatalf("rights not passed through: %+v", doc.Rights)
	}
	if doc.Attribution != "Test University OpenCourseWare" {
		t.Fatalf("attribution = %q", doc.Attribution)
	}
}

func TestRunTraversesStatesInOrder(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []domain.ImportStatus{
		domain.StatusDownloading,
		domain.StatusExtracting,
		domain.StatusEnriching,
		domain.StatusValidating,
		domain.StatusComplete,
	}
	got := jobs.statusTrail
	if len(got) != len(want) {
		t.Fatalf("status trail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status trail[%d] = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
	terminal := 0
	for _, s := range got {
		if s.Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("wrote %d terminal statuses, want exactly 1", terminal)
	}
}

func TestRunProgressIsMonotone(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	trail := jobs.progressTrail
	if len(trail) == 0 {
		t.Fatalf("no progress writes recorded")
	}
	for i := 1; i < len(trail); i++ {
		if trail[i] < trail[i-1] {
			t.Fatalf("progress regressed at %d: %v", i, trail)
		}
	}
	if trail[len(trail)-1] != 100 {
		t.Fatalf("final progress = %d, want 100", trail[len(trail)-1])
	}
}

func TestRunLicenseBlockedFailsBeforeDownload(t *testing.T) {
	h := &fakeHandler{
		lic:    &domain.LicenseValidationResult{CanImport: false},
		course: sampleCourse(),
	}
	o, jobs, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := jobs.GetByID(dbctx.Context{}, jobID)
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if h.downloaded {
		t.Fatalf("download ran despite blocked license")
	}
	var lines []domain.LogEntry
	if err := json.Unmarshal(job.Log, &lines); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("log has %d entries, want exactly 1: %+v", len(lines), lines)
	}
	if !strings.Contains(lines[0].Message, "license") {
		t.Fatalf("log entry does not mention license: %q", lines[0].Message)
	}
}

func TestRunDownloadFailureIsTerminal(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), downloadErr: errors.New("connection reset")}
	o, jobs, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, _ := jobs.GetByID(dbctx.Context{}, jobID)
	if job.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "connection reset") {
		t.Fatalf("error = %q", job.Error)
	}
	if job.FinishedAt == nil {
		t.Fatalf("finished_at not set on failure")
	}
}

func TestRunCancellationRequestedDuringDownload(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, docs := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	// Flip the cancel flag while the download is in flight; the next stage
	// boundary must observe it.
	h.onDownload = func() {
		if _, err := o.Cancel(context.Background(), jobID); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := jobs.GetByID(dbctx.Context{}, jobID)
	if job.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	if list, _ := docs.List(dbctx.Context{}, "", 0, 0); len(list) != 0 {
		t.Fatalf("cancelled job persisted a document")
	}
}

func TestCancelRefusedOnTerminalJob(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ok, err := o.Cancel(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if ok {
		t.Fatalf("cancel accepted on completed job")
	}
	job, _ := jobs.GetByID(dbctx.Context{}, jobID)
	if job.Status != domain.StatusComplete {
		t.Fatalf("terminal status mutated to %s", job.Status)
	}
}

func TestRunStageFailureDegradesInsteadOfFailing(t *testing.T) {
	// No segments means assessment and tutoring fail their preconditions,
	// but the job itself must still complete.
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, jobs, _ := newTestOrchestrator(t, h)

	job, err := o.CreateJob(context.Background(), domain.ImportConfig{
		SourceID: "test",
		CourseID: "bio-101",
		Stages: domain.StageToggles{
			Analyze:             true,
			InferStructure:      true,
			Segment:             false, // downstream stages lose their input
			GenerateObjectives:  true,
			GenerateAssessments: true,
			EnhanceTutoring:     true,
			BuildKnowledgeGraph: true,
		},
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if err := o.Run(context.Background(), job.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	row, _ := jobs.GetByID(dbctx.Context{}, job.ID)
	if row.Status != domain.StatusComplete {
		t.Fatalf("status = %s, want complete (error: %s)", row.Status, row.Error)
	}

	var stages []domain.StageState
	if err := json.Unmarshal(row.Stages, &stages); err != nil {
		t.Fatalf("unmarshal stages: %v", err)
	}
	byName := map[string]domain.StageState{}
	for _, s := range stages {
		byName[s.Name] = s
	}
	if byName["segment"].Status != domain.StageSkipped {
		t.Fatalf("segment stage = %s, want skipped", byName["segment"].Status)
	}
	if byName["generate_assessments"].Status != domain.StageFailed {
		t.Fatalf("assessments stage = %s, want failed", byName["generate_assessments"].Status)
	}
	if byName["analyze"].Status != domain.StageComplete {
		t.Fatalf("analyze stage = %s, want complete", byName["analyze"].Status)
	}
}

func TestRunRejectsNonQueuedJob(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	o, _, _ := newTestOrchestrator(t, h)
	jobID := queueJob(t, o)

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := o.Run(context.Background(), jobID); err == nil {
		t.Fatalf("second Run accepted a completed job")
	}
}

func TestCreateJobRejectsUnknownSource(t *testing.T) {
	h := &fakeHandler{lic: openLicense()}
	o, _, _ := newTestOrchestrator(t, h)
	_, err := o.CreateJob(context.Background(), domain.ImportConfig{SourceID: "nope", CourseID: "x"})
	if !errors.Is(err, pkgerr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestDeleteFinishedBeforePrunesOnlyTerminalRows(t *testing.T) {
	jobs := newMemJobRepo()
	old := time.Now().UTC().Add(-48 * time.Hour)
	done := &domain.ImportJob{ID: uuid.New(), Status: domain.StatusComplete, FinishedAt: &old}
	live := &domain.ImportJob{ID: uuid.New(), Status: domain.StatusEnriching}
	_ = jobs.Create(dbctx.Context{}, done)
	_ = jobs.Create(dbctx.Context{}, live)

	n, err := jobs.DeleteFinishedBefore(dbctx.Context{}, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d rows, want 1", n)
	}
	if _, err := jobs.GetByID(dbctx.Context{}, live.ID); err != nil {
		t.Fatalf("running job pruned: %v", err)
	}
}

// cancellingAI flips the job's cancel flag during its first call and counts
// every generative/embedding call issued after that point.
type cancellingAI struct {
	mu          sync.Mutex
	cancel      func()
	requested   bool
	afterCancel int
}

func (a *cancellingAI) note() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.requested {
		a.afterCancel++
		return
	}
	a.requested = true
	a.cancel()
}

func (a *cancellingAI) GenerateText(context.Context, string, string) (string, error) {
	a.note()
	return "", errors.New("provider interrupted")
}
func (a *cancellingAI) GenerateJSON(context.Context, string, string, string, map[string]any) (map[string]any, error) {
	a.note()
	return nil, errors.New("provider interrupted")
}
func (a *cancellingAI) Embed(context.Context, []string) ([][]float32, error) {
	a.note()
	return nil, errors.New("provider interrupted")
}

func TestRunCancelDuringEnrichStopsProviderCalls(t *testing.T) {
	h := &fakeHandler{lic: openLicense(), course: sampleCourse()}
	jobs := newMemJobRepo()
	docs := &memDocRepo{}
	ai := &cancellingAI{}
	o, err := New(Deps{
		Log:      testLogger(t),
		Jobs:     jobs,
		Docs:     docs,
		Handlers: map[string]SourceHandler{"test": h},
		AI:       ai,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	jobID := queueJob(t, o)
	ai.cancel = func() {
		if _, err := o.Cancel(context.Background(), jobID); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	if err := o.Run(context.Background(), jobID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := jobs.GetByID(dbctx.Context{}, jobID)
	if job.Status != domain.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	ai.mu.Lock()
	after := ai.afterCancel
	ai.mu.Unlock()
	if after != 0 {
		t.Fatalf("%d provider calls issued after cancellation was requested", after)
	}
	if list, _ := docs.List(dbctx.Context{}, "", 0, 0); len(list) != 0 {
		t.Fatalf("cancelled job persisted a document")
	}
}
