// Package ocw implements a source handler for OpenCourseWare-style sites:
// a JSON course catalog plus per-course ZIP archives of HTML/markdown pages.
package ocw

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/importer"
	pkgerr "github.com/yungbote/curricula-backend/internal/pkg/errors"
	"github.com/yungbote/curricula-backend/internal/pkg/httpx"
	"github.com/yungbote/curricula-backend/internal/platform/bucket"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

const (
	catalogPath = "/api/courses.json"
	maxAttempts = 4
	catalogTTL  = 10 * time.Minute
)

type Handler struct {
	log      *logger.Logger
	http     *http.Client
	archives bucket.Store
	baseURL  string
	limiter  *rate.Limiter

	mu        sync.Mutex
	catalog   []catalogCourse
	fetchedAt time.Time
}

type Config struct {
	BaseURL string
	// RequestsPerSecond throttles catalog and download traffic; OCW mirrors
	// rate-limit aggressively.
	RequestsPerSecond float64
}

func New(log *logger.Logger, archives bucket.Store, cfg Config) (*Handler, error) {
	if log == nil {
		return nil, fmt.Errorf("ocw: logger required")
	}
	if archives == nil {
		return nil, fmt.Errorf("ocw: archive store required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ocw: base url required")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Handler{
		log:      log.With("source", "ocw"),
		http:     &http.Client{Timeout: 5 * time.Minute},
		archives: archives,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (h *Handler) Source() domain.CurriculumSource {
	return domain.CurriculumSource{
		ID:      "ocw",
		Name:    "OpenCourseWare",
		BaseURL: h.baseURL,
		Notes:   "Open courseware archives published under Creative Commons licenses.",
	}
}

// catalogCourse is the upstream catalog row shape.
type catalogCourse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Subject     string   `json:"subject"`
	Level       string   `json:"level"`
	Features    []string `json:"features"`
	Description string   `json:"description"`
	Lectures    []string `json:"lectures"`
	ArchiveURL  string   `json:"archive_url"`
	SizeBytes   int64    `json:"size_bytes"`
	License     string   `json:"license"`
	Restricted  bool     `json:"restricted"`
}

func (h *Handler) loadCatalog(ctx context.Context) ([]catalogCourse, error) {
	h.mu.Lock()
	if h.catalog != nil && time.Since(h.fetchedAt) < catalogTTL {
		out := h.catalog
		h.mu.Unlock()
		return out, nil
	}
	h.mu.Unlock()

	body, err := h.getWithRetry(ctx, h.baseURL+catalogPath)
	if err != nil {
		return nil, fmt.Errorf("ocw: fetch catalog: %w", err)
	}
	defer body.Close()

	var payload struct {
		Courses []catalogCourse `json:"courses"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ocw: decode catalog: %w", err)
	}
	sort.Slice(payload.Courses, func(i, j int) bool { return payload.Courses[i].ID < payload.Courses[j].ID })

	h.mu.Lock()
	h.catalog = payload.Courses
	h.fetchedAt = time.Now()
	h.mu.Unlock()
	return payload.Courses, nil
}

func (h *Handler) ListCourses(ctx context.Context, page, pageSize int) ([]domain.CourseCatalogEntry, int, error) {
	courses, err := h.loadCatalog(ctx)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(courses) {
		return nil, len(courses), nil
	}
	end := start + pageSize
	if end > len(courses) {
		end = len(courses)
	}
	out := make([]domain.CourseCatalogEntry, 0, end-start)
	for _, c := range courses[start:end] {
		out = append(out, toEntry(c))
	}
	return out, len(courses), nil
}

func (h *Handler) SearchCourses(ctx context.Context, query string) ([]domain.CourseCatalogEntry, error) {
	courses, err := h.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.CourseCatalogEntry
	for _, c := range courses {
		if q == "" ||
			strings.Contains(strings.ToLower(c.Title), q) ||
			strings.Contains(strings.ToLower(c.Subject), q) ||
			strings.Contains(strings.ToLower(c.ID), q) {
			out = append(out, toEntry(c))
		}
	}
	return out, nil
}

func (h *Handler) GetCourse(ctx context.Context, courseID string) (*domain.CourseDetail, error) {
	c, err := h.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lic := licenseByName(c.License)
	return &domain.CourseDetail{
		CourseCatalogEntry: toEntry(*c),
		Description:        c.Description,
		Lectures:           c.Lectures,
		License:            &lic,
		DownloadSize:       humanSize(c.SizeBytes),
	}, nil
}

// ValidateLicense is the import gate. Restricted catalog rows and licenses
// that forbid redistribution both block the import.
func (h *Handler) ValidateLicense(ctx context.Context, courseID string) (*domain.LicenseValidationResult, error) {
	c, err := h.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	lic := licenseByName(c.License)
	if c.Restricted || !lic.AllowsRedistribution {
		return &domain.LicenseValidationResult{
			CanImport: false,
			License:   &lic,
			Warnings:  []string{"course is marked restricted by the publisher"},
		}, nil
	}
	res := &domain.LicenseValidationResult{
		CanImport:   true,
		License:     &lic,
		Attribution: fmt.Sprintf("%s. %s. License: %s.", c.Title, h.Source().Name, lic.Name),
	}
	if !lic.AllowsModification {
		res.Warnings = append(res.Warnings, "license forbids modification; enriched output must retain original wording")
	}
	return res, nil
}

func (h *Handler) Download(ctx context.Context, cfg domain.ImportConfig, report func(done, total int64)) (string, error) {
	c, err := h.findCourse(ctx, cfg.CourseID)
	if err != nil {
		return "", err
	}
	url := c.ArchiveURL
	if url == "" {
		url = fmt.Sprintf("%s/courses/%s/archive.zip", h.baseURL, c.ID)
	}
	body, err := h.getWithRetry(ctx, url)
	if err != nil {
		return "", fmt.Errorf("ocw: download %s: %w", c.ID, err)
	}
	defer body.Close()

	key := path.Join("ocw", c.ID, "archive.zip")
	r := io.Reader(body)
	if report != nil && c.SizeBytes > 0 {
		r = &progressReader{r: body, total: c.SizeBytes, report: report}
	}
	if err := h.archives.Put(ctx, key, r); err != nil {
		return "", fmt.Errorf("ocw: store archive: %w", err)
	}
	return key, nil
}

// Extract reads the stored ZIP and flattens the selected page types into one
// plain-text document, recording a structure hint per lecture directory.
func (h *Handler) Extract(ctx context.Context, archiveRef string, cfg domain.ImportConfig) (*importer.ExtractedCourse, error) {
	rc, err := h.archives.Get(ctx, archiveRef)
	if err != nil {
		return nil, fmt.Errorf("ocw: read archive: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("ocw: read archive: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("ocw: open archive: %w", err)
	}

	files := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !wantFile(f.Name, cfg) {
			continue
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	if len(files) == 0 {
		return nil, fmt.Errorf("ocw: archive %s has no importable pages", archiveRef)
	}

	course := &importer.ExtractedCourse{}
	var b strings.Builder
	var currentDir string
	var currentHint *domain.StructureNode
	hintIdx := 0

	for _, f := range files {
		fr, err := f.Open()
		if err != nil {
			course.Warnings = append(course.Warnings, fmt.Sprintf("skipped unreadable page %s", f.Name))
			continue
		}
		page, err := io.ReadAll(fr)
		fr.Close()
		if err != nil {
			course.Warnings = append(course.Warnings, fmt.Sprintf("skipped unreadable page %s", f.Name))
			continue
		}
		text := pageText(f.Name, page)
		if strings.TrimSpace(text) == "" {
			continue
		}

		dir := topDir(f.Name)
		if dir != currentDir {
			if currentHint != nil {
				currentHint.Span.End = b.Len()
				course.Hints = append(course.Hints, currentHint)
			}
			currentDir = dir
			hintIdx++
			currentHint = &domain.StructureNode{
				ID:         fmt.Sprintf("hint-%d", hintIdx),
				Title:      titleFromDir(dir),
				Type:       domain.NodeModule,
				Level:      0,
				Span:       domain.Span{Start: b.Len()},
				Confidence: 0.9,
				Method:     domain.InferenceExplicit,
				Rationale:  []string{"archive directory " + dir},
			}
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if currentHint != nil {
		currentHint.Span.End = b.Len()
		course.Hints = append(course.Hints, currentHint)
	}

	course.Text = b.String()
	if strings.TrimSpace(course.Text) == "" {
		return nil, fmt.Errorf("ocw: archive %s produced no text", archiveRef)
	}
	if c, err := h.findCourse(ctx, cfg.CourseID); err == nil {
		course.Title = c.Title
	}
	return course, nil
}

// ---------------- fetch plumbing ----------------

func (h *Handler) getWithRetry(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := h.http.Do(req)
		if err != nil {
			lastErr = err
			if !httpx.IsRetryableError(err) {
				return nil, err
			}
		} else if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", pkgerr.ErrNotFound, url)
			}
			if !httpx.IsRetryableHTTPStatus(resp.StatusCode) {
				return nil, lastErr
			}
			wait := httpx.RetryAfterDuration(resp, time.Second<<attempt, 30*time.Second)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(httpx.JitterSleep(wait)):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(httpx.JitterSleep(time.Second << attempt)):
		}
	}
	return nil, lastErr
}

func (h *Handler) findCourse(ctx context.Context, courseID string) (*catalogCourse, error) {
	courses, err := h.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if courses[i].ID == courseID {
			return &courses[i], nil
		}
	}
	return nil, fmt.Errorf("%w: course %q", pkgerr.ErrNotFound, courseID)
}

type progressReader struct {
	r      io.Reader
	done   int64
	total  int64
	report func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.report(p.done, p.total)
	}
	return n, err
}

// ---------------- content selection ----------------

func wantFile(name string, cfg domain.ImportConfig) bool {
	lower := strings.ToLower(name)
	switch {
	case !isTextPage(lower):
		return false
	case strings.Contains(lower, "transcript"):
		return cfg.IncludeTranscripts
	case strings.Contains(lower, "assignment") || strings.Contains(lower, "problem_set"):
		return cfg.IncludeAssignments
	case strings.Contains(lower, "exam") || strings.Contains(lower, "quiz"):
		return cfg.IncludeExams
	case strings.Contains(lower, "lecture-note") || strings.Contains(lower, "lecture_note") || strings.Contains(lower, "notes"):
		return cfg.IncludeLectureNotes
	}
	return true
}

func isTextPage(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm", ".md", ".txt":
		return true
	}
	return false
}

var (
	tagRe    = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>`)
	markupRe = regexp.MustCompile(`<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

// pageText strips markup from an archive page. Markdown and plain text pass
// through unchanged.
func pageText(name string, raw []byte) string {
	s := string(raw)
	ext := strings.ToLower(path.Ext(name))
	if ext != ".html" && ext != ".htm" {
		return strings.TrimSpace(s)
	}
	s = tagRe.ReplaceAllString(s, " ")
	s = markupRe.ReplaceAllStringFunc(s, func(tag string) string {
		t := strings.ToLower(tag)
		if strings.HasPrefix(t, "<p") || strings.HasPrefix(t, "</p") ||
			strings.HasPrefix(t, "<br") || strings.HasPrefix(t, "<div") ||
			strings.HasPrefix(t, "</h") || strings.HasPrefix(t, "<li") {
			return "\n\n"
		}
		return " "
	})
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.Join(strings.Fields(lines[i]), " ")
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func topDir(name string) string {
	parts := strings.Split(path.Clean(name), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func titleFromDir(dir string) string {
	if dir == "" {
		return "Course Content"
	}
	words := strings.FieldsFunc(dir, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func toEntry(c catalogCourse) domain.CourseCatalogEntry {
	return domain.CourseCatalogEntry{
		ID:       c.ID,
		Title:    c.Title,
		Subject:  c.Subject,
		Level:    c.Level,
		Features: c.Features,
	}
}

// licenseByName maps the catalog's short license names onto rights blocks.
// Unknown names get a conservative no-redistribution default.
func licenseByName(name string) domain.LicenseInfo {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cc-by", "cc by":
		return domain.LicenseInfo{Name: "CC BY 4.0", URL: "https://creativecommons.org/licenses/by/4.0/",
			AllowsRedistribution: true, AllowsModification: true, RequiresAttribution: true}
	case "cc-by-sa", "cc by-sa":
		return domain.LicenseInfo{Name: "CC BY-SA 4.0", URL: "https://creativecommons.org/licenses/by-sa/4.0/",
			AllowsRedistribution: true, AllowsModification: true, RequiresAttribution: true}
	case "cc-by-nc", "cc by-nc":
		return domain.LicenseInfo{Name: "CC BY-NC 4.0", URL: "https://creativecommons.org/licenses/by-nc/4.0/",
			AllowsRedistribution: true, AllowsModification: true, RequiresAttribution: true}
	case "cc-by-nc-sa", "cc by-nc-sa", "":
		return domain.LicenseInfo{Name: "CC BY-NC-SA 4.0", URL: "https://creativecommons.org/licenses/by-nc-sa/4.0/",
			AllowsRedistribution: true, AllowsModification: true, RequiresAttribution: true}
	case "cc-by-nc-nd", "cc by-nc-nd":
		return domain.LicenseInfo{Name: "CC BY-NC-ND 4.0", URL: "https://creativecommons.org/licenses/by-nc-nd/4.0/",
			AllowsRedistribution: true, AllowsModification: false, RequiresAttribution: true}
	default:
		return domain.LicenseInfo{Name: name, AllowsRedistribution: false, RequiresAttribution: true,
			Notes: "unrecognized license; import blocked until reviewed"}
	}
}

func humanSize(n int64) string {
	switch {
	case n <= 0:
		return "unknown"
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	case n < 1<<30:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	}
}
