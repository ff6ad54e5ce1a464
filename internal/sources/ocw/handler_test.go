package ocw

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/curricula-backend/internal/domain"
	"github.com/yungbote/curricula-backend/internal/platform/logger"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func courseArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	pages := map[string]string{
		"lecture-1/page.html":           "<html><body><h1>Membranes</h1><p>Osmosis is the diffusion of water.</p><script>ignored()</script></body></html>",
		"lecture-1/notes.md":            "## Notes\nWater crosses the membrane toward solutes.",
		"lecture-2/page.html":           "<p>Photosynthesis converts light into sugar.</p>",
		"lecture-2/exam-1.html":         "<p>Exam question: define osmosis.</p>",
		"lecture-2/transcript-full.txt": "spoken transcript text",
		"assets/logo.png":               "binarydata",
	}
	for name, body := range pages {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestHandler(t *testing.T) (*Handler, *memStore, *httptest.Server) {
	t.Helper()
	log, err := logger.New("dev")
	require.NoError(t, err)

	archive := courseArchive(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/courses.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"courses":[
			{"id":"bio-101","title":"Cell Biology","subject":"Biology","level":"Undergraduate",
			 "archive_url":%q,"size_bytes":%d,"license":"cc-by-nc-sa"},
			{"id":"law-900","title":"Restricted Seminar","subject":"Law","restricted":true},
			{"id":"art-200","title":"Gallery Survey","subject":"Art","license":"all-rights-reserved"}
		]}`, "SERVER/courses/bio-101/archive.zip", len(archive))
	})
	mux.HandleFunc("/courses/bio-101/archive.zip", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := newMemStore()
	h, err := New(log, store, Config{BaseURL: srv.URL, RequestsPerSecond: 100})
	require.NoError(t, err)

	// The catalog embeds absolute archive URLs; rewrite the placeholder now
	// that the test server address is known.
	courses, err := h.loadCatalog(context.Background())
	require.NoError(t, err)
	for i := range courses {
		courses[i].ArchiveURL = strings.Replace(courses[i].ArchiveURL, "SERVER", srv.URL, 1)
	}
	return h, store, srv
}

func TestCatalogAndSearch(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	entries, total, err := h.ListCourses(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, entries, 2)

	hits, err := h.SearchCourses(ctx, "biology")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "bio-101", hits[0].ID)

	detail, err := h.GetCourse(ctx, "bio-101")
	require.NoError(t, err)
	require.Equal(t, "Cell Biology", detail.Title)
	require.NotNil(t, detail.License)
}

func TestValidateLicenseGate(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()

	open, err := h.ValidateLicense(ctx, "bio-101")
	require.NoError(t, err)
	require.True(t, open.CanImport)
	require.Contains(t, open.Attribution, "Cell Biology")
	require.Contains(t, open.Attribution, "CC BY-NC-SA")

	blocked, err := h.ValidateLicense(ctx, "law-900")
	require.NoError(t, err)
	require.False(t, blocked.CanImport)

	unknown, err := h.ValidateLicense(ctx, "art-200")
	require.NoError(t, err)
	require.False(t, unknown.CanImport, "unrecognized licenses must block import")
}

func TestDownloadStoresArchiveWithProgress(t *testing.T) {
	h, store, _ := newTestHandler(t)
	ctx := context.Background()

	var last, total int64
	key, err := h.Download(ctx, domain.ImportConfig{SourceID: "ocw", CourseID: "bio-101"},
		func(d, tot int64) { last, total = d, tot })
	require.NoError(t, err)
	require.Equal(t, "ocw/bio-101/archive.zip", key)
	require.Greater(t, total, int64(0))
	require.Equal(t, total, last, "progress must end at the full byte count")

	store.mu.Lock()
	_, ok := store.data[key]
	store.mu.Unlock()
	require.True(t, ok, "archive not persisted")
}

func TestExtractHonorsSelectionFlags(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()
	cfg := domain.ImportConfig{SourceID: "ocw", CourseID: "bio-101", IncludeLectureNotes: true}
	cfg.Normalize()

	key, err := h.Download(ctx, cfg, nil)
	require.NoError(t, err)

	course, err := h.Extract(ctx, key, cfg)
	require.NoError(t, err)
	require.Equal(t, "Cell Biology", course.Title)
	require.Contains(t, course.Text, "Osmosis is the diffusion of water")
	require.Contains(t, course.Text, "Photosynthesis converts light")
	require.NotContains(t, course.Text, "ignored()", "script bodies must be stripped")
	require.NotContains(t, course.Text, "Exam question", "exams excluded by default")
	require.NotContains(t, course.Text, "spoken transcript", "transcripts excluded by default")

	require.Len(t, course.Hints, 2)
	require.Equal(t, "Lecture 1", course.Hints[0].Title)
	for _, hint := range course.Hints {
		require.LessOrEqual(t, hint.Span.End, len(course.Text)+2)
		require.Less(t, hint.Span.Start, hint.Span.End)
	}
}

func TestExtractIncludesExamsWhenEnabled(t *testing.T) {
	h, _, _ := newTestHandler(t)
	ctx := context.Background()
	cfg := domain.ImportConfig{SourceID: "ocw", CourseID: "bio-101",
		IncludeExams: true, IncludeTranscripts: true}
	cfg.Normalize()

	key, err := h.Download(ctx, cfg, nil)
	require.NoError(t, err)
	course, err := h.Extract(ctx, key, cfg)
	require.NoError(t, err)
	require.Contains(t, course.Text, "Exam question")
	require.Contains(t, course.Text, "spoken transcript")
}
