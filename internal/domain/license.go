package domain

// LicenseInfo describes the rights under which content may be imported.
// The pipeline treats it as opaque pass-through: whatever rights block the
// source handler attaches is preserved unmodified into the final document.
type LicenseInfo struct {
	Name                 string `json:"name"`
	URL                  string `json:"url,omitempty"`
	AllowsRedistribution bool   `json:"allows_redistribution"`
	AllowsModification   bool   `json:"allows_modification"`
	RequiresAttribution  bool   `json:"requires_attribution"`
	Notes                string `json:"notes,omitempty"`
}

// LicenseValidationResult is the verdict of the license validator.
type LicenseValidationResult struct {
	CanImport   bool         `json:"can_import"`
	License     *LicenseInfo `json:"license,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
	Attribution string       `json:"attribution"`
}

// CurriculumSource describes one upstream course provider.
type CurriculumSource struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Notes   string `json:"notes,omitempty"`
}

// CourseCatalogEntry is one row of a source's paged catalog.
type CourseCatalogEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Subject  string   `json:"subject,omitempty"`
	Level    string   `json:"level,omitempty"`
	Features []string `json:"features,omitempty"`
}

// CourseDetail is the full record for a single course.
type CourseDetail struct {
	CourseCatalogEntry
	Description  string       `json:"description,omitempty"`
	Lectures     []string     `json:"lectures,omitempty"`
	License      *LicenseInfo `json:"license,omitempty"`
	DownloadSize string       `json:"download_size,omitempty"`
}
