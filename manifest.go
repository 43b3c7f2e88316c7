package cartridge

// Manifest is the archive manifest written to /.cartridge/manifest.json
// (spec.md §6).
type Manifest struct {
	Slug         string                 `json:"slug"`
	Title        string                 `json:"title"`
	Version      string                 `json:"version"`
	Description  string                 `json:"description,omitempty"`
	Author       string                 `json:"author,omitempty"`
	License      string                 `json:"license,omitempty"`
	Created      string                 `json:"created,omitempty"`
	Repository   string                 `json:"repository,omitempty"`
	Dependencies map[string]string      `json:"dependencies,omitempty"`
	Capabilities []string               `json:"capabilities,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ManifestPath is the fixed in-archive path of the manifest file.
const ManifestPath = "/.cartridge/manifest.json"

// NewManifest builds a minimal manifest for a freshly created archive.
func NewManifest(slug, title string) Manifest {
	return Manifest{Slug: slug, Title: title, Version: "0.1.0"}
}
