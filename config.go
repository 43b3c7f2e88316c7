package cartridge

import (
	"encoding/json"
	"os"

	"github.com/tailscale/hujson"

	"github.com/archivefs/cartridge/errs"
	"github.com/archivefs/cartridge/internal/page"
)

// Config is the human-editable sidecar read alongside a cartridge: the
// knobs that would otherwise require recompiling (auto-grow ceiling,
// cache capacity, default fuse values). It is entirely optional — a
// cartridge with no Config file behaves exactly as if DefaultConfig() had
// been applied.
//
// Grounded on calvinalkan-agent-task's config.go: a plain JSON-tagged
// struct parsed from a JWCC (JSON-with-comments) file via
// github.com/tailscale/hujson.Standardize, then encoding/json.Unmarshal.
type Config struct {
	MaxBlocks     uint64 `json:"max_blocks,omitempty"`
	CacheCapacity int    `json:"cache_capacity,omitempty"`
	Versioning    string `json:"default_versioning,omitempty"` // "none" | "snapshot-backed"
	ACL           string `json:"default_acl,omitempty"`         // "ignore" | "record" | "enforce"
	SSE           string `json:"default_sse,omitempty"`         // "ignore" | "record" | "transparent"
}

// ConfigFileName is the sidecar's conventional name, kept next to the
// cartridge's backing file.
const ConfigFileName = "cartridge.hujson"

// DefaultConfig returns the configuration a cartridge uses when no
// sidecar file is present.
func DefaultConfig() Config {
	return Config{
		CacheCapacity: 256,
	}
}

// LoadConfig reads and parses a JWCC config file at path, starting from
// DefaultConfig() and overlaying any fields the file sets. A missing file
// is not an error: it returns DefaultConfig() unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errs.Wrap(errs.KindIO, "LoadConfig", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, errs.Wrap(errs.KindFormat, "LoadConfig", path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, errs.Wrap(errs.KindFormat, "LoadConfig", path, err)
	}

	return cfg, nil
}

// ApplyTo overlays c's non-zero fields onto opts, returning the merged
// Options. CLI/explicit Options fields always win over the file: this is
// meant to be called as the last step before withDefaults(), i.e.
// "defaults < file < explicit Options".
func (c Config) ApplyTo(opts Options) Options {
	if opts.MaxBlocks == 0 {
		opts.MaxBlocks = c.MaxBlocks
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = c.CacheCapacity
	}
	return opts
}

// Fuses parses the configured default fuse names into their byte values
// (spec.md §6). Unknown or unset names fall back to the least-intrusive
// default, matching the header's own unknown-value fallback rule.
func (c Config) Fuses() (page.VersioningMode, page.ACLMode, page.SSEMode) {
	versioning := page.VersioningNone
	switch c.Versioning {
	case "snapshot-backed":
		versioning = page.VersioningSnapshotBacked
	}

	acl := page.ACLIgnore
	switch c.ACL {
	case "record":
		acl = page.ACLRecord
	case "enforce":
		acl = page.ACLEnforce
	}

	sse := page.SSEIgnore
	switch c.SSE {
	case "record":
		sse = page.SSERecord
	case "transparent":
		sse = page.SSETransparent
	}

	return versioning, acl, sse
}
