package cartridge

import "github.com/archivefs/cartridge/internal/page"

// Fuses reads the three S3 feature fuses from the live archive header
// (spec.md §6).
func (c *Cartridge) Fuses() (versioning page.VersioningMode, acl page.ACLMode, sse page.SSEMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header.Versioning(), c.header.ACL(), c.header.SSE()
}

// SetFuses updates the three fuses; callers must Flush to persist them.
func (c *Cartridge) SetFuses(versioning page.VersioningMode, acl page.ACLMode, sse page.SSEMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header.SetVersioning(versioning)
	c.header.SetACL(acl)
	c.header.SetSSE(sse)
}
