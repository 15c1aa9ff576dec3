package imagecore

import "github.com/Skryldev/imagecore/core"

// Inner exposes the underlying core.Processor for advanced use (e.g., direct
// hook or counter access in tests).  Prefer the high-level API for normal usage.
func (p *Processor) Inner() *core.Processor { return p.inner }
