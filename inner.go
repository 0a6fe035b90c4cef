package mediaeditor

import "github.com/Skryldev/media-editor/core"

// Inner exposes the underlying worker pool for advanced use, e.g. running
// custom work alongside edits.  Prefer Edit for normal usage.
func (s *Service) Inner() *core.Processor { return s.proc }

// Registry exposes the codec registry so callers can inspect or extend it.
func (s *Service) Registry() core.Registry { return s.reg }
