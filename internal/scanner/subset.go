package scanner

import "github.com/aot-native/ilc/internal/diagnostics"

// RequireMarked enforces the oracle property: every key the compiler pass
// marks must already have been marked by this scan. A miss is always a
// scanner failure, never degraded to a warning, because it means the
// compiler is about to emit a vtable slot, dictionary entry, or
// devirtualisation claim the scan never recorded.
func (r *ScanResults) RequireMarked(key string, chain []string) error {
	if r.HasKey(key) {
		return nil
	}
	return &diagnostics.ScannerFailedError{Claim: key, Chain: chain}
}
