package accum

import "github.com/mindmirror/mindmirror/internal/ledger"

// shouldSynthesize decides whether accumulated evidence is sufficient
// to synthesize. Pure function: the pending total plus the new
// fragment's character count must reach minChars. The boundary is
// inclusive, so a single fragment of minChars triggers with nothing
// pending. Lengths are character counts, not byte counts.
func shouldSynthesize(pending []ledger.Fragment, newFragmentLen, minChars int) bool {
	return ledger.PendingLength(pending)+newFragmentLen >= minChars
}
