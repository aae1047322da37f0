//go:build !debug

package debug

// Enabled mirrors debug_on.go's constant so callers can branch on it
// without a build-tag-specific import.
const Enabled = false

// Assert is a no-op outside of `-tags debug` builds: the single-threaded,
// deterministic block-processing model means these checks only ever fire
// during development against the test harness (chainsim/memstore), never
// in a caller's hot path.
func Assert(cond bool, msg string, args ...interface{}) {}

// AssertNoErr is a no-op outside of `-tags debug` builds.
func AssertNoErr(err error) {}

// AssertMsg is a no-op outside of `-tags debug` builds.
func AssertMsg(msg string, args ...interface{}) {}
