package invariants

import "fmt"

// Assert panics with the formatted message if cond is false and the module
// was built with the "invariants" or "race" build tags. Otherwise it is a
// no-op, leaving the caller's clamping/fallback behavior in effect.
func Assert(cond bool, format string, args ...interface{}) {
	if Enabled && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
