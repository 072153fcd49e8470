package verifier

import "github.com/lukemcguire/linkguard/result"

// Progress reports one completed check.
type Progress struct {
	Completed int               // Checks finished so far, including this one
	Total     int               // Records in the run
	Broken    int               // Broken results so far
	Result    result.LinkResult // The check that just finished
}

// ProgressFunc is invoked once per completed check, in completion order.
// Calls are never concurrent with each other.
type ProgressFunc func(Progress)
