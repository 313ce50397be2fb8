// Package thread implements the help-thread lifecycle rules: which state
// transitions are legal and what the periodic inactivity sweep should do to a
// thread. The functions are pure; the thread service consults them against
// freshly read state, and the repository re-checks every transition with a
// conditional update so a stale caller can never reopen a closed thread.
package thread

import "github.com/helper-ledger/internal/types"

// CanTransition reports whether a thread may move between the two states.
// Closed is terminal; re-closing a closed thread is a no-op for callers, not
// an error.
func CanTransition(from, to types.ThreadState) bool {
	switch from {
	case types.ThreadOpen:
		return to == types.ThreadPendingClose || to == types.ThreadClosed
	case types.ThreadPendingClose:
		return to == types.ThreadClosed
	default:
		return false
	}
}
