// Package operations runs the cloud side of local operation commands.
//
// Local agents drive an operation through its states by republishing the
// command on te/<entity>/cmd/<operation>/<cmd_id>. Every state change is
// handed to Handler.HandleOperation, which runs the routine for that
// operation kind in its own goroutine and returns immediately.
//
// # Routines
//
// A routine turns one command state into an ordered Result: cloud status
// records, the clear message that removes the retained local command, and
// sometimes follow-up commands. Routines that move files talk to the
// transfer and cloud collaborators and translate transfer failures into
// cloud failure records themselves; an error returned from a routine is
// logged and nothing is published for that state.
//
// # Operation logs
//
// A terminal state that carries a logPath yields a log-bearing Result. The
// captured log is uploaded to the cloud before any message of that Result
// is published, so the cloud never shows an operation as done before its
// log exists. A failed log upload is logged and the messages still go out.
//
// # Concurrency
//
// Routines share nothing but the collaborators, which are safe for
// concurrent use. Operations complete in any order; the messages of one
// Result are always published in the order the routine produced them.
package operations
