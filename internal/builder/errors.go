package builder

import "fmt"

// Severity levels carried to the presentation layer.
const (
	SeverityError       = "error"
	SeverityDismissible = "dismissible"
)

// Rejection is a validation failure: the mutation was aborted before any
// state change and the cart is exactly as it was. It carries the
// title/message/severity triple the presentation layer renders.
type Rejection struct {
	Title    string
	Message  string
	Severity string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Title, r.Message)
}

func reject(title, message string) *Rejection {
	return &Rejection{Title: title, Message: message, Severity: SeverityDismissible}
}

// PersistenceError reports a failed remote store call. In-memory cart
// state is NOT rolled back; the cart may diverge from the persisted
// record until the next successful mutation or reload.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrBusy rejects a mutation started while another is still in flight.
var ErrBusy = &Rejection{
	Title:    "Update In Progress",
	Message:  "Another cart update is still being saved. Try again in a moment.",
	Severity: SeverityError,
}
