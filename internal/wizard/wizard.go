// Package wizard models the multi-step sign-up and password-reset flows as
// pure reducers. Reducers never mutate their input and return
// ErrInvalidTransition, with the state unchanged, for events the current
// step does not accept.
package wizard

import "errors"

var ErrInvalidTransition = errors.New("invalid_transition")
