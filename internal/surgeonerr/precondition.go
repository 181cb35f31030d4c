package surgeonerr

// PreconditionError is a refuse-before-mutate failure: the repository is in
// a state the verb will not touch (dirty index, dirty worktree, merge
// commits in range, non-ancestor target). It carries a human Advice string
// telling the user how to get unstuck.
type PreconditionError struct {
	Base   *Error
	Advice string
}

// Error implements the error interface, appending the advice line.
func (e *PreconditionError) Error() string {
	msg := e.Base.Error()
	if e.Advice != "" {
		msg += "\nAdvice: " + e.Advice
	}
	return msg
}

// Unwrap exposes the underlying Error so category matching still works.
func (e *PreconditionError) Unwrap() error {
	return e.Base
}

// Precondition builds a PreconditionError for a verb.
func Precondition(verb, message, advice string) *PreconditionError {
	return &PreconditionError{
		Base:   &Error{Category: CategoryPrecondition, Verb: verb, Message: message},
		Advice: advice,
	}
}
