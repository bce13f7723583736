package resolve

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by every hook after a structural invariant violation
// until the resolver is Reset.
var ErrAborted = errors.New("resolution aborted by an earlier invariant violation")

// InvariantError reports an internal ordering defect: a removal that would leave a
// live index, key or foreign key pointing at an excluded property. Valid rule input
// never produces one.
type InvariantError struct {
	Subject string
	Detail  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("structural invariant violated at %s: %s\nHint: this is a bug in the resolver, not in the rule document", e.Subject, e.Detail)
}
