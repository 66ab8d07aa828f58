package actor

import "fmt"

// ErrActorIsDead is returned by Send when the Pid's generation no longer
// matches the generation currently occupying its slot: the original actor
// has terminated (and, possibly, a new one has taken the slot).
var ErrActorIsDead = fmt.Errorf("actor: actor is dead")

// SendFailError is returned by Send when the message could not be
// delivered for a transient reason: the slot's release lock was held by a
// concurrent sender or reset, or the mailbox was full. The caller owns
// Msg again and may retry, drop it, or shed load.
type SendFailError[M any] struct {
	Msg M
}

func (e *SendFailError[M]) Error() string {
	return "actor: send failed, mailbox full or slot contended"
}
