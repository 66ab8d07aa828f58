package actor

import (
	"fmt"

	"github.com/lguibr/actorio/actor/queue"
)

// Pid is an opaque, cloneable, thread-safe handle to an actor. It carries
// the slot id it was spawned into and a snapshot of that slot's
// generation at spawn time: a Send succeeds only while the slot's current
// generation still matches this snapshot (spec section 3, "Process
// handle (Pid)").
type Pid[M any] struct {
	slotID     uint32
	generation uint64
	table      []*slot
	runQueue   *queue.Queue[uint32]
}

// SlotID exposes the underlying slot index, mostly useful for logging and
// metrics.
func (p *Pid[M]) SlotID() uint32 { return p.slotID }

// Equal reports whether two Pids name the same slot generation, i.e. the
// same actor instance.
func (p *Pid[M]) Equal(other *Pid[M]) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.slotID == other.slotID && p.generation == other.generation
}

func (p *Pid[M]) String() string {
	return fmt.Sprintf("pid(%d#%d)", p.slotID, p.generation)
}
