package core

import (
	"sort"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tritsim/simerr"
	"github.com/sarchlab/tritsim/trit"
)

// DMAVector is the interrupt raised when a DMA transfer completes, if a
// handler is bound to it.
const DMAVector = 0

// dmaTransfer copies words into consecutive slots of one tier. Words is
// set for transfers from outside the core; otherwise the source range is
// read when the transfer completes.
type dmaTransfer struct {
	seq     uint64
	dst     slotRef
	dstName string
	src     slotRef
	count   int
	words   []trit.Word
}

// dmaEvent is scheduled in the machine's event queue. Its time is the
// cycle at which the transfer lands.
type dmaEvent struct {
	*sim.EventBase
	transfer dmaTransfer
}

type dmaEngine struct {
	bandwidth int
	depth     int
	handler   sim.Handler
	queue     sim.EventQueue
	pending   int
	nextSeq   uint64
}

func newDMAEngine(bandwidth, depth int, h sim.Handler) dmaEngine {
	return dmaEngine{
		bandwidth: bandwidth,
		depth:     depth,
		handler:   h,
		queue:     sim.NewEventQueue(),
	}
}

func (d *dmaEngine) full() bool {
	return d.pending >= d.depth
}

// schedule queues a transfer that completes after ceil(count/bandwidth)
// cycles.
func (d *dmaEngine) schedule(now uint64, t dmaTransfer) (uint64, error) {
	if d.full() {
		return 0, simerr.New(simerr.KindBackpressure, "core.DMA",
			"%d transfers already pending", d.pending)
	}

	duration := uint64((t.count + d.bandwidth - 1) / d.bandwidth)
	done := now + duration

	t.seq = d.nextSeq
	d.nextSeq++
	d.pending++

	d.queue.Push(dmaEvent{
		EventBase: sim.NewEventBase(sim.VTimeInSec(done), d.handler),
		transfer:  t,
	})

	return done, nil
}

// due pops every transfer completing at or before now, in issue order.
func (d *dmaEngine) due(now uint64) []dmaEvent {
	var out []dmaEvent

	for d.queue.Len() > 0 && uint64(d.queue.Peek().Time()) <= now {
		out = append(out, d.queue.Pop().(dmaEvent))
		d.pending--
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].transfer.seq < out[j].transfer.seq
	})

	return out
}

func (d *dmaEngine) reset() {
	d.queue = sim.NewEventQueue()
	d.pending = 0
}

type interruptRequest struct {
	Vector  int
	Payload trit.Word
}

type interruptFrame struct {
	returnPC int
	flags    Flags
}

type interruptController struct {
	depth     int
	queue     []interruptRequest
	vectors   map[int]int
	enabled   bool
	servicing bool
	frames    []interruptFrame
}

func newInterruptController(depth int) interruptController {
	return interruptController{
		depth:   depth,
		vectors: make(map[int]int),
		enabled: true,
	}
}

func (ic *interruptController) raise(req interruptRequest) error {
	if len(ic.queue) >= ic.depth {
		return simerr.New(simerr.KindBackpressure, "core.RaiseInterrupt",
			"interrupt queue full (%d entries)", ic.depth)
	}

	ic.queue = append(ic.queue, req)

	return nil
}

func (ic *interruptController) ready() bool {
	return ic.enabled && !ic.servicing && len(ic.queue) > 0
}

func (ic *interruptController) pop() interruptRequest {
	req := ic.queue[0]
	ic.queue = ic.queue[1:]

	return req
}

func (ic *interruptController) reset() {
	ic.queue = nil
	ic.frames = nil
	ic.enabled = true
	ic.servicing = false
}
