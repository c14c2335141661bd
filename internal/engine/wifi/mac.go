package wifi

import (
	"math"
	"net"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"

	"cwsweep/internal/flowstats"
)

// packet is an IP datagram between two stations.
type packet struct {
	tuple flowstats.FiveTuple
	bytes int
	src   *node
	dst   *node
}

// frame carries a packet over one MAC hop.
type frame struct {
	pkt *packet
	hop *node
}

type node struct {
	id    int
	name  string
	addr  net.IP
	queue []*frame

	cwMin, cwMax float64
	cw           float64
	backoff      int // remaining slots, -1 until drawn
	retries      int
	rng          *rngstream.RngStream
}

func newNode(id int, name string, addr net.IP, cwMin, cwMax float64, rng *rngstream.RngStream) *node {
	return &node{
		id:      id,
		name:    name,
		addr:    addr,
		cwMin:   cwMin,
		cwMax:   cwMax,
		cw:      cwMin,
		backoff: -1,
		rng:     rng,
	}
}

// drawBackoff picks a slot count uniformly from [0, floor(cw)].
func (n *node) drawBackoff() {
	n.backoff = n.rng.RandInt(0, int(math.Floor(n.cw)))
}

func (n *node) resetWindow() {
	n.cw = n.cwMin
	n.retries = 0
	n.backoff = -1
}

// bumpWindow applies the binary exponential increase after a failed attempt.
func (n *node) bumpWindow() {
	n.cw = math.Min(2*(n.cw+1)-1, n.cwMax)
	n.backoff = -1
}

// round is the outcome of one contention period.
type round struct {
	winners []*node
}

func (in *instance) nodes() []*node {
	all := make([]*node, 0, len(in.sta)+1)
	all = append(all, in.sta...)
	return append(all, in.ap)
}

func (in *instance) enqueue(n *node, f *frame) {
	n.queue = append(n.queue, f)
	in.kick()
}

// kick starts a contention period if the medium is idle and none is pending.
func (in *instance) kick() {
	if in.busy || in.contending {
		return
	}
	in.contending = true
	in.mgr.Schedule(in, nil, contend, vrtime.SecondsToTime(0))
}

// contend resolves one DCF contention period: after DIFS every backlogged
// node counts down its backoff; the smallest counter wins and equal counters
// collide. Frozen counters keep their remainder.
func contend(mgr *evtm.EventManager, context any, data any) any {
	in := context.(*instance)
	in.contending = false

	var backlogged []*node
	for _, n := range in.nodes() {
		if len(n.queue) == 0 {
			continue
		}
		if n.backoff < 0 {
			n.drawBackoff()
		}
		backlogged = append(backlogged, n)
	}
	if len(backlogged) == 0 {
		return nil
	}

	slots := math.MaxInt
	for _, n := range backlogged {
		if n.backoff < slots {
			slots = n.backoff
		}
	}
	r := &round{}
	longest := 0.0
	for _, n := range backlogged {
		n.backoff -= slots
		if n.backoff == 0 {
			r.winners = append(r.winners, n)
			if d := in.params.dataAirtime(n.queue[0].pkt.bytes); d > longest {
				longest = d
			}
		}
	}

	in.busy = true
	// Success and collision both occupy DATA + SIFS + ACK (or ACK timeout).
	elapsed := difs + float64(slots)*slotTime + longest + sifs + in.params.ackAirtime()
	in.mgr.Schedule(in, r, finishRound, vrtime.SecondsToTime(elapsed))
	return nil
}

func finishRound(mgr *evtm.EventManager, context any, data any) any {
	in := context.(*instance)
	r := data.(*round)
	in.busy = false

	if len(r.winners) == 1 {
		n := r.winners[0]
		f := n.queue[0]
		n.queue = n.queue[1:]
		n.resetWindow()
		in.deliver(f)
	} else {
		for _, n := range r.winners {
			n.retries++
			if n.retries > in.params.RetryLimit {
				n.queue = n.queue[1:]
				n.resetWindow()
				continue
			}
			n.bumpWindow()
		}
	}
	for _, n := range in.nodes() {
		if len(n.queue) > 0 {
			in.kick()
			break
		}
	}
	return nil
}

// deliver completes a hop. The AP forwards station-to-station traffic.
func (in *instance) deliver(f *frame) {
	p := f.pkt
	if f.hop == in.ap {
		in.enqueue(in.ap, &frame{pkt: p, hop: p.dst})
		return
	}
	in.arrive(p)
}
