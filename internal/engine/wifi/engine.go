// Package wifi is a compact CSMA/CA simulator of a single infrastructure BSS
// built on the evt discrete-event manager. One access point relays UDP echo
// traffic between stations; every station contends with the configured
// window bounds.
package wifi

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"

	"cwsweep/internal/engine"
	"cwsweep/internal/flowstats"
)

// Engine creates fresh BSS instances.
type Engine struct {
	params Params
	log    *slog.Logger
}

// New returns an engine using p; zero fields take DefaultParams values.
func New(p Params, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{params: p.withDefaults(), log: log}
}

// Configure validates cfg and builds an instance with its own event manager,
// random streams and flow monitor.
func (e *Engine) Configure(cfg engine.Config) (engine.Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.params.validate(); err != nil {
		return nil, err
	}
	return newInstance(cfg, e.params, e.log), nil
}

type state int

const (
	stateReady state = iota
	stateDone
	stateDestroyed
)

type instance struct {
	cfg     engine.Config
	params  Params
	log     *slog.Logger
	mgr     *evtm.EventManager
	monitor *flowstats.Monitor
	sta     []*node
	ap      *node

	contending bool
	busy       bool

	mu    sync.Mutex
	state state
}

func newInstance(cfg engine.Config, p Params, log *slog.Logger) *instance {
	in := &instance{
		cfg:     cfg,
		params:  p,
		log:     log,
		mgr:     evtm.New(),
		monitor: flowstats.NewMonitor(),
	}
	for i := 0; i < cfg.Stations; i++ {
		name := fmt.Sprintf("sta-%d", i)
		in.sta = append(in.sta, newNode(i, name, address(i), cfg.WindowMin, cfg.WindowMax, nodeStream(name, p.Seed, i)))
	}
	in.ap = newNode(cfg.Stations, "ap", address(cfg.Stations), p.APWindowMin, p.APWindowMax, nodeStream("ap", p.Seed, cfg.Stations))
	return in
}

// Moduli of the MRG32k3a components; seed words must stay below them.
const (
	rngModulus1 = 4294967087
	rngModulus2 = 4294944443
)

// nodeStream returns substream k of the stream seeded from seed, independent
// of any stream created before it.
func nodeStream(name string, seed uint64, k int) *rngstream.RngStream {
	g := rngstream.New(name)
	words := make([]uint64, 6)
	for i := range words {
		m := uint64(rngModulus1)
		if i >= 3 {
			m = rngModulus2
		}
		words[i] = (seed+uint64(i))%(m-1) + 1
	}
	g.SetSeed(words)
	for ; k > 0; k-- {
		g.ResetNextSubstream()
	}
	return g
}

// address returns 10.1.1.(i+1).
func address(i int) net.IP {
	return net.IPv4(10, 1, 1, byte(i+1)).To4()
}

func (in *instance) Run() (err error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	switch in.state {
	case stateDone:
		return engine.Failure("run", errors.New("instance already ran"))
	case stateDestroyed:
		return engine.Failure("run", errors.New("instance destroyed"))
	}
	defer func() {
		if r := recover(); r != nil {
			err = engine.Failure("run", fmt.Errorf("event loop panic: %v", r))
		}
	}()

	in.installApplications()
	in.mgr.Run(in.cfg.StopTime.Seconds())
	in.state = stateDone
	in.log.Debug("bss run complete",
		"stations", in.cfg.Stations,
		"window_min", in.cfg.WindowMin,
		"window_max", in.cfg.WindowMax,
		"flows", in.monitor.Len())
	return nil
}

func (in *instance) FlowStats() ([]flowstats.Record, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != stateDone {
		return nil, engine.Failure("flow stats", errors.New("instance has not completed a run"))
	}
	return in.monitor.Records(), nil
}

func (in *instance) Destroy() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state = stateDestroyed
	in.sta = nil
	in.ap = nil
	in.mgr = nil
}

// installApplications schedules the echo clients. The server on station 0
// is passive and answers requests that arrive after its start time.
func (in *instance) installApplications() {
	n := len(in.sta)
	for i, start := range in.params.ClientStarts {
		idx := n - 1 - i
		if idx < 0 {
			break
		}
		in.mgr.Schedule(in, in.sta[idx], startClient, vrtime.SecondsToTime(start.Seconds()))
	}
}

func (in *instance) now() float64 { return in.mgr.CurrentSeconds() }

func (in *instance) server() *node { return in.sta[0] }

// startClient sends all echo requests back to back.
func startClient(mgr *evtm.EventManager, context any, data any) any {
	in := context.(*instance)
	src := data.(*node)
	dst := in.server()
	t := flowstats.FiveTuple{SrcIP: src.addr, DstIP: dst.addr, SrcPort: clientPort, DstPort: echoPort, Protocol: flowstats.ProtoUDP}
	for i := 0; i < in.params.MaxPackets; i++ {
		in.send(src, dst, t, in.params.PacketSize+ipUDPHeaders)
	}
	return nil
}

// send hands an IP packet to the network layer of src.
func (in *instance) send(src, dst *node, t flowstats.FiveTuple, ipBytes int) {
	in.monitor.Sent(t, ipBytes, in.now())
	p := &packet{tuple: t, bytes: ipBytes, src: src, dst: dst}
	if src == dst {
		in.mgr.Schedule(in, p, loopback, vrtime.SecondsToTime(0))
		return
	}
	in.enqueue(src, &frame{pkt: p, hop: in.ap})
}

func loopback(mgr *evtm.EventManager, context any, data any) any {
	in := context.(*instance)
	in.arrive(data.(*packet))
	return nil
}

// arrive delivers a packet at its final destination.
func (in *instance) arrive(p *packet) {
	now := in.now()
	in.monitor.Received(p.tuple, p.bytes, now)
	srv := in.server()
	if p.dst == srv && p.tuple.DstPort == echoPort && now >= in.params.ServerStart.Seconds() {
		reply := flowstats.FiveTuple{
			SrcIP:    p.tuple.DstIP,
			DstIP:    p.tuple.SrcIP,
			SrcPort:  p.tuple.DstPort,
			DstPort:  p.tuple.SrcPort,
			Protocol: p.tuple.Protocol,
		}
		in.send(srv, p.src, reply, p.bytes)
	}
}
