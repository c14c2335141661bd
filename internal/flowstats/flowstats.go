// Package flowstats holds per-flow traffic records produced by a simulation run.
package flowstats

import (
	"fmt"
	"net"
	"slices"
	"sort"
)

// Protocol numbers used in five-tuples.
const (
	ProtoTCP uint8 = 6
	ProtoUDP uint8 = 17
)

// FiveTuple identifies a directed flow.
type FiveTuple struct {
	SrcIP    net.IP `json:"src_ip"`
	DstIP    net.IP `json:"dst_ip"`
	SrcPort  uint16 `json:"src_port"`
	DstPort  uint16 `json:"dst_port"`
	Protocol uint8  `json:"protocol"`
}

// Key returns a comparable form of the tuple, e.g. "10.1.1.3:49153->10.1.1.1:9/17".
func (t FiveTuple) Key() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", t.SrcIP, t.SrcPort, t.DstIP, t.DstPort, t.Protocol)
}

func (t FiveTuple) String() string {
	return fmt.Sprintf("%s -> %s", t.SrcIP, t.DstIP)
}

// FlowID is assigned by the Monitor in first-seen order, starting at 1.
type FlowID uint32

// Record is the traffic summary of one flow. Times are seconds of simulated
// time. LastRxTime stays 0 when nothing was received.
type Record struct {
	ID          FlowID    `json:"flow_id"`
	Tuple       FiveTuple `json:"tuple"`
	TxBytes     uint64    `json:"tx_bytes"`
	TxPackets   uint64    `json:"tx_packets"`
	RxBytes     uint64    `json:"rx_bytes"`
	RxPackets   uint64    `json:"rx_packets"`
	FirstTxTime float64   `json:"first_tx_time"`
	LastRxTime  float64   `json:"last_rx_time"`
}

// Duration is LastRxTime - FirstTxTime; it may be zero or negative.
func (r Record) Duration() float64 {
	return r.LastRxTime - r.FirstTxTime
}

// Monitor classifies packets into flows and accumulates their records.
// It is owned by one simulation instance and is not safe for concurrent use.
type Monitor struct {
	ids     map[string]FlowID
	records map[FlowID]*Record
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		ids:     make(map[string]FlowID),
		records: make(map[FlowID]*Record),
	}
}

func (m *Monitor) lookup(t FiveTuple) *Record {
	key := t.Key()
	if id, ok := m.ids[key]; ok {
		return m.records[id]
	}
	id := FlowID(len(m.ids) + 1)
	m.ids[key] = id
	r := &Record{ID: id, Tuple: t}
	m.records[id] = r
	return r
}

// Sent accounts a packet of size bytes leaving its source at time now.
func (m *Monitor) Sent(t FiveTuple, bytes int, now float64) {
	r := m.lookup(t)
	if r.TxPackets == 0 {
		r.FirstTxTime = now
	}
	r.TxPackets++
	r.TxBytes += uint64(bytes)
}

// Received accounts a packet of size bytes arriving at its destination at time now.
func (m *Monitor) Received(t FiveTuple, bytes int, now float64) {
	r := m.lookup(t)
	r.RxPackets++
	r.RxBytes += uint64(bytes)
	r.LastRxTime = now
}

// Len reports the number of flows seen.
func (m *Monitor) Len() int { return len(m.records) }

// Records returns copies of all records ordered by FlowID. Addresses are
// cloned, so callers may modify the result freely.
func (m *Monitor) Records() []Record {
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		c := *r
		c.Tuple.SrcIP = slices.Clone(r.Tuple.SrcIP)
		c.Tuple.DstIP = slices.Clone(r.Tuple.DstIP)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
