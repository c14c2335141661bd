package wifi

import (
	"fmt"
	"time"
)

// Params describes the simulated BSS. Zero values are replaced by defaults.
type Params struct {
	// DataRate is the PHY rate of data frames in bit/s.
	DataRate float64
	// BasicRate is the PHY rate of control frames (ACK) in bit/s.
	BasicRate float64
	// PacketSize is the UDP payload of each echo request in bytes.
	PacketSize int
	// MaxPackets is the number of requests each echo client sends.
	MaxPackets int
	// RetryLimit is the number of retransmissions before a frame is dropped.
	RetryLimit int
	// APWindowMin and APWindowMax are the access point's contention bounds.
	APWindowMin float64
	APWindowMax float64

	ServerStart  time.Duration
	ClientStarts []time.Duration

	// Seed fixes the random streams of every instance. Node k draws from
	// substream k of the stream seeded with Seed.
	Seed uint64
}

// 802.11a OFDM timing.
const (
	slotTime     = 9e-6
	sifs         = 16e-6
	difs         = sifs + 2*slotTime
	preamble     = 20e-6
	macOverhead  = 36 // MAC header + FCS
	ackBytes     = 14
	ipUDPHeaders = 28
	echoPort     = 9
	clientPort   = 49153
)

// DefaultParams mirrors the reference experiment: two echo clients sending 30
// requests of 4096 bytes each, starting at 2s and 2.01s, to a server started at 1s.
func DefaultParams() Params {
	return Params{
		DataRate:     54e6,
		BasicRate:    6e6,
		PacketSize:   4096,
		MaxPackets:   30,
		RetryLimit:   7,
		APWindowMin:  15,
		APWindowMax:  1023,
		ServerStart:  time.Second,
		ClientStarts: []time.Duration{2 * time.Second, 2010 * time.Millisecond},
		Seed:         12345,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.DataRate <= 0 {
		p.DataRate = d.DataRate
	}
	if p.BasicRate <= 0 {
		p.BasicRate = d.BasicRate
	}
	if p.PacketSize <= 0 {
		p.PacketSize = d.PacketSize
	}
	if p.MaxPackets <= 0 {
		p.MaxPackets = d.MaxPackets
	}
	if p.RetryLimit <= 0 {
		p.RetryLimit = d.RetryLimit
	}
	if p.APWindowMin <= 0 {
		p.APWindowMin = d.APWindowMin
	}
	if p.APWindowMax <= 0 {
		p.APWindowMax = d.APWindowMax
	}
	if p.ServerStart <= 0 {
		p.ServerStart = d.ServerStart
	}
	if len(p.ClientStarts) == 0 {
		p.ClientStarts = d.ClientStarts
	}
	if p.Seed == 0 {
		p.Seed = d.Seed
	}
	return p
}

func (p Params) validate() error {
	if len(p.ClientStarts) > 2 {
		return fmt.Errorf("at most 2 echo clients supported, got %d", len(p.ClientStarts))
	}
	return nil
}

// dataAirtime is the channel time of a data frame carrying ipBytes.
func (p Params) dataAirtime(ipBytes int) float64 {
	return preamble + float64((macOverhead+ipBytes)*8)/p.DataRate
}

func (p Params) ackAirtime() float64 {
	return preamble + float64(ackBytes*8)/p.BasicRate
}
