package experiment

import "cwsweep/internal/flowstats"

// FlowThroughputMbps is rxBytes*8 / (lastRx - firstTx) / 1e6. A zero
// duration yields +Inf (rxBytes > 0) or NaN (rxBytes == 0).
func FlowThroughputMbps(r flowstats.Record) float64 {
	return float64(r.RxBytes) * 8 / (r.LastRxTime - r.FirstTxTime) / 1_000_000
}

// Reduce computes the arithmetic mean of per-flow rates. An empty set
// (after exclusion) gives 0/0 = NaN.
func Reduce(cfg Config, records []flowstats.Record, policy ZeroDurationPolicy) AggregateResult {
	res := AggregateResult{Config: cfg, Flows: make([]FlowThroughput, 0, len(records))}
	var sum float64
	var n int
	for _, rec := range records {
		ft := FlowThroughput{Record: rec, ThroughputMbps: FlowThroughputMbps(rec)}
		if policy == Exclude && rec.LastRxTime == rec.FirstTxTime {
			ft.Excluded = true
			res.Flows = append(res.Flows, ft)
			continue
		}
		sum += ft.ThroughputMbps
		n++
		res.Flows = append(res.Flows, ft)
	}
	res.AverageThroughputMbps = sum / float64(n)
	return res
}
