package sweep

import "sort"

// BuildDatasets regroups recorded cells into datasets ordered by max
// exponent, points ordered by min exponent. Later duplicates of a grid
// position replace earlier ones.
func BuildDatasets(cells []CellResult) []Dataset {
	type key struct{ max, min int }
	latest := make(map[key]CellResult)
	rows := make(map[int][]int)
	for _, c := range cells {
		k := key{c.MaxExponent, c.MinExponent}
		if _, seen := latest[k]; !seen {
			rows[c.MaxExponent] = append(rows[c.MaxExponent], c.MinExponent)
		}
		latest[k] = c
	}

	maxExps := make([]int, 0, len(rows))
	for e := range rows {
		maxExps = append(maxExps, e)
	}
	sort.Ints(maxExps)

	out := make([]Dataset, 0, len(maxExps))
	for _, eMax := range maxExps {
		mins := rows[eMax]
		sort.Ints(mins)
		windowMax := Bound(eMax)
		ds := Dataset{Label: Label(windowMax), WindowMax: windowMax, Points: make([]Point, 0, len(mins))}
		for _, eMin := range mins {
			c := latest[key{eMax, eMin}]
			ds.Points = append(ds.Points, Point{WindowMin: Bound(eMin), ThroughputMbps: c.Result.AverageThroughputMbps})
		}
		out = append(out, ds)
	}
	return out
}
