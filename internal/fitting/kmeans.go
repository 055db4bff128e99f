package fitting

import (
	"fmt"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/JaimeIvanCervantes/hytra/internal/config"
	"github.com/JaimeIvanCervantes/hytra/internal/monitoring"
)

// KMeansPlugin fits objects as k-means clusters of the region's pixels.
//
// When at least count initializations are available, the count heaviest
// ones seed Lloyd iterations and the returned fits keep their order, so an
// object keeps its index from one frame to the next. Otherwise the region
// is partitioned from scratch and the fits are ordered by center.
type KMeansPlugin struct {
	MaxIterations int
	Tolerance     float64
}

// NewKMeansPlugin builds a plugin from the resolver configuration.
func NewKMeansPlugin(cfg *config.ResolverConfig) *KMeansPlugin {
	return &KMeansPlugin{
		MaxIterations: cfg.GetMaxFitIterations(),
		Tolerance:     cfg.GetFitTolerance(),
	}
}

// ResolveMergerForCoords implements Plugin.
func (p *KMeansPlugin) ResolveMergerForCoords(coords *mat.Dense, count int, initializations []Fit) ([]Fit, error) {
	if count < 1 {
		return nil, fmt.Errorf("count %d: %w", count, ErrInvalidCount)
	}
	rows, cols := coords.Dims()
	if rows < count {
		return nil, fmt.Errorf("%d pixels for %d objects: %w", rows, count, ErrTooFewPoints)
	}

	seeds, seeded := seedsFromInitializations(initializations, count, cols)
	if !seeded {
		var err error
		seeds, err = partition(coords, count)
		if err != nil {
			return nil, err
		}
	}

	labels := p.lloyd(coords, seeds)
	fits := buildFits(coords, labels, seeds)
	if !seeded {
		sort.SliceStable(fits, func(i, j int) bool { return lessCoords(fits[i].Center, fits[j].Center) })
	}
	return fits, nil
}

// seedsFromInitializations picks the count heaviest initializations whose
// dimensionality matches the region.
func seedsFromInitializations(inits []Fit, count, dims int) ([][]float64, bool) {
	usable := make([]Fit, 0, len(inits))
	for _, f := range inits {
		if len(f.Center) == dims {
			usable = append(usable, f)
		}
	}
	if len(usable) < count {
		if len(inits) > 0 {
			monitoring.Debugf("fitting: %d usable initializations for %d objects, cold start", len(usable), count)
		}
		return nil, false
	}
	sort.SliceStable(usable, func(i, j int) bool { return usable[i].Weight > usable[j].Weight })

	seeds := make([][]float64, count)
	for i := range seeds {
		seeds[i] = append([]float64(nil), usable[i].Center...)
	}
	return seeds, true
}

// partition runs a k-means partition of the region and returns the
// cluster centers.
func partition(coords *mat.Dense, count int) ([][]float64, error) {
	rows, _ := coords.Dims()
	if count == 1 {
		return [][]float64{mean(coords, allRows(rows))}, nil
	}

	obs := make(clusters.Observations, 0, rows)
	for i := 0; i < rows; i++ {
		obs = append(obs, clusters.Coordinates(append([]float64(nil), coords.RawRowView(i)...)))
	}
	cc, err := kmeans.New().Partition(obs, count)
	if err != nil {
		return nil, fmt.Errorf("kmeans partition: %w", err)
	}
	if len(cc) != count {
		return nil, fmt.Errorf("kmeans returned %d clusters, want %d", len(cc), count)
	}
	seeds := make([][]float64, count)
	for i, c := range cc {
		seeds[i] = append([]float64(nil), c.Center...)
	}
	return seeds, nil
}

// lloyd refines centers in place and returns the final pixel labels.
func (p *KMeansPlugin) lloyd(coords *mat.Dense, centers [][]float64) []int {
	rows, _ := coords.Dims()
	labels := make([]int, rows)
	iterations := p.MaxIterations
	if iterations < 1 {
		iterations = 1
	}

	for it := 0; it < iterations; it++ {
		for i := 0; i < rows; i++ {
			labels[i] = nearest(coords.RawRowView(i), centers)
		}

		moved := 0.0
		for c := range centers {
			members := membersOf(labels, c)
			if len(members) == 0 {
				continue // keep the previous center
			}
			next := mean(coords, members)
			if d := floats.Distance(next, centers[c], 2); d > moved {
				moved = d
			}
			centers[c] = next
		}
		if moved <= p.Tolerance {
			break
		}
	}

	for i := 0; i < rows; i++ {
		labels[i] = nearest(coords.RawRowView(i), centers)
	}
	return labels
}

func buildFits(coords *mat.Dense, labels []int, centers [][]float64) []Fit {
	rows, cols := coords.Dims()
	fits := make([]Fit, len(centers))
	for c := range centers {
		members := membersOf(labels, c)
		fit := Fit{
			Weight: float64(len(members)) / float64(rows),
			Center: centers[c],
		}
		if len(members) > 0 {
			fit.Center = mean(coords, members)
		}
		if len(members) >= 2 {
			sub := mat.NewDense(len(members), cols, nil)
			for i, r := range members {
				sub.SetRow(i, coords.RawRowView(r))
			}
			var cov mat.SymDense
			stat.CovarianceMatrix(&cov, sub, nil)
			fit.Covariance = &cov
		}
		fits[c] = fit
	}
	return fits
}

func nearest(x []float64, centers [][]float64) int {
	best, bestDist := 0, floats.Distance(x, centers[0], 2)
	for c := 1; c < len(centers); c++ {
		if d := floats.Distance(x, centers[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func membersOf(labels []int, c int) []int {
	var members []int
	for i, l := range labels {
		if l == c {
			members = append(members, i)
		}
	}
	return members
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

func mean(coords *mat.Dense, rows []int) []float64 {
	_, cols := coords.Dims()
	m := make([]float64, cols)
	for _, r := range rows {
		floats.Add(m, coords.RawRowView(r))
	}
	floats.Scale(1/float64(len(rows)), m)
	return m
}

func lessCoords(a, b []float64) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
