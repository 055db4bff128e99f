package merger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/JaimeIvanCervantes/hytra/internal/fitting"
)

// CoordinateProvider supplies, for one timestep, the pixel coordinates of
// every labeled region keyed by traxel id. Frames are requested one at a
// time and may be released once the call returns.
type CoordinateProvider interface {
	Coordinates(ctx context.Context, t int) (map[int]*mat.Dense, error)
}

// LabelFrame is a 2D label image in row-major order. Label 0 is background.
type LabelFrame [][]int

// Coordinates returns the (row, column) coordinates of every label.
func (f LabelFrame) Coordinates() (map[int]*mat.Dense, error) {
	points := make(map[int][][]float64)
	for r, row := range f {
		for c, label := range row {
			if label == 0 {
				continue
			}
			points[label] = append(points[label], []float64{float64(r), float64(c)})
		}
	}
	return coordinateMatrices(points)
}

// LabelFrames serves in-memory label images by timestep.
type LabelFrames map[int]LabelFrame

// Coordinates implements CoordinateProvider.
func (lf LabelFrames) Coordinates(_ context.Context, t int) (map[int]*mat.Dense, error) {
	frame, ok := lf[t]
	if !ok {
		return nil, fmt.Errorf("no label frame for timestep %d", t)
	}
	return frame.Coordinates()
}

// DirectoryProvider reads one JSON file per timestep, named <t>.json, from
// Dir. A file holds either a label image under "labels" or explicit point
// lists per traxel id under "objects".
type DirectoryProvider struct {
	Dir string
}

type frameFile struct {
	Labels  LabelFrame             `json:"labels,omitempty"`
	Objects map[string][][]float64 `json:"objects,omitempty"`
}

// Coordinates implements CoordinateProvider.
func (d DirectoryProvider) Coordinates(ctx context.Context, t int) (map[int]*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.Dir, strconv.Itoa(t)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	var ff frameFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse frame %s: %w", path, err)
	}
	if ff.Labels != nil {
		return ff.Labels.Coordinates()
	}

	points := make(map[int][][]float64, len(ff.Objects))
	for key, pts := range ff.Objects {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("frame %s: object id %q: %w", path, key, err)
		}
		points[id] = pts
	}
	return coordinateMatrices(points)
}

func coordinateMatrices(points map[int][][]float64) (map[int]*mat.Dense, error) {
	out := make(map[int]*mat.Dense, len(points))
	for id, pts := range points {
		m, err := fitting.CoordinatesFromPoints(pts)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", id, err)
		}
		out[id] = m
	}
	return out, nil
}
