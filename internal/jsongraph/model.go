// Package jsongraph holds the optimization model and result exchanged with
// the tracking solver, and the bookkeeping derived from them: the mapping
// between optimizer uuids and traxels, and the per-timestep views of
// mergers, detections, links and divisions.
//
// The JSON field names follow the solver's wire format.
package jsongraph

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

// SegmentationHypothesis is one candidate detection (or tracklet) of the model.
type SegmentationHypothesis struct {
	ID                    int         `json:"id"`
	Timestep              [2]int      `json:"timestep"`
	Features              [][]float64 `json:"features,omitempty"`
	DivisionFeatures      [][]float64 `json:"divisionFeatures,omitempty"`
	AppearanceFeatures    [][]float64 `json:"appearanceFeatures,omitempty"`
	DisappearanceFeatures [][]float64 `json:"disappearanceFeatures,omitempty"`
}

// LinkingHypothesis is one candidate transition between two hypotheses.
type LinkingHypothesis struct {
	Src      int         `json:"src"`
	Dest     int         `json:"dest"`
	Features [][]float64 `json:"features,omitempty"`
}

// Model is the optimization problem description.
type Model struct {
	SegmentationHypotheses []SegmentationHypothesis `json:"segmentationHypotheses"`
	LinkingHypotheses      []LinkingHypothesis      `json:"linkingHypotheses"`
	Exclusions             [][]int                  `json:"exclusions,omitempty"`

	// TraxelToUniqueID maps timestep -> traxel id -> optimizer uuid. Keys
	// are decimal strings on the wire.
	TraxelToUniqueID map[string]map[string]int `json:"traxelToUniqueId"`
}

// DetectionResult is the selected state of a segmentation hypothesis.
type DetectionResult struct {
	ID    int `json:"id"`
	Value int `json:"value"`
}

// LinkingResult is the selected flow along a linking hypothesis.
type LinkingResult struct {
	Src   int `json:"src"`
	Dest  int `json:"dest"`
	Value int `json:"value"`
}

// DivisionResult tells whether a hypothesis divides.
type DivisionResult struct {
	ID    int  `json:"id"`
	Value bool `json:"value"`
}

// Result is the solution of a Model.
type Result struct {
	DetectionResults []DetectionResult `json:"detectionResults"`
	LinkingResults   []LinkingResult   `json:"linkingResults"`
	DivisionResults  []DivisionResult  `json:"divisionResults,omitempty"`
}

// SetUniqueID records uuid for the traxel (t, id) in the model's mapping.
func (m *Model) SetUniqueID(t, id, uuid int) {
	if m.TraxelToUniqueID == nil {
		m.TraxelToUniqueID = make(map[string]map[string]int)
	}
	ts := strconv.Itoa(t)
	if m.TraxelToUniqueID[ts] == nil {
		m.TraxelToUniqueID[ts] = make(map[string]int)
	}
	m.TraxelToUniqueID[ts][strconv.Itoa(id)] = uuid
}

// Mappings relates optimizer uuids and traxels in both directions.
type Mappings struct {
	// TraxelToUUID maps timestep -> traxel id -> uuid.
	TraxelToUUID map[int]map[int]int
	// UUIDToTraxels lists the traxels of a uuid ordered by timestep. A
	// tracklet hypothesis maps to more than one traxel.
	UUIDToTraxels map[int][]digraph.Key
	// Timesteps present in the model, ascending.
	Timesteps []int
}

// NewMappings parses the model's traxelToUniqueId table.
func NewMappings(m *Model) (*Mappings, error) {
	mp := &Mappings{
		TraxelToUUID:  make(map[int]map[int]int, len(m.TraxelToUniqueID)),
		UUIDToTraxels: make(map[int][]digraph.Key),
	}
	for ts, ids := range m.TraxelToUniqueID {
		t, err := strconv.Atoi(ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestep %q: %w", ts, err)
		}
		mp.Timesteps = append(mp.Timesteps, t)
		perT := make(map[int]int, len(ids))
		for is, uuid := range ids {
			id, err := strconv.Atoi(is)
			if err != nil {
				return nil, fmt.Errorf("parse traxel id %q at timestep %d: %w", is, t, err)
			}
			perT[id] = uuid
			mp.UUIDToTraxels[uuid] = append(mp.UUIDToTraxels[uuid], digraph.Key{Timestep: t, ID: id})
		}
		mp.TraxelToUUID[t] = perT
	}
	sort.Ints(mp.Timesteps)
	for uuid := range mp.UUIDToTraxels {
		traxels := mp.UUIDToTraxels[uuid]
		sort.Slice(traxels, func(i, j int) bool { return traxels[i].Less(traxels[j]) })
	}
	return mp, nil
}

// MaxUUID returns the largest uuid in use, or -1 for an empty mapping.
func (mp *Mappings) MaxUUID() int {
	maxID := -1
	for uuid := range mp.UUIDToTraxels {
		if uuid > maxID {
			maxID = uuid
		}
	}
	return maxID
}

// Traxels returns the traxels of uuid or an error if it is unknown.
func (mp *Mappings) Traxels(uuid int) ([]digraph.Key, error) {
	traxels, ok := mp.UUIDToTraxels[uuid]
	if !ok || len(traxels) == 0 {
		return nil, fmt.Errorf("uuid %d: %w", uuid, ErrUnknownUUID)
	}
	return traxels, nil
}

// CheckModel returns ErrUnknownUUID if a hypothesis or link of m refers to
// a uuid without traxels.
func (mp *Mappings) CheckModel(m *Model) error {
	for _, s := range m.SegmentationHypotheses {
		if _, err := mp.Traxels(s.ID); err != nil {
			return fmt.Errorf("segmentation hypothesis: %w", err)
		}
	}
	for _, l := range m.LinkingHypotheses {
		if _, err := mp.Traxels(l.Src); err != nil {
			return fmt.Errorf("linking hypothesis %d -> %d: %w", l.Src, l.Dest, err)
		}
		if _, err := mp.Traxels(l.Dest); err != nil {
			return fmt.Errorf("linking hypothesis %d -> %d: %w", l.Src, l.Dest, err)
		}
	}
	return nil
}

// UUID returns the uuid of traxel (t, id).
func (mp *Mappings) UUID(k digraph.Key) (int, bool) {
	uuid, ok := mp.TraxelToUUID[k.Timestep][k.ID]
	return uuid, ok
}
