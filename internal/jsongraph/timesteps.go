package jsongraph

import (
	"errors"
	"fmt"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

var (
	// ErrUnknownUUID is returned when a result refers to a uuid the model
	// does not define.
	ErrUnknownUUID = errors.New("unknown uuid")
	// ErrDivisionChildren is returned when a dividing traxel does not have
	// exactly two selected successors.
	ErrDivisionChildren = errors.New("division must have exactly two children")
)

// Merger is a traxel whose selected detection value exceeds one.
type Merger struct {
	Traxel digraph.Key
	Count  int
}

// Link is a selected transition between two traxels.
type Link struct {
	Src  digraph.Key
	Dest digraph.Key
}

// Selection is the solved result expressed in traxel space.
type Selection struct {
	Mergers    []Merger
	Detections []digraph.Key
	Links      []Link
	Divisions  []digraph.Key
}

// MergersDetectionsLinksDivisions translates a result into traxel space.
// Links between the consecutive traxels of an active tracklet are added
// explicitly since the model does not carry them.
func MergersDetectionsLinksDivisions(r *Result, mp *Mappings) (*Selection, error) {
	sel := &Selection{}
	for _, d := range r.DetectionResults {
		if d.Value <= 0 {
			continue
		}
		traxels, err := mp.Traxels(d.ID)
		if err != nil {
			return nil, fmt.Errorf("detection result: %w", err)
		}
		for _, tr := range traxels {
			sel.Detections = append(sel.Detections, tr)
			if d.Value > 1 {
				sel.Mergers = append(sel.Mergers, Merger{Traxel: tr, Count: d.Value})
			}
		}
		for i := 1; i < len(traxels); i++ {
			sel.Links = append(sel.Links, Link{Src: traxels[i-1], Dest: traxels[i]})
		}
	}
	for _, l := range r.LinkingResults {
		if l.Value <= 0 {
			continue
		}
		src, err := mp.Traxels(l.Src)
		if err != nil {
			return nil, fmt.Errorf("linking result source: %w", err)
		}
		dest, err := mp.Traxels(l.Dest)
		if err != nil {
			return nil, fmt.Errorf("linking result target: %w", err)
		}
		sel.Links = append(sel.Links, Link{Src: src[len(src)-1], Dest: dest[0]})
	}
	for _, d := range r.DivisionResults {
		if !d.Value {
			continue
		}
		traxels, err := mp.Traxels(d.ID)
		if err != nil {
			return nil, fmt.Errorf("division result: %w", err)
		}
		sel.Divisions = append(sel.Divisions, traxels[len(traxels)-1])
	}
	return sel, nil
}

// MergersPerTimestep maps timestep -> traxel id -> merge count.
type MergersPerTimestep map[int]map[int]int

// IsMerger reports whether traxel k is a merger.
func (m MergersPerTimestep) IsMerger(k digraph.Key) bool {
	_, ok := m[k.Timestep][k.ID]
	return ok
}

// Count returns the merge count of k, or 1 if k is not a merger.
func (m MergersPerTimestep) Count(k digraph.Key) int {
	if c, ok := m[k.Timestep][k.ID]; ok {
		return c
	}
	return 1
}

// GroupMergers builds the per-timestep merger table. Every timestep gets an
// entry, possibly empty.
func GroupMergers(mergers []Merger, timesteps []int) MergersPerTimestep {
	out := make(MergersPerTimestep, len(timesteps))
	for _, t := range timesteps {
		out[t] = make(map[int]int)
	}
	for _, m := range mergers {
		if out[m.Traxel.Timestep] == nil {
			out[m.Traxel.Timestep] = make(map[int]int)
		}
		out[m.Traxel.Timestep][m.Traxel.ID] = m.Count
	}
	return out
}

// DetectionsPerTimestep maps timestep -> set of active traxel ids.
type DetectionsPerTimestep map[int]map[int]bool

// GroupDetections builds the per-timestep detection sets.
func GroupDetections(detections []digraph.Key, timesteps []int) DetectionsPerTimestep {
	out := make(DetectionsPerTimestep, len(timesteps))
	for _, t := range timesteps {
		out[t] = make(map[int]bool)
	}
	for _, d := range detections {
		if out[d.Timestep] == nil {
			out[d.Timestep] = make(map[int]bool)
		}
		out[d.Timestep][d.ID] = true
	}
	return out
}

// LinksPerTimestep groups links by the timestep of their target.
type LinksPerTimestep map[int][]Link

// GroupLinks builds the per-timestep link lists.
func GroupLinks(links []Link, timesteps []int) LinksPerTimestep {
	out := make(LinksPerTimestep, len(timesteps))
	for _, t := range timesteps {
		out[t] = nil
	}
	for _, l := range links {
		out[l.Dest.Timestep] = append(out[l.Dest.Timestep], l)
	}
	return out
}

// DivisionsPerTimestep maps timestep -> dividing traxel id -> its two children.
type DivisionsPerTimestep map[int]map[int][2]digraph.Key

// Divides reports whether traxel k divides.
func (d DivisionsPerTimestep) Divides(k digraph.Key) bool {
	_, ok := d[k.Timestep][k.ID]
	return ok
}

// GroupDivisions resolves the two children of every division from the
// selected links leaving the dividing traxel.
func GroupDivisions(divisions []digraph.Key, links LinksPerTimestep, timesteps []int) (DivisionsPerTimestep, error) {
	out := make(DivisionsPerTimestep, len(timesteps))
	for _, t := range timesteps {
		out[t] = make(map[int][2]digraph.Key)
	}
	for _, div := range divisions {
		var children []digraph.Key
		for _, l := range links[div.Timestep+1] {
			if l.Src == div {
				children = append(children, l.Dest)
			}
		}
		if len(children) != 2 {
			return nil, fmt.Errorf("traxel %v has %d children: %w", div, len(children), ErrDivisionChildren)
		}
		if out[div.Timestep] == nil {
			out[div.Timestep] = make(map[int][2]digraph.Key)
		}
		out[div.Timestep][div.ID] = [2]digraph.Key{children[0], children[1]}
	}
	return out, nil
}

// MergerLinks returns, in timestep order, every selected link whose source
// or target is a merger.
func MergerLinks(links LinksPerTimestep, mergers MergersPerTimestep, timesteps []int) []Link {
	var out []Link
	for _, t := range timesteps {
		for _, l := range links[t] {
			if mergers.IsMerger(l.Src) || mergers.IsMerger(l.Dest) {
				out = append(out, l)
			}
		}
	}
	return out
}
