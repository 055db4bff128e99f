package hypotheses

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type fileNode struct {
	Timestep      int                  `json:"timestep"`
	ID            int                  `json:"id"`
	UUID          *int                 `json:"uuid,omitempty"`
	Value         int                  `json:"value"`
	DivisionValue *int                 `json:"divisionValue,omitempty"`
	Features      map[string][]float64 `json:"features,omitempty"`
}

type fileEdge struct {
	Src   NodeKey `json:"src"`
	Dest  NodeKey `json:"dest"`
	Value int     `json:"value"`
}

type graphFile struct {
	Nodes []fileNode `json:"nodes"`
	Edges []fileEdge `json:"edges"`
}

// LoadGraphFile reads a hypotheses graph with its selected solution from a
// JSON file.
func LoadGraphFile(path string) (*Graph, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse graph JSON: %w", err)
	}

	h := NewGraph()
	for _, fn := range gf.Nodes {
		tr := NewTraxel(fn.Timestep, fn.ID)
		for name, v := range fn.Features {
			tr.Features[name] = v
		}
		n := h.AddNodeFromTraxel(tr, fn.Value)
		if fn.UUID != nil {
			n.UUID = *fn.UUID
		}
		n.DivisionValue = fn.DivisionValue
	}
	for _, fe := range gf.Edges {
		e, err := h.AddEdge(fe.Src, fe.Dest)
		if err != nil {
			return nil, fmt.Errorf("graph file edge %v -> %v: %w", fe.Src, fe.Dest, err)
		}
		e.Value = fe.Value
	}
	return h, nil
}

// WriteGraphFile stores the graph and its selected solution as JSON.
func (h *Graph) WriteGraphFile(path string) error {
	gf := graphFile{Nodes: []fileNode{}, Edges: []fileEdge{}}
	for _, k := range h.Keys() {
		n := h.mustNode(k)
		fn := fileNode{Timestep: k.Timestep, ID: k.ID, Value: n.Value, DivisionValue: n.DivisionValue}
		if n.UUID != NoUUID {
			uuid := n.UUID
			fn.UUID = &uuid
		}
		if n.Traxel != nil && len(n.Traxel.Features) > 0 {
			fn.Features = n.Traxel.Features
		}
		gf.Nodes = append(gf.Nodes, fn)
	}
	for _, e := range h.Edges() {
		gf.Edges = append(gf.Edges, fileEdge{Src: e.From, Dest: e.To, Value: e.Value.Value})
	}

	data, err := json.MarshalIndent(gf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}
