package jsongraph

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeIvanCervantes/hytra/internal/digraph"
)

func key(t, id int) digraph.Key { return digraph.Key{Timestep: t, ID: id} }

// fixture: uuid 7 is a two-traxel tracklet, uuid 8 a 2-merger at t=2,
// uuid 9 follows the merger, uuid 10 is unselected.
func fixture(t *testing.T) (*Model, *Result) {
	t.Helper()
	modelJSON := `{
		"segmentationHypotheses": [
			{"id": 7, "timestep": [0, 1]},
			{"id": 8, "timestep": [2, 2]},
			{"id": 9, "timestep": [3, 3]},
			{"id": 10, "timestep": [2, 2]}
		],
		"linkingHypotheses": [
			{"src": 7, "dest": 8},
			{"src": 8, "dest": 9},
			{"src": 7, "dest": 10}
		],
		"traxelToUniqueId": {
			"0": {"1": 7},
			"1": {"1": 7},
			"2": {"1": 8, "5": 10},
			"3": {"1": 9}
		}
	}`
	resultJSON := `{
		"detectionResults": [
			{"id": 7, "value": 2}, {"id": 8, "value": 2},
			{"id": 9, "value": 2}, {"id": 10, "value": 0}
		],
		"linkingResults": [
			{"src": 7, "dest": 8, "value": 2},
			{"src": 8, "dest": 9, "value": 2},
			{"src": 7, "dest": 10, "value": 0}
		],
		"divisionResults": [{"id": 9, "value": false}]
	}`
	var m Model
	require.NoError(t, json.Unmarshal([]byte(modelJSON), &m))
	var r Result
	require.NoError(t, json.Unmarshal([]byte(resultJSON), &r))
	return &m, &r
}

func TestNewMappings(t *testing.T) {
	m, _ := fixture(t)
	mp, err := NewMappings(m)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, mp.Timesteps)
	assert.Equal(t, []digraph.Key{key(0, 1), key(1, 1)}, mp.UUIDToTraxels[7])
	assert.Equal(t, 10, mp.MaxUUID())

	uuid, ok := mp.UUID(key(2, 5))
	require.True(t, ok)
	assert.Equal(t, 10, uuid)

	_, err = mp.Traxels(99)
	assert.True(t, errors.Is(err, ErrUnknownUUID))
}

func TestNewMappingsRejectsBadKeys(t *testing.T) {
	m := &Model{TraxelToUniqueID: map[string]map[string]int{"x": {"1": 1}}}
	_, err := NewMappings(m)
	assert.Error(t, err)
}

func TestMergersDetectionsLinksDivisions(t *testing.T) {
	m, r := fixture(t)
	mp, err := NewMappings(m)
	require.NoError(t, err)

	sel, err := MergersDetectionsLinksDivisions(r, mp)
	require.NoError(t, err)

	wantMergers := []Merger{
		{Traxel: key(0, 1), Count: 2},
		{Traxel: key(1, 1), Count: 2},
		{Traxel: key(2, 1), Count: 2},
		{Traxel: key(3, 1), Count: 2},
	}
	if diff := cmp.Diff(wantMergers, sel.Mergers); diff != "" {
		t.Errorf("mergers mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, sel.Detections, 4)
	assert.Empty(t, sel.Divisions)

	// Tracklet-internal link plus the two selected links.
	wantLinks := []Link{
		{Src: key(0, 1), Dest: key(1, 1)},
		{Src: key(1, 1), Dest: key(2, 1)},
		{Src: key(2, 1), Dest: key(3, 1)},
	}
	if diff := cmp.Diff(wantLinks, sel.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckModel(t *testing.T) {
	m, _ := fixture(t)
	mp, err := NewMappings(m)
	require.NoError(t, err)
	require.NoError(t, mp.CheckModel(m))

	m.LinkingHypotheses = append(m.LinkingHypotheses, LinkingHypothesis{Src: 9, Dest: 11})
	assert.ErrorIs(t, mp.CheckModel(m), ErrUnknownUUID)

	m, _ = fixture(t)
	m.SegmentationHypotheses = append(m.SegmentationHypotheses, SegmentationHypothesis{ID: 11})
	err = mp.CheckModel(m)
	assert.ErrorIs(t, err, ErrUnknownUUID)
	assert.Contains(t, err.Error(), "uuid 11")
}

func TestMergersDetectionsLinksDivisionsUnknownUUID(t *testing.T) {
	m, r := fixture(t)
	mp, err := NewMappings(m)
	require.NoError(t, err)

	r.LinkingResults = append(r.LinkingResults, LinkingResult{Src: 7, Dest: 42, Value: 1})
	_, err = MergersDetectionsLinksDivisions(r, mp)
	assert.True(t, errors.Is(err, ErrUnknownUUID))
}

func TestGrouping(t *testing.T) {
	timesteps := []int{0, 1, 2}
	mergers := GroupMergers([]Merger{{Traxel: key(1, 4), Count: 3}}, timesteps)
	assert.True(t, mergers.IsMerger(key(1, 4)))
	assert.False(t, mergers.IsMerger(key(1, 5)))
	assert.Equal(t, 3, mergers.Count(key(1, 4)))
	assert.Equal(t, 1, mergers.Count(key(2, 4)))
	assert.NotNil(t, mergers[0])

	dets := GroupDetections([]digraph.Key{key(0, 1), key(1, 4)}, timesteps)
	assert.True(t, dets[1][4])
	assert.Empty(t, dets[2])

	links := GroupLinks([]Link{
		{Src: key(0, 1), Dest: key(1, 4)},
		{Src: key(1, 4), Dest: key(2, 2)},
		{Src: key(1, 4), Dest: key(2, 3)},
	}, timesteps)
	assert.Len(t, links[2], 2)

	divs, err := GroupDivisions([]digraph.Key{key(1, 4)}, links, timesteps)
	require.NoError(t, err)
	assert.True(t, divs.Divides(key(1, 4)))
	assert.Equal(t, [2]digraph.Key{key(2, 2), key(2, 3)}, divs[1][4])

	_, err = GroupDivisions([]digraph.Key{key(0, 1)}, links, timesteps)
	assert.True(t, errors.Is(err, ErrDivisionChildren))

	ml := MergerLinks(links, mergers, timesteps)
	assert.Len(t, ml, 3)
}

func TestFilterModelAndResult(t *testing.T) {
	m, r := fixture(t)
	keepNode := func(uuid int) bool { return uuid != 8 }
	keepLink := func(src, dest int) bool { return src != 8 && dest != 8 }

	fm := FilterModel(m, keepNode, keepLink)
	require.Len(t, fm.SegmentationHypotheses, 3)
	require.Len(t, fm.LinkingHypotheses, 1)
	assert.Equal(t, 10, fm.LinkingHypotheses[0].Dest)

	// The mapping is a deep copy.
	fm.SetUniqueID(2, 99, 100)
	_, leaked := m.TraxelToUniqueID["2"]["99"]
	assert.False(t, leaked)

	fr := FilterResult(r, keepNode, keepLink)
	assert.Len(t, fr.DetectionResults, 3)
	assert.Len(t, fr.LinkingResults, 1)
	assert.Len(t, fr.DivisionResults, 1)
}

func TestUnionResultsOverlayWins(t *testing.T) {
	base := &Result{
		DetectionResults: []DetectionResult{{ID: 2, Value: 1}, {ID: 1, Value: 1}},
		LinkingResults:   []LinkingResult{{Src: 1, Dest: 2, Value: 1}},
	}
	overlay := &Result{
		DetectionResults: []DetectionResult{{ID: 2, Value: 0}, {ID: 3, Value: 1}},
		LinkingResults:   []LinkingResult{{Src: 2, Dest: 3, Value: 1}},
	}

	got := UnionResults(base, overlay)
	want := &Result{
		DetectionResults: []DetectionResult{{ID: 1, Value: 1}, {ID: 2, Value: 0}, {ID: 3, Value: 1}},
		LinkingResults:   []LinkingResult{{Src: 1, Dest: 2, Value: 1}, {Src: 2, Dest: 3, Value: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("union mismatch (-want +got):\n%s", diff)
	}
}
