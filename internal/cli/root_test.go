package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeIvanCervantes/hytra/internal/db"
	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/jsongraph"
	"github.com/JaimeIvanCervantes/hytra/internal/storage/sqlite"
)

// A single object that merges with itself at timestep 1: one traxel per
// frame, the middle one holding two objects.
const mergerGraphJSON = `{
  "nodes": [
    {"timestep": 0, "id": 1, "value": 1, "features": {"RegionCenter": [1, 0.5]}},
    {"timestep": 1, "id": 1, "value": 2},
    {"timestep": 2, "id": 1, "value": 1, "features": {"RegionCenter": [1, 0.5]}}
  ],
  "edges": [
    {"src": {"timestep": 0, "id": 1}, "dest": {"timestep": 1, "id": 1}, "value": 1},
    {"src": {"timestep": 1, "id": 1}, "dest": {"timestep": 2, "id": 1}, "value": 1}
  ]
}`

const blobFrameJSON = `{"labels": [[1, 1, 0], [0, 0, 0], [1, 1, 0]]}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func mergerFixture(t *testing.T) (graph, coords string) {
	t.Helper()
	dir := t.TempDir()
	graph = writeFile(t, filepath.Join(dir, "graph.json"), mergerGraphJSON)
	coords = filepath.Join(dir, "frames")
	for _, name := range []string{"0.json", "1.json", "2.json"} {
		writeFile(t, filepath.Join(coords, name), blobFrameJSON)
	}
	return graph, coords
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "hytra", cmd.Use)
	assert.Contains(t, cmd.Long, "merger")
	assert.Contains(t, cmd.Version, "dev")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"resolve", "export", "compare", "runs"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "", cfg.DefValue)
}

func TestInvalidConfigRejected(t *testing.T) {
	graph, coords := mergerFixture(t)
	cfgPath := writeFile(t, filepath.Join(t.TempDir(), "bad.json"), `{"num_states": 0}`)

	_, err := execute(t, "--config", cfgPath, "resolve",
		"--graph", graph, "--coords", coords, "--out", filepath.Join(t.TempDir(), "out.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestResolveCommand(t *testing.T) {
	graph, coords := mergerFixture(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "resolved.json")
	dbPath := filepath.Join(dir, "runs.db")
	plotPath := filepath.Join(dir, "tracks.png")

	out, err := execute(t, "resolve", "-q",
		"--graph", graph, "--coords", coords, "--out", outPath,
		"--db", dbPath, "--plot", plotPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Resolved 1 mergers in 1 timesteps")
	assert.Contains(t, out, "Recorded run ")

	hg, err := hypotheses.LoadGraphFile(outPath)
	require.NoError(t, err)
	assert.False(t, hg.HasNode(hypotheses.NodeKey{Timestep: 1, ID: 1}), "merger replaced")
	for _, id := range []int{2, 3} {
		n, ok := hg.Node(hypotheses.NodeKey{Timestep: 1, ID: id})
		require.True(t, ok, "object %d", id)
		assert.Equal(t, 1, n.Value)
		assert.Len(t, n.Traxel.Features["RegionCenter"], 2)
	}
	assert.Equal(t, 4, hg.CountNodes())
	assert.Equal(t, 4, hg.CountArcs())

	_, err = os.Stat(plotPath)
	assert.NoError(t, err)

	database, err := db.Open(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := sqlite.NewRunStore(database.DB).List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, graph, runs[0].GraphPath)
	assert.Equal(t, plotPath, runs[0].PlotPath)
	assert.Equal(t, 1, runs[0].MergerCount)
	assert.Equal(t, 2, runs[0].NewObjectCount)

	var cfg map[string]interface{}
	require.NoError(t, json.Unmarshal(runs[0].ConfigJSON, &cfg))
	assert.Contains(t, cfg, "num_states")
}

func TestResolveRequiresFlags(t *testing.T) {
	_, err := execute(t, "resolve", "--graph", "g.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestRunsCommand(t *testing.T) {
	graph, coords := mergerFixture(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")

	out, err := execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")

	out, err = execute(t, "resolve", "-q",
		"--graph", graph, "--coords", coords, "--out", filepath.Join(dir, "out.json"), "--db", dbPath)
	require.NoError(t, err)
	idx := strings.Index(out, "Recorded run ")
	require.GreaterOrEqual(t, idx, 0)
	runID := strings.TrimSpace(out[idx+len("Recorded run "):])

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "MERGERS")

	out, err = execute(t, "runs", "--db", dbPath, "--show", runID)
	require.NoError(t, err)
	assert.Equal(t, "t=1 merger=1 -> [2 3]\n", out)

	out, err = execute(t, "runs", "--db", dbPath, "--delete", runID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted run "+runID)

	_, err = execute(t, "runs", "--db", dbPath, "--show", runID)
	assert.ErrorIs(t, err, sqlite.ErrRunNotFound)
}

func TestCompareCommand(t *testing.T) {
	graph, _ := mergerFixture(t)

	out, err := execute(t, "compare", "--json", graph, graph)
	require.NoError(t, err)

	var got compareOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1.0, got.Precision)
	assert.Equal(t, 1.0, got.Recall)
	assert.Equal(t, 2, got.Matched)
	assert.Zero(t, got.BaseOnly)
	assert.Zero(t, got.ContestantOnly)

	_, err = execute(t, "compare", graph)
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	graph, _ := mergerFixture(t)
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	resultPath := filepath.Join(dir, "result.json")

	out, err := execute(t, "export", "--graph", graph, "--out", modelPath, "--result", resultPath)
	require.NoError(t, err)
	assert.Contains(t, out, "3 segmentation and 2 linking hypotheses")

	data, err := os.ReadFile(modelPath)
	require.NoError(t, err)
	var model jsongraph.Model
	require.NoError(t, json.Unmarshal(data, &model))
	require.Len(t, model.SegmentationHypotheses, 3)
	// num_states defaults to 2: states 0, 1 and 2.
	assert.Len(t, model.SegmentationHypotheses[0].Features, 3)
	assert.Len(t, model.LinkingHypotheses[0].Features, 3)

	data, err = os.ReadFile(resultPath)
	require.NoError(t, err)
	var result jsongraph.Result
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.DetectionResults, 3)
}

func TestTransitionProbabilities(t *testing.T) {
	probs := transitionProbabilities((&RootOptions{}).ResolverConfig())

	a := hypotheses.NewTraxel(0, 1)
	b := hypotheses.NewTraxel(1, 1)
	got := probs(a, b)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, got, "no centers")

	a.Features["RegionCenter"] = []float64{0, 0}
	b.Features["RegionCenter"] = []float64{0, 0}
	got = probs(a, b)
	assert.InDelta(t, 1.0, got[1], 1e-6, "same place")
	assert.InDelta(t, 0.0, got[0], 1e-6)
}

func TestDefaultStateProbabilities(t *testing.T) {
	probs := defaultStateProbabilities(2)
	require.Len(t, probs, 3)
	assert.InDelta(t, 1.0, probs[0]+probs[1]+probs[2], 1e-12)
	assert.Equal(t, 0.8, probs[1])
}
