package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ib-77/l1tnp/internal/histo"
	"github.com/ib-77/l1tnp/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zLine is a Z->mumu candidate. Only the leading muon has an L1 tag; the
// other one, the probe, fired DoubleMu but not SingleMu.
func zLine(id int, weight float64) string {
	return fmt.Sprintf(`{"run":367883,"luminosityBlock":5,"event":%d,"process_id":51,"mc_weight":%g,`+
		`"Muon":{"pt":[45,44],"eta":[0.2,-0.3],"phi":[0.1,-3.0],"mass":[0.106,0.106],"charge":[-1,1],"mediumId":[true,true]},`+
		`"L1Mu":{"pt":[43,10],"eta":[0.21,-0.31],"phi":[0.11,-2.99],"hwQual":[12,8],"bx":[0,0]}}`, id, weight)
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dy.jsonl")
	var lines []string
	for i := 1; i <= 5; i++ {
		lines = append(lines, zLine(i, 0.5))
	}
	lines = append(lines, `{"run":367883,"event":99,"process_id":51,"mc_weight":1,"Muon":{},"L1Mu":{}}`)
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0644))

	configPath := filepath.Join(dir, "l1tnp.yaml")
	yml := fmt.Sprintf(`
dataset:
  name: dy
  input: %s
  is_mc: true
  chunk_size: 2
histograms:
  triggers: [SingleMu, DoubleMu]
  plot_format: png
output:
  dir: %s
runner:
  workers: 2
logging:
  level: warn
`, input, filepath.Join(dir, "out"))
	require.NoError(t, os.WriteFile(configPath, []byte(yml), 0644))

	out := execute(t, "config", "--config", configPath)
	assert.Contains(t, out, "max_dr: 0.4")
	assert.Contains(t, out, "chunk_size: 2")

	out = execute(t, "reduce", "--config", configPath)
	assert.Contains(t, out, "3 chunks, 6 events, 5 probes")

	acc, err := stats.Load(filepath.Join(dir, "out", "dy_stats.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), acc.Counter(stats.KeyEvents))
	assert.Equal(t, int64(5), acc.Counter(stats.EventsKey("selected")))
	assert.InDelta(t, 3.5, acc.Weight(stats.KeySumMCWeight), 1e-12)
	assert.InDelta(t, 2.5, acc.ProcessWeight(51), 1e-12)

	out = execute(t, "hist", "--config", configPath)
	assert.Contains(t, out, "5 probes, 8 efficiency tables")

	tables, err := histo.LoadTables(filepath.Join(dir, "out", "dy_efficiency.yaml"))
	require.NoError(t, err)
	require.Len(t, tables, 8)
	assert.Equal(t, "probe_pt", tables[0].Variable)
	assert.Equal(t, "SingleMu", tables[0].Trigger)

	// bin [40, 45) holds every probe.
	assert.InDelta(t, 2.5, tables[0].Points[8].Denom, 1e-12)
	assert.Equal(t, 0.0, tables[0].Points[8].Eff)
	assert.Equal(t, "DoubleMu", tables[1].Trigger)
	assert.Equal(t, 1.0, tables[1].Points[8].Eff)
	assert.Equal(t, 0.0, tables[1].Points[9].Denom)

	_, err = os.Stat(filepath.Join(dir, "out", "plots", "probe_pt.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "out", "dy_hists.yoda"))
	assert.NoError(t, err)
}
