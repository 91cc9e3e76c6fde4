package histo

import (
	"path/filepath"
	"testing"

	"github.com/ib-77/l1tnp/internal/trigger"
	"github.com/ib-77/l1tnp/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/hbook"
)

func record(pt float64, w *float64, l1 ...event.L1Record) *event.ProbeRecord {
	return &event.ProbeRecord{Pt: pt, Eta: 0.5, Phi: 1, Mass: 0.106, NMuon: 2, NProbes: 1, MCWeight: w, L1: l1}
}

func weight(w float64) *float64 {
	return &w
}

func TestVariable_Validate(t *testing.T) {
	for _, v := range DefaultVariables() {
		assert.NoError(t, v.Validate(), v.Name)
	}

	bad := []Variable{
		{Expression: "pt", Bins: 1, Max: 1},
		{Name: "x", Expression: "rapidity", Bins: 1, Max: 1},
		{Name: "x", Expression: "pt", Bins: 0, Max: 1},
		{Name: "x", Expression: "pt", Bins: 1, Min: 2, Max: 1},
	}
	for _, v := range bad {
		assert.ErrorIs(t, v.Validate(), ErrInvalidVariable)
	}
}

func TestVariable_Value(t *testing.T) {
	rec := record(30, nil)
	rec.Tags = []event.TagRecord{{MInv: 91}}

	v := Variable{Expression: "m_inv"}
	x, ok := v.Value(rec)
	require.True(t, ok)
	assert.Equal(t, 91.0, x)

	_, ok = v.Value(record(30, nil))
	assert.False(t, ok)

	assert.Equal(t, "Probe muon pT [GeV]", DefaultVariables()[0].Label())
}

func TestClopperPearson(t *testing.T) {
	lo, hi := ClopperPearson(5, 10, OneSigma)
	assert.InDelta(t, 1, lo+hi, 1e-9)
	assert.Greater(t, lo, 0.28)
	assert.Less(t, lo, 0.36)

	lo, hi = ClopperPearson(0, 10, OneSigma)
	assert.Equal(t, 0.0, lo)
	assert.Less(t, hi, 0.2)

	lo, hi = ClopperPearson(10, 10, OneSigma)
	assert.Equal(t, 1.0, hi)
	assert.Greater(t, lo, 0.8)

	lo, hi = ClopperPearson(0, 0, OneSigma)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestEfficiency(t *testing.T) {
	num := hbook.NewH1D(2, 0, 2)
	denom := hbook.NewH1D(2, 0, 2)
	for i := 0; i < 4; i++ {
		denom.Fill(0.5, 1)
	}
	num.Fill(0.5, 1)
	num.Fill(0.5, 1)

	points, err := Efficiency(num, denom)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, 0.5, points[0].X)
	assert.Equal(t, 1.0, points[0].XWidth)
	assert.Equal(t, 0.5, points[0].Eff)
	assert.Greater(t, points[0].ErrLow, 0.0)
	assert.Greater(t, points[0].ErrHigh, 0.0)

	assert.Equal(t, Point{X: 1.5, XWidth: 1}, points[1])

	_, err = Efficiency(hbook.NewH1D(3, 0, 2), denom)
	assert.ErrorIs(t, err, ErrBinningMismatch)
	_, err = Efficiency(hbook.NewH1D(2, 0, 4), denom)
	assert.ErrorIs(t, err, ErrBinningMismatch)
}

func TestFiller(t *testing.T) {
	reg, err := trigger.Default().Select([]string{"SingleMu", "MuOpen"})
	require.NoError(t, err)

	vars := []Variable{{Name: "probe_pt", Expression: "pt", Bins: 4, Min: 0, Max: 100}}
	f, err := NewFiller(vars, reg.Categories(0.4))
	require.NoError(t, err)

	f.Fill(record(30, weight(2), event.L1Record{Pt: 25, HwQual: 12, DR: 0.1}))
	f.Fill(record(30, weight(1), event.L1Record{Pt: 5, HwQual: 6, DR: 0.1}))
	f.Fill(record(60, weight(1)))
	assert.Equal(t, 3, f.Filled())

	denom := f.H1D("probe_pt", trigger.ValidProbe)
	require.NotNil(t, denom)
	assert.Equal(t, 3.0, denom.Binning.Bins[1].SumW())
	assert.Equal(t, 1.0, denom.Binning.Bins[2].SumW())
	assert.Equal(t, 2.0, f.H1D("probe_pt", "SingleMu").Binning.Bins[1].SumW())
	assert.Equal(t, 3.0, f.H1D("probe_pt", "MuOpen").Binning.Bins[1].SumW())
	assert.Nil(t, f.H1D("probe_pt", "DoubleMu"))

	tables, err := f.Efficiencies(reg)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "SingleMu", tables[0].Trigger)
	assert.InDelta(t, 2.0/3.0, tables[0].Points[1].Eff, 1e-12)
	assert.Equal(t, 0.0, tables[0].Points[2].Eff)
	assert.Equal(t, 1.0, tables[1].Points[1].Eff)
	assert.Equal(t, 0.0, tables[1].Points[1].ErrHigh)

	dir := t.TempDir()
	require.NoError(t, f.SaveYODA(filepath.Join(dir, "hists", "probe.yoda")))
	data, err := f.MarshalYODA()
	require.NoError(t, err)
	assert.Contains(t, string(data), "probe_pt__valid_probe")
	assert.Contains(t, string(data), "YODA_HISTO1D")

	path := filepath.Join(dir, "eff.yaml")
	require.NoError(t, SaveTables(path, tables))
	loaded, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, tables, loaded)
}

func TestNewFiller_InvalidVariable(t *testing.T) {
	_, err := NewFiller([]Variable{{Name: "x"}}, trigger.Default().Categories(0.4))
	assert.ErrorIs(t, err, ErrInvalidVariable)
}
