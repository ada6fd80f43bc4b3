package metro_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/testutil"
)

func TestFindStationExactNames(t *testing.T) {
	n := testutil.BuildNetwork(t)

	st := n.FindStation("Холодна гора", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "kholodna_hora", st.ID)

	st = n.FindStation("kholodna hora", "en")
	require.NotNil(t, st)
	assert.Equal(t, "kholodna_hora", st.ID)

	st = n.FindStation("  УНІВЕРСИТЕТ ", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "university", st.ID)
}

func TestFindStationAliases(t *testing.T) {
	n := testutil.BuildNetwork(t)

	st := n.FindStation("хтз", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "traktornyi_zavod", st.ID)

	st = n.FindStation("Пушкінська", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "yaroslava_mudroho", st.ID)

	st = n.FindStation("героїв праці", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "saltivska", st.ID)
}

func TestEveryAliasMatchesItsCanonicalName(t *testing.T) {
	n := testutil.BuildNetwork(t)

	for alias, canonical := range n.Data.Aliases {
		byAlias := n.FindStation(alias, "ua")
		require.NotNil(t, byAlias, "alias %q did not resolve", alias)
		byName := n.FindStation(canonical, "ua")
		require.NotNil(t, byName, "canonical %q did not resolve", canonical)
		assert.Equal(t, byName.ID, byAlias.ID, "alias %q", alias)
	}
}

func TestFindStationSubstring(t *testing.T) {
	n := testutil.BuildNetwork(t)

	st := n.FindStation("барабаш", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "barabashova", st.ID)

	assert.Nil(t, n.FindStation("нема такої", "ua"))
	assert.Nil(t, n.FindStation("", "ua"))
}

func TestFindStationNormalizesQuotes(t *testing.T) {
	n := testutil.BuildNetwork(t)

	st := n.FindStation("«Держпром»", "ua")
	require.NotNil(t, st)
	assert.Equal(t, "derzhprom", st.ID)
}

func TestNetworkTopology(t *testing.T) {
	n := testutil.BuildNetwork(t)

	assert.Len(t, n.StationsOnLine(model.LineKholodnohirskoZavodska), 13)
	assert.Len(t, n.StationsOnLine(model.LineSaltivska), 8)
	assert.Len(t, n.StationsOnLine(model.LineOleksiivska), 9)

	// Orders are dense and 1-based on each line.
	for _, line := range model.Lines {
		for i, st := range n.StationsOnLine(line) {
			assert.Equal(t, i+1, st.Order)
			assert.Equal(t, line, st.Line)
		}
	}

	// Transfer links point at a different line and back at their origin.
	for id, st := range n.Stations() {
		if st.TransferTo == "" {
			continue
		}
		other := n.Station(st.TransferTo)
		require.NotNil(t, other, "transfer target of %s", id)
		assert.NotEqual(t, st.Line, other.Line)
		assert.Equal(t, id, other.TransferTo)
	}

	first, last := n.Terminals(model.LineSaltivska)
	assert.Equal(t, "istorychnyi_muzei", first)
	assert.Equal(t, "saltivska", last)
}

func TestStationNamesHaveBothLanguages(t *testing.T) {
	n := testutil.BuildNetwork(t)
	for _, st := range n.Stations() {
		assert.NotEmpty(t, st.NameUA)
		assert.NotEmpty(t, st.NameEN)
		assert.False(t, strings.HasPrefix(st.NameEN, " "))
	}
}
