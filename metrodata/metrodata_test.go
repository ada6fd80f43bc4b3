package metrodata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledData(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kholodnohirsko_zavodska", "saltivska", "oleksiivska"}, d.LineOrder)
	assert.Len(t, d.StationsByLine["kholodnohirsko_zavodska"], 13)
	assert.Len(t, d.StationsByLine["saltivska"], 8)
	assert.Len(t, d.StationsByLine["oleksiivska"], 9)
}

func TestTransfersAreSymmetric(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	require.Len(t, d.Transfers, 6)
	for from, to := range d.Transfers {
		assert.Equal(t, from, d.Transfers[to])
	}
	assert.Equal(t, "istorychnyi_muzei", d.Transfers["maidan_konstytutsii"])
	assert.Equal(t, "metrobudivnykiv", d.Transfers["sportyvna"])
	assert.Equal(t, "derzhprom", d.Transfers["university"])
}

func TestAliasesTargetRealStations(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, stations := range d.StationsByLine {
		for _, st := range stations {
			names[strings.ToLower(st.NameUA)] = true
		}
	}

	for alias, canonical := range d.Aliases {
		assert.True(t, names[strings.ToLower(canonical)], "alias %q points at unknown %q", alias, canonical)
	}
	assert.Equal(t, "Тракторний завод", d.Aliases["хтз"])
}

func TestLineMetaComplete(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	for _, key := range d.LineOrder {
		meta, ok := d.LineMeta[key]
		require.True(t, ok, "line %s has no meta", key)
		assert.NotEmpty(t, meta.Color)
		assert.NotEmpty(t, meta.Emoji)
		assert.NotEmpty(t, meta.NameUA)
		assert.NotEmpty(t, meta.NameEN)
		assert.NotEmpty(t, meta.DisplayUA)
		assert.NotEmpty(t, meta.DisplayEN)
	}
	assert.Equal(t, "red", d.LineMeta["kholodnohirsko_zavodska"].Color)
}

func TestStationsBuildsOrdersAndTransfers(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	stations := d.Stations()
	assert.Len(t, stations, 30)

	kh := stations["kholodna_hora"]
	require.NotNil(t, kh)
	assert.Equal(t, 1, kh.Order)

	industrialna := stations["industrialna"]
	require.NotNil(t, industrialna)
	assert.Equal(t, 13, industrialna.Order)

	maidan := stations["maidan_konstytutsii"]
	require.NotNil(t, maidan)
	assert.Equal(t, "istorychnyi_muzei", maidan.TransferTo)
}

func TestDayTypesPresent(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	require.Contains(t, d.DayTypes, "weekday")
	require.Contains(t, d.DayTypes, "weekend")
	assert.NotEmpty(t, d.DayTypes["weekday"].NameUA)
}
