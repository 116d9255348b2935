package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wqpFixture = `OrganizationIdentifier,MonitoringLocationIdentifier,ActivityStartDate,CharacteristicName,ResultMeasureValue,ResultMeasure/MeasureUnitCode
USGS-OH,USGS-03255000,2026-02-10,Dissolved oxygen (DO),8.2,mg/l
USGS-OH,USGS-03255000,2026-02-24,Dissolved oxygen (DO),6.9,mg/l
USGS-OH,USGS-03260700,2026-02-18,pH,7.4,std units
USGS-OH,USGS-03260700,2026-02-18,Specific conductance,512,uS/cm
USGS-OH,USGS-03260700,2026-02-18,Benzene,0.4,ug/l
USGS-OH,USGS-03255000,2026-02-25,Turbidity,not detected,NTU
`

func TestParseWQPResults(t *testing.T) {
	summary, err := parseWQPResults([]byte(wqpFixture), 90)
	require.NoError(t, err)

	// Benzene is not a tracked characteristic; the non-numeric turbidity
	// row is skipped. Four samples across two stations survive.
	assert.Equal(t, 4, summary.SampleCount)
	assert.Equal(t, 2, summary.StationCount)
	assert.Equal(t, 90, summary.WindowDays)

	do, ok := summary.Latest["DO"]
	require.True(t, ok)
	assert.InDelta(t, 6.9, do.Value, 0.001) // latest sample wins
	assert.Equal(t, "USGS-03255000", do.SiteID)
	assert.Equal(t, "mg/l", do.Unit)

	cond, ok := summary.Latest["conductivity"]
	require.True(t, ok)
	assert.InDelta(t, 512, cond.Value, 0.001)

	_, ok = summary.Latest["turbidity"]
	assert.False(t, ok)
}

func TestParseWQPResultsEmptyExport(t *testing.T) {
	summary, err := parseWQPResults([]byte("OrganizationIdentifier,CharacteristicName,ResultMeasureValue\n"), 30)
	require.NoError(t, err)
	assert.Zero(t, summary.SampleCount)
	assert.Zero(t, summary.StationCount)
	assert.Empty(t, summary.Latest)
}

func TestParseWQPResultsNoHeader(t *testing.T) {
	_, err := parseWQPResults(nil, 30)
	assert.Error(t, err)
}
