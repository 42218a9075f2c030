package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rows := []EnrichedRow{
		{RowID: 1, GoogleAddress: Optional("a"), GoogleZipCode: Optional("63101"), GoogleCity: Optional("St. Louis"),
			NominatimAddress: Optional("x"), NominatimCity: Optional("St. Louis")},
		{RowID: 2, GoogleAddress: Optional("b"), GoogleZipCode: Optional("63101"), GoogleCity: Optional("St. Louis")},
		{RowID: 3, GoogleAddress: Optional("c"), GoogleZipCode: Optional("63105"), GoogleCity: Optional("Clayton"),
			NominatimZipCode: Optional("63105")},
		{RowID: 4},
	}

	s := Summarize(rows)
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.GoogleAddressCoverage)
	assert.Equal(t, 1, s.NominatimAddressCoverage)
	assert.Equal(t, 2, s.UniqueGoogleZip)
	assert.Equal(t, 2, s.UniqueGoogleCity)
	assert.Equal(t, 1, s.UniqueNominatimZip)
	assert.Equal(t, 1, s.UniqueNominatimCity)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestNewEnrichedRow(t *testing.T) {
	processed := time.Date(2023, time.March, 1, 12, 0, 0, 0, time.UTC)
	row := InputRow{
		RowID:     7,
		Coord:     Coordinate{Lat: 38.6270001, Lon: -90.1994},
		Sentiment: Optional("positive"),
		Timestamp: Optional("2023-02-14 10:00:00"),
	}
	google := NormalizedAddress{City: Optional("St. Louis"), POI: Optional("Busch Stadium")}
	nominatim := NormalizedAddress{Country: Optional("United States")}

	out := NewEnrichedRow(row, google, nominatim, processed)

	assert.Equal(t, int64(7), out.RowID)
	assert.Equal(t, "38.627,-90.1994", out.LatLon)
	assert.Equal(t, 38.6270001, out.Lat)
	assert.Equal(t, "St. Louis", *out.GoogleCity)
	assert.Equal(t, "Busch Stadium", *out.GoogleNearestPOI)
	assert.Nil(t, out.GoogleAddress)
	assert.Equal(t, "United States", *out.NominatimCountry)
	assert.Equal(t, "positive", *out.Sentiment)
	assert.Equal(t, "2023-02-14 10:00:00", *out.Timestamp)
	assert.Equal(t, processed, out.ProcessedAt)
}
