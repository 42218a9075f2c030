package domain

import "time"

// InputRow is one coordinate to enrich. RowID is unique within a run.
type InputRow struct {
	RowID     int64
	Coord     Coordinate
	Sentiment *string
	Timestamp *string
}

// EnrichedRow merges both services' answers for one InputRow.
type EnrichedRow struct {
	RowID     int64   `json:"row_id"`
	Timestamp *string `json:"timestamp"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	LatLon    string  `json:"latlon"`

	GoogleAddress    *string `json:"google_address"`
	GoogleZipCode    *string `json:"google_zip_code"`
	GoogleCity       *string `json:"google_city"`
	GoogleCountry    *string `json:"google_country"`
	GoogleState      *string `json:"google_state"`
	GoogleNearestPOI *string `json:"google_nearest_poi"`

	NominatimAddress *string `json:"nominatim_address"`
	NominatimZipCode *string `json:"nominatim_zip_code"`
	NominatimCity    *string `json:"nominatim_city"`
	NominatimCountry *string `json:"nominatim_country"`
	NominatimState   *string `json:"nominatim_state"`

	Sentiment *string `json:"sentiment"`

	ProcessedAt time.Time `json:"processed_at"`
}

// NewEnrichedRow assembles the output record for row from both answers.
func NewEnrichedRow(row InputRow, google, nominatim NormalizedAddress, processedAt time.Time) EnrichedRow {
	return EnrichedRow{
		RowID:     row.RowID,
		Timestamp: row.Timestamp,
		Lat:       row.Coord.Lat,
		Lon:       row.Coord.Lon,
		LatLon:    row.Coord.LatLon(),

		GoogleAddress:    google.FormattedAddress,
		GoogleZipCode:    google.PostalCode,
		GoogleCity:       google.City,
		GoogleCountry:    google.Country,
		GoogleState:      google.State,
		GoogleNearestPOI: google.POI,

		NominatimAddress: nominatim.FormattedAddress,
		NominatimZipCode: nominatim.PostalCode,
		NominatimCity:    nominatim.City,
		NominatimCountry: nominatim.Country,
		NominatimState:   nominatim.State,

		Sentiment:   row.Sentiment,
		ProcessedAt: processedAt,
	}
}
