package domain

import "time"

// Summary describes coverage of a finished run.
type Summary struct {
	RunID                    string        `json:"run_id"`
	Rows                     int           `json:"rows"`
	GoogleAddressCoverage    int           `json:"google_address_coverage"`
	NominatimAddressCoverage int           `json:"nominatim_address_coverage"`
	UniqueGoogleZip          int           `json:"unique_google_zip"`
	UniqueGoogleCity         int           `json:"unique_google_city"`
	UniqueNominatimZip       int           `json:"unique_nominatim_zip"`
	UniqueNominatimCity      int           `json:"unique_nominatim_city"`
	Duration                 time.Duration `json:"duration"`
}

// Summarize counts non-null addresses and distinct non-null postal codes and
// cities over rows.
func Summarize(rows []EnrichedRow) Summary {
	s := Summary{Rows: len(rows)}
	googleZips := map[string]struct{}{}
	googleCities := map[string]struct{}{}
	nominatimZips := map[string]struct{}{}
	nominatimCities := map[string]struct{}{}

	for i := range rows {
		r := &rows[i]
		if r.GoogleAddress != nil {
			s.GoogleAddressCoverage++
		}
		if r.NominatimAddress != nil {
			s.NominatimAddressCoverage++
		}
		addDistinct(googleZips, r.GoogleZipCode)
		addDistinct(googleCities, r.GoogleCity)
		addDistinct(nominatimZips, r.NominatimZipCode)
		addDistinct(nominatimCities, r.NominatimCity)
	}

	s.UniqueGoogleZip = len(googleZips)
	s.UniqueGoogleCity = len(googleCities)
	s.UniqueNominatimZip = len(nominatimZips)
	s.UniqueNominatimCity = len(nominatimCities)
	return s
}

func addDistinct(set map[string]struct{}, v *string) {
	if v != nil {
		set[*v] = struct{}{}
	}
}
