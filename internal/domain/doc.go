// Package domain models coordinate enrichment: input points, the normalized
// address fields produced by each reverse-geocoding service, and the merged
// output row.
//
// # Coordinate identity
//
// A coordinate has two independent identities:
//
//	cache identity:  latitude and longitude rounded to 5 decimals (~1.1 m)
//	output identity: latitude and longitude rounded to 6 decimals, joined as "lat,lon"
//
// Rounded components are rendered as the shortest decimal that round-trips,
// with a trailing ".0" for integral values and exponent form below 1e-4
// ("38.627", "-90.0", "1e-05"). Cache directories written by earlier tooling
// were keyed with this rendering, so digests must not drift. See [FormatRounded].
//
// # Cache keys
//
// A cache key is the SHA-1 hex digest of "{service}:{lat5},{lon5}", e.g.
//
//	google:38.627,-90.1994  →  sha1 hex
//
// The service name is part of the pre-digest string, so the two services never
// share an entry even though they share a store.
//
// # Cache entries
//
// Entries are JSON objects whose keys carry the service prefix
// ("google_zip", "nominatim_city", ...). Every key is present and may be null.
// An all-null entry is a valid cached answer: the service was reached and had
// nothing for the coordinate. See [EncodeAddress] and [DecodeAddress].
package domain
