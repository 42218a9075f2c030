package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Service names a reverse-geocoding backend. The name is part of every cache key.
type Service string

const (
	ServiceGoogle    Service = "google"
	ServiceNominatim Service = "nominatim"
)

// NormalizedAddress is the common attribute set both services are reduced to.
// Nil means the service had no value; an all-nil address is a valid answer.
type NormalizedAddress struct {
	FormattedAddress *string `json:"formatted_address"`
	PostalCode       *string `json:"postal_code"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	Country          *string `json:"country"`
	// POI is only populated by Google.
	POI *string `json:"poi,omitempty"`
}

// IsEmpty reports whether every field is nil.
func (a NormalizedAddress) IsEmpty() bool {
	return a.FormattedAddress == nil && a.PostalCode == nil && a.City == nil &&
		a.State == nil && a.Country == nil && a.POI == nil
}

// Optional returns nil for an empty string and a pointer to s otherwise.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FirstNonEmpty returns the first non-empty value, or nil.
func FirstNonEmpty(values ...string) *string {
	for _, v := range values {
		if v != "" {
			return &v
		}
	}
	return nil
}

// ErrCorruptEntry is returned by DecodeAddress for payloads that are not a
// cache entry object.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// entryField binds a cache entry JSON key to an address field.
type entryField struct {
	key string
	ptr func(*NormalizedAddress) **string
}

var entrySchemas = map[Service][]entryField{
	ServiceGoogle: {
		{"google_formatted_address", func(a *NormalizedAddress) **string { return &a.FormattedAddress }},
		{"google_zip", func(a *NormalizedAddress) **string { return &a.PostalCode }},
		{"google_city", func(a *NormalizedAddress) **string { return &a.City }},
		{"google_state", func(a *NormalizedAddress) **string { return &a.State }},
		{"google_country", func(a *NormalizedAddress) **string { return &a.Country }},
		{"google_poi", func(a *NormalizedAddress) **string { return &a.POI }},
	},
	ServiceNominatim: {
		{"nominatim_address", func(a *NormalizedAddress) **string { return &a.FormattedAddress }},
		{"nominatim_zip", func(a *NormalizedAddress) **string { return &a.PostalCode }},
		{"nominatim_city", func(a *NormalizedAddress) **string { return &a.City }},
		{"nominatim_state", func(a *NormalizedAddress) **string { return &a.State }},
		{"nominatim_country", func(a *NormalizedAddress) **string { return &a.Country }},
	},
}

// EncodeAddress serializes an address as the service's cache entry.
func EncodeAddress(service Service, addr NormalizedAddress) ([]byte, error) {
	schema, ok := entrySchemas[service]
	if !ok {
		return nil, fmt.Errorf("encode cache entry: unknown service %q", service)
	}
	obj := make(map[string]*string, len(schema))
	for _, f := range schema {
		obj[f.key] = *f.ptr(&addr)
	}
	return json.Marshal(obj)
}

// DecodeAddress parses a cache entry written by EncodeAddress. Keys missing
// from the object decode as nil; anything that is not a JSON object of
// nullable strings is ErrCorruptEntry.
func DecodeAddress(service Service, payload []byte) (NormalizedAddress, error) {
	schema, ok := entrySchemas[service]
	if !ok {
		return NormalizedAddress{}, fmt.Errorf("decode cache entry: unknown service %q", service)
	}

	var obj map[string]*string
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return NormalizedAddress{}, fmt.Errorf("%w: %s", ErrCorruptEntry, service)
	}

	var addr NormalizedAddress
	for _, f := range schema {
		*f.ptr(&addr) = obj[f.key]
	}
	return addr, nil
}
