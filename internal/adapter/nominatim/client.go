// Package nominatim reverse-geocodes coordinates with an OpenStreetMap
// Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
)

const (
	// DefaultBaseURL is the public OpenStreetMap reverse endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org/reverse"

	// DefaultUserAgent identifies this tool; the public server rejects
	// anonymous clients.
	DefaultUserAgent = "geo-enrichment/1.0"
)

// Client implements domain.ReverseGeocoder against Nominatim's /reverse API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	email      string
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Empty baseURL or userAgent fall back
// to the defaults. email, when set, is sent with every request.
func NewClient(baseURL, userAgent, email string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: userAgent,
		email:     email,
		logger:    logger,
	}
}

func (c *Client) Service() domain.Service { return domain.ServiceNominatim }

// ReverseGeocode converts coordinates to address details. A non-200 answer
// yields an empty address.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.NormalizedAddress, error) {
	params := url.Values{
		"lat":            {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NormalizedAddress{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NormalizedAddress{}, c.transportErr(fmt.Errorf("reverse geocode request: %w", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("nominatim non-200 response",
			"status", resp.StatusCode,
			"body", string(body),
			"lat", coord.Lat,
			"lon", coord.Lon,
		)
		return domain.NormalizedAddress{}, nil
	}

	var nr response
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return domain.NormalizedAddress{}, c.transportErr(fmt.Errorf("decode response: %w", err))
	}

	return domain.NormalizedAddress{
		FormattedAddress: domain.Optional(nr.DisplayName),
		PostalCode:       domain.Optional(nr.Address.Postcode),
		City:             domain.FirstNonEmpty(nr.Address.City, nr.Address.Town, nr.Address.Village, nr.Address.Hamlet),
		State:            domain.Optional(nr.Address.State),
		Country:          domain.Optional(nr.Address.Country),
	}, nil
}

func (c *Client) transportErr(err error) error {
	return &domain.TransportError{Service: domain.ServiceNominatim, Err: err}
}

// Nominatim jsonv2 response types.

type response struct {
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
}

type address struct {
	Postcode string `json:"postcode"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	Hamlet   string `json:"hamlet"`
	State    string `json:"state"`
	Country  string `json:"country"`
}
