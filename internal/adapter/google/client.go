// Package google reverse-geocodes coordinates with the Google Geocoding API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/geo-enrichment/internal/domain"
)

const (
	// DefaultBaseURL is the Geocoding API JSON endpoint.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

	// DefaultResultType restricts answers to address-level results.
	DefaultResultType = "street_address|premise|subpremise|route"

	statusOK = "OK"
)

// poiTypes mark a result as a nearby point of interest.
var poiTypes = []string{"point_of_interest", "establishment", "premise"}

// Client implements domain.ReverseGeocoder using the Google Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	resultType string
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithResultType overrides the result_type filter. An empty value sends none.
func WithResultType(rt string) Option {
	return func(c *Client) { c.resultType = rt }
}

// NewClient creates a Google geocoding client. An empty apiKey is accepted
// here and reported by CheckCredentials on first use.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    DefaultBaseURL,
		resultType: DefaultResultType,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Service() domain.Service { return domain.ServiceGoogle }

// CheckCredentials reports a missing API key as a *domain.ConfigError.
func (c *Client) CheckCredentials() error {
	if c.apiKey == "" {
		return &domain.ConfigError{
			Service: domain.ServiceGoogle,
			Setting: "GOOGLE_API_KEY",
			Err:     domain.ErrMissingCredential,
		}
	}
	return nil
}

// ReverseGeocode converts coordinates to address details. Any status other
// than OK yields an empty address.
func (c *Client) ReverseGeocode(ctx context.Context, coord domain.Coordinate) (domain.NormalizedAddress, error) {
	if err := c.CheckCredentials(); err != nil {
		return domain.NormalizedAddress{}, err
	}

	params := url.Values{
		"latlng": {strconv.FormatFloat(coord.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"key":    {c.apiKey},
	}
	if c.resultType != "" {
		params.Set("result_type", c.resultType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.NormalizedAddress{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NormalizedAddress{}, c.transportErr(fmt.Errorf("reverse geocode request: %w", redact(err)))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NormalizedAddress{}, c.transportErr(fmt.Errorf("read body: %w", err))
	}

	var gr response
	if err := json.Unmarshal(body, &gr); err != nil {
		return domain.NormalizedAddress{}, c.transportErr(fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err))
	}

	if gr.Status != statusOK || len(gr.Results) == 0 {
		c.logger.Warn("google status not OK",
			"status", gr.Status,
			"error_message", gr.ErrorMessage,
			"lat", coord.Lat,
			"lon", coord.Lon,
		)
		return domain.NormalizedAddress{}, nil
	}

	return normalize(gr.Results), nil
}

func (c *Client) transportErr(err error) error {
	return &domain.TransportError{Service: domain.ServiceGoogle, Err: err}
}

func normalize(results []result) domain.NormalizedAddress {
	top := results[0]
	addr := domain.NormalizedAddress{
		FormattedAddress: domain.Optional(top.FormattedAddress),
		PostalCode:       domain.Optional(top.component("postal_code")),
		City: domain.FirstNonEmpty(
			top.component("locality"),
			top.component("postal_town"),
			top.component("sublocality"),
			top.component("administrative_area_level_2"),
		),
		State:   domain.Optional(top.component("administrative_area_level_1")),
		Country: domain.Optional(top.component("country")),
	}

	for _, r := range results {
		if slices.ContainsFunc(r.Types, func(t string) bool { return slices.Contains(poiTypes, t) }) {
			addr.POI = domain.Optional(r.FormattedAddress)
			break
		}
	}
	return addr
}

// redact strips the query string, which carries the API key, from URL errors.
func redact(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return err
	}
	u.RawQuery = ""
	return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
}

// Geocoding API response types.

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message"`
	Results      []result `json:"results"`
}

type result struct {
	FormattedAddress  string      `json:"formatted_address"`
	Types             []string    `json:"types"`
	AddressComponents []component `json:"address_components"`
}

type component struct {
	LongName string   `json:"long_name"`
	Types    []string `json:"types"`
}

// component returns the long name of the first component tagged typ.
func (r result) component(typ string) string {
	for _, c := range r.AddressComponents {
		if slices.Contains(c.Types, typ) {
			return c.LongName
		}
	}
	return ""
}
