package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// API Docs: https://nominatim.org/release-docs/develop/api/Reverse/
// Sample request: https://nominatim.openstreetmap.org/reverse?lat=12.97&lon=77.59&format=json
const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"
	defaultUserAgent    = "geofence-editor/1.0"
)

type reverseAPIResponse struct {
	PlaceID     int    `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		County      string `json:"county"`
		State       string `json:"state"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// NominatimClient resolves coordinates through the OpenStreetMap Nominatim API
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewNominatimClient creates a client; empty arguments fall back to defaults
func NewNominatimClient(baseURL, userAgent string) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &NominatimClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		userAgent:  userAgent,
	}
}

// Reverse looks up the place at the given coordinate
func (c *NominatimClient) Reverse(ctx context.Context, latitude, longitude float64) (Place, error) {
	place, err := c.reverse(ctx, latitude, longitude)
	if err != nil {
		return Place{}, &GeocodingError{Latitude: latitude, Longitude: longitude, Cause: err}
	}
	return place, nil
}

func (c *NominatimClient) reverse(ctx context.Context, latitude, longitude float64) (Place, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return Place{}, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("lat", fmt.Sprintf("%f", latitude))
	q.Set("lon", fmt.Sprintf("%f", longitude))
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("failed to build request: %w", err)
	}
	// Nominatim usage policy requires an identifying user agent
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Place{}, fmt.Errorf("fetch returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp reverseAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Place{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Error != "" {
		return Place{}, fmt.Errorf("lookup failed: %s", apiResp.Error)
	}

	return translatePlace(&apiResp), nil
}

// translatePlace picks the most specific settlement name available
func translatePlace(resp *reverseAPIResponse) Place {
	city := resp.Address.City
	if city == "" {
		city = resp.Address.Town
	}
	if city == "" {
		city = resp.Address.Village
	}
	if city == "" {
		city = resp.Address.County
	}

	return Place{
		Country:     resp.Address.Country,
		CountryCode: resp.Address.CountryCode,
		City:        city,
		DisplayName: resp.DisplayName,
	}
}
