package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/karakol/delivery/internal/service/models/apperr"
)

// DistanceProvider resolves the road distance in meters between two points.
// Implementations talk to external routing APIs, so callers must treat
// failures as advisory: distance-based pricing falls back to zone pricing.
type DistanceProvider interface {
	Distance(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (float64, error)
}

const defaultBaseURL = "https://api.2gis.com/v1"

// MatrixClient queries the 2GIS distance matrix API.
type MatrixClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type MatrixClientOption func(*MatrixClient)

func WithBaseURL(baseURL string) MatrixClientOption {
	return func(c *MatrixClient) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) MatrixClientOption {
	return func(c *MatrixClient) {
		c.httpClient = httpClient
	}
}

// NewMatrixClient builds a client from config. The API key comes from
// geo.api_key; an empty key makes every lookup fail, which degrades pricing
// to the zone fallback instead of breaking checkout.
func NewMatrixClient(opts ...MatrixClientOption) *MatrixClient {
	c := &MatrixClient{
		baseURL: viper.GetString("geo.base_url"),
		apiKey:  viper.GetString("geo.api_key"),
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type matrixResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// Distance asks the matrix API for the road distance between two points.
// Points are sent as lon,lat pairs, which is what the API expects.
func (c *MatrixClient) Distance(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (float64, error) {
	if c.apiKey == "" {
		return 0, apperr.Unavailablef("geo api key is not configured")
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("origins", fmt.Sprintf("%f,%f", fromLon, fromLat))
	params.Set("destinations", fmt.Sprintf("%f,%f", toLon, toLat))
	params.Set("type", "car")
	params.Set("output", "json")

	reqURL := c.baseURL + "/matrix?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnavailable, err, "failed to build distance request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnavailable, err, "distance request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, apperr.Unavailablef("distance request returned status %d", resp.StatusCode)
	}

	var body matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, apperr.Wrap(apperr.KindUnavailable, err, "failed to decode distance response")
	}

	if len(body.Routes) == 0 {
		return 0, apperr.Unavailablef("distance response contains no routes")
	}

	return body.Routes[0].Distance, nil
}
