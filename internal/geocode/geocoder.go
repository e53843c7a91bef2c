// Package geocode turns coordinates into a district name.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// UnknownDistrict is returned when the service answers but names no usable place.
const UnknownDistrict = "Unknown"

// DistrictAdminLevel is the administrative level that corresponds to a
// district (zila) in Bangladesh.
const DistrictAdminLevel = 5

// Geocoder resolves a coordinate pair to a district name. ok is false on any
// failure; callers never learn whether the network or the lookup failed.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) (district string, ok bool)
}

// HTTPGeocoder calls a BigDataCloud-compatible reverse-geocode endpoint.
type HTTPGeocoder struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPGeocoder(baseURL string, timeout time.Duration) *HTTPGeocoder {
	return &HTTPGeocoder{baseURL: baseURL, client: http.DefaultClient, timeout: timeout}
}

type reverseResponse struct {
	City         string `json:"city"`
	Locality     string `json:"locality"`
	LocalityInfo struct {
		Administrative []struct {
			Name       string `json:"name"`
			AdminLevel int    `json:"adminLevel"`
		} `json:"administrative"`
	} `json:"localityInfo"`
}

func (g *HTTPGeocoder) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	data, err := g.fetch(ctx, lat, lon)
	if err != nil {
		log.Warn().Err(err).Float64("lat", lat).Float64("lon", lon).Msg("[geocode] reverse lookup failed")
		return "", false
	}
	return districtFrom(data), true
}

func (g *HTTPGeocoder) fetch(ctx context.Context, lat, lon float64) (*reverseResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("[geocode] closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed (%d)", resp.StatusCode)
	}

	var data reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode reverse geocode: %w", err)
	}
	return &data, nil
}

// districtFrom prefers the district-level administrative entry, then the
// city, then the locality.
func districtFrom(data *reverseResponse) string {
	for _, a := range data.LocalityInfo.Administrative {
		if a.AdminLevel == DistrictAdminLevel && a.Name != "" {
			return a.Name
		}
	}
	if data.City != "" {
		return data.City
	}
	if data.Locality != "" {
		return data.Locality
	}
	return UnknownDistrict
}
