package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"supmap-directions/internal/gis"
	"supmap-directions/internal/navigation"
	"time"
)

// DefaultBaseURL is the Google Directions JSON endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

type Client struct {
	baseURL    string
	apiKey     string
	mode       TravelMode
	httpClient *http.Client
}

type ClientOptions struct {
	Timeout time.Duration
	// Mode is sent as the "mode" parameter when set.
	Mode TravelMode
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 7 * time.Second,
	}
}

func NewClient(baseURL, apiKey string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		mode:       opts.Mode,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchRoute asks the directions service for a route from origin to the place
// and decodes the overview polyline of the first candidate. Further candidates
// are only counted.
func (c *Client) FetchRoute(ctx context.Context, origin navigation.Point, destination navigation.PlaceID) (*navigation.Route, error) {
	reqURL, err := c.routeURL(origin, destination)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to execute request: %w", navigation.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", navigation.ErrNetwork, resp.StatusCode)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", navigation.ErrMalformedResponse, err)
	}

	return toRoute(body)
}

func (c *Client) routeURL(origin navigation.Point, destination navigation.PlaceID) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("origin", formatPoint(origin))
	q.Set("destination", "place_id:"+string(destination))
	q.Set("key", c.apiKey)
	if c.mode != "" {
		q.Set("mode", string(c.mode))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toRoute(body Response) (*navigation.Route, error) {
	switch body.Status {
	case "", StatusOK:
	case StatusZeroResults, StatusNotFound:
		return nil, fmt.Errorf("%w: %s", navigation.ErrNoRouteFound, body.Status)
	default:
		return nil, fmt.Errorf("%w: %w", navigation.ErrNetwork, &StatusError{Status: body.Status, Message: body.ErrorMessage})
	}

	if len(body.Routes) == 0 {
		return nil, navigation.ErrNoRouteFound
	}

	first := body.Routes[0]
	if first.OverviewPolyline == nil || first.OverviewPolyline.Points == nil || *first.OverviewPolyline.Points == "" {
		return nil, fmt.Errorf("%w: missing overview_polyline.points", navigation.ErrMalformedResponse)
	}

	path, err := gis.Decode(*first.OverviewPolyline.Points)
	if err != nil {
		return nil, fmt.Errorf("decoding overview polyline: %w", err)
	}
	for i, p := range path {
		if !p.Valid() {
			return nil, fmt.Errorf("decoding overview polyline: %w: point %d out of range (%f, %f)",
				navigation.ErrMalformedEncoding, i, p.Lat, p.Lon)
		}
	}

	route := &navigation.Route{
		Path:         path,
		Summary:      first.Summary,
		Warnings:     first.Warnings,
		Copyrights:   first.Copyrights,
		Alternatives: len(body.Routes) - 1,
	}
	for _, leg := range first.Legs {
		route.DistanceMeters += leg.Distance.Value
		route.DurationSeconds += leg.Duration.Value
	}
	if route.DistanceMeters == 0 {
		route.DistanceMeters = gis.PathLength(path)
	}
	return route, nil
}

func formatPoint(p navigation.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

