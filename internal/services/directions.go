package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/haulbase/dispatch-backend/pkg/utils"
)

// ErrDirectionsUnavailable signals that no directions provider is
// configured or the configured one could not be reached. Callers fall
// back to local heuristic ordering.
var ErrDirectionsUnavailable = errors.New("directions provider unavailable")

// RoutePlan is the provider's answer for an ordered set of stops.
// WaypointOrder, when non-empty, is the provider's own re-ordering of
// the submitted stop indices and overrides the local heuristic.
type RoutePlan struct {
	Polyline      string `json:"polyline"`
	EtaMinutes    int    `json:"etaMinutes"`
	WaypointOrder []int  `json:"waypointOrder,omitempty"`
}

// Directions computes a drivable path and ETA for an origin and a set
// of ordered destinations.
type Directions interface {
	Route(ctx context.Context, origin utils.Point, stops []utils.Point) (*RoutePlan, error)
}

// HTTPDirections calls an external HTTP directions service.
type HTTPDirections struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDirectionsFromEnv wires the provider from DIRECTIONS_API_URL and
// DIRECTIONS_API_KEY. With no URL configured every call returns
// ErrDirectionsUnavailable and the route builder degrades to its local
// ordering.
func NewDirectionsFromEnv() Directions {
	baseURL := os.Getenv("DIRECTIONS_API_URL")
	if baseURL == "" {
		return disabledDirections{}
	}

	return &HTTPDirections{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  os.Getenv("DIRECTIONS_API_KEY"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type directionsRequest struct {
	Origin utils.Point   `json:"origin"`
	Stops  []utils.Point `json:"stops"`
}

func (d *HTTPDirections) Route(ctx context.Context, origin utils.Point, stops []utils.Point) (*RoutePlan, error) {
	body, err := json.Marshal(directionsRequest{Origin: origin, Stops: stops})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/route", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectionsUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDirectionsUnavailable, resp.StatusCode)
	}

	var plan RoutePlan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrDirectionsUnavailable, err)
	}

	// A partial re-ordering would drop stops; treat it as absent.
	if len(plan.WaypointOrder) != 0 && len(plan.WaypointOrder) != len(stops) {
		plan.WaypointOrder = nil
	}

	return &plan, nil
}

type disabledDirections struct{}

func (disabledDirections) Route(ctx context.Context, origin utils.Point, stops []utils.Point) (*RoutePlan, error) {
	return nil, ErrDirectionsUnavailable
}
