// Package backend is a typed client for the fleet-management REST API.
// Every call carries the caller's Session explicitly; the client holds no
// credentials of its own.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetwear/internal/fleet"
	"fleetwear/internal/version"
)

// ErrUnauthorized matches any *APIError with status 401 via errors.Is.
var ErrUnauthorized = errors.New("backend: unauthorized")

// Session is a bearer token issued by the backend's login endpoint.
type Session struct {
	Token string
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: HTTP %d", e.Status)
	}
	return fmt.Sprintf("backend: HTTP %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Config locates the backend.
type Config struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
	// ServiceToken is the session the background scanner uses.
	ServiceToken string `koanf:"service_token"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Validate checks that BaseURL is an absolute http(s) URL.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend.base_url %q is not an http(s) URL", c.BaseURL)
	}
	return nil
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for cfg.
func New(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Me resolves the session to its user.
func (c *Client) Me(ctx context.Context, s Session) (*fleet.User, error) {
	var u fleet.User
	if err := c.get(ctx, s, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Trucks lists every truck.
func (c *Client) Trucks(ctx context.Context, s Session) ([]fleet.Truck, error) {
	var out []fleet.Truck
	return out, c.get(ctx, s, "/trucks", nil, &out)
}

// Trailers lists every trailer.
func (c *Client) Trailers(ctx context.Context, s Session) ([]fleet.Trailer, error) {
	var out []fleet.Trailer
	return out, c.get(ctx, s, "/trailers", nil, &out)
}

// Tires lists every tire.
func (c *Client) Tires(ctx context.Context, s Session) ([]fleet.Tire, error) {
	var out []fleet.Tire
	return out, c.get(ctx, s, "/tires", nil, &out)
}

// Trips lists trips, filtered to one driver when driverID is set.
func (c *Client) Trips(ctx context.Context, s Session, driverID string) ([]fleet.Trip, error) {
	var q url.Values
	if driverID != "" {
		q = url.Values{"driver": {driverID}}
	}
	var out []fleet.Trip
	return out, c.get(ctx, s, "/trips", q, &out)
}

// Trip fetches one trip.
func (c *Client) Trip(ctx context.Context, s Session, id string) (*fleet.Trip, error) {
	var t fleet.Trip
	if err := c.get(ctx, s, "/trips/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MaintenanceConfig fetches the fleet-wide service intervals. Unset values
// are left at zero; callers apply MaintenanceConfig.WithDefaults.
func (c *Client) MaintenanceConfig(ctx context.Context, s Session) (fleet.MaintenanceConfig, error) {
	var cfg fleet.MaintenanceConfig
	err := c.get(ctx, s, "/maintenance/config", nil, &cfg)
	return cfg, err
}

func (c *Client) get(ctx context.Context, s Session, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fleetwear/"+version.Version)
	if s.Valid() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// decodeError reads the backend's {"message": ...} or {"error": ...} body.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
