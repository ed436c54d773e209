// Package client provides the HTTP client for the vehicle registry API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketplace_backend/internal/vehicle/transport"
	"marketplace_backend/platform/logger"

	"golang.org/x/time/rate"
)

const (
	requestTimeout = 10 * time.Second
	// The registry allows a handful of calls per second per key.
	requestsPerSecond = 5
	requestBurst      = 5
)

// Client is the HTTP client for the vehicle registry.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	log        *logger.Logger
}

// New creates a new registry client.
func New(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		log:        log,
	}
}

// GetByPlate fetches the registration of a normalized plate. A plate the
// registry does not know yields nil without error.
func (c *Client) GetByPlate(ctx context.Context, plate string) (*transport.Vehicle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s/vehicles/%s", c.baseURL, url.PathEscape(plate))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("vehicle registry request failed", "error", err, "plate", plate)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		c.log.Debug("vehicle registry has no record", "plate", plate)
		return nil, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		c.log.Error("vehicle registry unauthorized", "status", resp.StatusCode)
		return nil, fmt.Errorf("unauthorized: invalid API key")
	default:
		c.log.Error("vehicle registry upstream error", "status", resp.StatusCode, "plate", plate)
		return nil, fmt.Errorf("upstream error: status %d", resp.StatusCode)
	}

	var api apiVehicle
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		c.log.Error("vehicle registry decode failed", "error", err)
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vehicle := api.toTransport(plate)
	return &vehicle, nil
}

// apiVehicle is the raw registry response.
type apiVehicle struct {
	RegistrationNumber string  `json:"registrationNumber"`
	Make               string  `json:"make"`
	Model              string  `json:"model"`
	Color              *string `json:"color"`
	FuelType           *string `json:"fuelType"`
	ModelYear          *int    `json:"modelYear"`
	FirstRegistration  *string `json:"firstRegistration"`
}

func (a *apiVehicle) toTransport(plate string) transport.Vehicle {
	v := transport.Vehicle{
		LicensePlate: plate,
		Make:         strings.TrimSpace(a.Make),
		Model:        strings.TrimSpace(a.Model),
	}
	if a.RegistrationNumber != "" {
		v.LicensePlate = a.RegistrationNumber
	}
	if a.Color != nil {
		v.Color = *a.Color
	}
	if a.FuelType != nil {
		v.FuelType = *a.FuelType
	}
	if a.FirstRegistration != nil {
		v.FirstRegisteredOn = *a.FirstRegistration
	}

	switch {
	case a.ModelYear != nil:
		v.Year = *a.ModelYear
	case v.FirstRegisteredOn != "":
		if t, err := time.Parse("2006-01-02", v.FirstRegisteredOn); err == nil {
			v.Year = t.Year()
		}
	}
	return v
}
