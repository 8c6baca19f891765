// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/agentcore/pkg/tool"
)

// WeatherName is the registered name of the weather tool.
const WeatherName = "get_weather"

// DefaultWeatherBaseURL is the OpenWeatherMap API root.
const DefaultWeatherBaseURL = "https://api.openweathermap.org"

// WeatherArgs are the weather tool parameters.
type WeatherArgs struct {
	Location string `json:"location" jsonschema:"description=City name and optional state/country (e.g. 'London' or 'Tokyo, Japan')"`
	Units    string `json:"units,omitempty" jsonschema:"description=Temperature units,enum=metric,enum=imperial,enum=standard"`
}

// WeatherOption configures a Weather client.
type WeatherOption func(*Weather)

// WithWeatherBaseURL points the client at another API root.
func WithWeatherBaseURL(u string) WeatherOption {
	return func(w *Weather) { w.baseURL = strings.TrimRight(u, "/") }
}

// WithWeatherHTTPClient sets the HTTP client.
func WithWeatherHTTPClient(c *http.Client) WeatherOption {
	return func(w *Weather) { w.client = c }
}

type coordinates struct {
	Lat  float64
	Lon  float64
	Name string
}

// Weather looks up current conditions on OpenWeatherMap. Geocoding
// results are cached per location for the lifetime of the client.
type Weather struct {
	apiKey  string
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	cache map[string]coordinates
}

// NewWeather creates a weather client.
func NewWeather(apiKey string, opts ...WeatherOption) *Weather {
	w := &Weather{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: DefaultWeatherBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   make(map[string]coordinates),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Tool returns the get_weather tool backed by w.
func (w *Weather) Tool() tool.Tool {
	return tool.MustFunc(WeatherName,
		"Get current weather information for a location.",
		func(ctx context.Context, in WeatherArgs) (any, error) {
			return w.Current(ctx, in.Location, in.Units)
		})
}

// Current returns a formatted report of current conditions.
func (w *Weather) Current(ctx context.Context, location, units string) (string, error) {
	if w.apiKey == "" {
		return "", fmt.Errorf("OpenWeatherMap API key not configured")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("location cannot be empty")
	}
	switch units {
	case "metric", "imperial", "standard":
	default:
		units = "metric"
	}

	coords, err := w.geocode(ctx, location)
	if err != nil {
		return "", err
	}

	var data oneCallResponse
	params := url.Values{
		"lat":     {strconv.FormatFloat(coords.Lat, 'f', -1, 64)},
		"lon":     {strconv.FormatFloat(coords.Lon, 'f', -1, 64)},
		"units":   {units},
		"exclude": {"minutely,hourly,daily"},
	}
	if err := w.get(ctx, "/data/3.0/onecall", params, &data); err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	return formatCurrent(data, coords.Name, units), nil
}

// CachedLocations returns how many geocoding results are cached.
func (w *Weather) CachedLocations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.cache)
}

type geoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	State   string  `json:"state"`
	Country string  `json:"country"`
}

func (w *Weather) geocode(ctx context.Context, location string) (coordinates, error) {
	key := strings.ToLower(location)
	w.mu.Lock()
	c, ok := w.cache[key]
	w.mu.Unlock()
	if ok {
		return c, nil
	}

	var results []geoResult
	if err := w.get(ctx, "/geo/1.0/direct", url.Values{"q": {location}, "limit": {"1"}}, &results); err != nil {
		return coordinates{}, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(results) == 0 {
		return coordinates{}, fmt.Errorf("location '%s' not found", location)
	}

	r := results[0]
	name := r.Name
	if r.State != "" {
		name += ", " + r.State
	}
	if r.Country != "" {
		name += ", " + r.Country
	}
	c = coordinates{Lat: r.Lat, Lon: r.Lon, Name: name}

	w.mu.Lock()
	w.cache[key] = c
	w.mu.Unlock()
	return c, nil
}

func (w *Weather) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("appid", w.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "agentcore-weather/1.0")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type oneCallResponse struct {
	Current struct {
		Temp       float64 `json:"temp"`
		FeelsLike  float64 `json:"feels_like"`
		Humidity   int     `json:"humidity"`
		Pressure   int     `json:"pressure"`
		WindSpeed  float64 `json:"wind_speed"`
		WindDeg    float64 `json:"wind_deg"`
		Visibility float64 `json:"visibility"`
		UVI        float64 `json:"uvi"`
		Sunrise    int64   `json:"sunrise"`
		Sunset     int64   `json:"sunset"`
		Weather    []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"current"`
}

func formatCurrent(data oneCallResponse, location, units string) string {
	tempUnit, speedUnit := "°C", "m/s"
	switch units {
	case "imperial":
		tempUnit, speedUnit = "°F", "mph"
	case "standard":
		tempUnit = "K"
	}

	cur := data.Current
	condition := "Unknown"
	if len(cur.Weather) > 0 && cur.Weather[0].Description != "" {
		condition = titleCase(cur.Weather[0].Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Current Weather in %s\n\n", location)
	fmt.Fprintf(&b, "**Condition:** %s\n", condition)
	fmt.Fprintf(&b, "**Temperature:** %.1f%s (feels like %.1f%s)\n", cur.Temp, tempUnit, cur.FeelsLike, tempUnit)
	fmt.Fprintf(&b, "**Humidity:** %d%%\n", cur.Humidity)
	fmt.Fprintf(&b, "**Pressure:** %d hPa\n", cur.Pressure)
	fmt.Fprintf(&b, "**Wind:** %.1f %s", cur.WindSpeed, speedUnit)
	if cur.WindDeg != 0 {
		fmt.Fprintf(&b, " %s", windDirection(cur.WindDeg))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "**Visibility:** %.1f km\n", cur.Visibility/1000)
	fmt.Fprintf(&b, "**UV Index:** %.1f\n", cur.UVI)
	if cur.Sunrise != 0 && cur.Sunset != 0 {
		fmt.Fprintf(&b, "**Sunrise:** %s\n", time.Unix(cur.Sunrise, 0).UTC().Format("15:04 UTC"))
		fmt.Fprintf(&b, "**Sunset:** %s\n", time.Unix(cur.Sunset, 0).UTC().Format("15:04 UTC"))
	}
	return b.String()
}

var compass = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

func windDirection(deg float64) string {
	i := int((deg+11.25)/22.5) % len(compass)
	if i < 0 {
		i += len(compass)
	}
	return compass[i]
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
