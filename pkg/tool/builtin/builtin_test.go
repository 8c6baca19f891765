// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package builtin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	kerrors "github.com/jllopis/agentcore/pkg/errors"
	"github.com/jllopis/agentcore/pkg/tool"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		expr    string
		want    float64
		wantErr bool
	}{
		{"2+2", 4, false},
		{"2 + 3 * 4", 14, false},
		{"(2 + 3) * 4", 20, false},
		{"7 / 2", 3.5, false},
		{"2 ** 10", 1024, false},
		{"2 ^ 3", 8, false},
		{"10 % 3", 1, false},
		{"-5 + 2", -3, false},
		{"1 / 0", 0, true},
		{"", 0, true},
		{"foo + 1", 0, true},
		{"len('abc')", 0, true},
		{"2 +", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Calculate(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Calculate(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Calculate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCalculatorTool(t *testing.T) {
	reg := &tool.Registry{}
	reg.MustRegister(NewCalculator())

	out, err := reg.Invoke(context.Background(), CalculatorName, map[string]any{"expression": "2+2"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if tool.Stringify(out) != "4" {
		t.Errorf("expected 4, got %q", tool.Stringify(out))
	}

	_, err = reg.Invoke(context.Background(), CalculatorName, map[string]any{"expression": "1/0"})
	if !kerrors.HasCode(err, kerrors.CodeToolExecutionFailed) {
		t.Errorf("expected TOOL_EXECUTION_FAILED, got %v", err)
	}

	_, err = reg.Invoke(context.Background(), CalculatorName, map[string]any{})
	if !kerrors.HasCode(err, kerrors.CodeInvalidArguments) {
		t.Errorf("expected INVALID_ARGUMENTS, got %v", err)
	}
}

type fakeSearcher struct {
	gotLimit int
	results  []SearchResult
}

func (f *fakeSearcher) Search(_ context.Context, _ string, limit int) ([]SearchResult, error) {
	f.gotLimit = limit
	return f.results, nil
}

func TestWebSearchTool(t *testing.T) {
	s := &fakeSearcher{results: []SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go programming language"},
	}}
	ws := NewWebSearch(s)

	out, err := ws.Invoke(context.Background(), map[string]any{"query": "golang"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	want := "Search results for 'golang':\n\n1. Go\n   URL: https://go.dev\n   The Go programming language"
	if out != want {
		t.Errorf("unexpected output:\n%s", out)
	}
	if s.gotLimit != defaultMaxResults {
		t.Errorf("expected default limit, got %d", s.gotLimit)
	}

	_, _ = ws.Invoke(context.Background(), map[string]any{"query": "x", "max_results": float64(50)})
	if s.gotLimit != maxMaxResults {
		t.Errorf("expected clamped limit, got %d", s.gotLimit)
	}

	if _, err := ws.Invoke(context.Background(), map[string]any{"query": "  "}); err == nil {
		t.Errorf("expected error for blank query")
	}
}

func TestDuckDuckGoSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "golang" || r.URL.Query().Get("format") != "json" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Heading":      "Go",
			"AbstractText": "Go is a programming language.",
			"AbstractURL":  "https://en.wikipedia.org/wiki/Go",
			"RelatedTopics": []map[string]any{
				{"Text": "Gopher - The mascot", "FirstURL": "https://duckduckgo.com/Gopher"},
				{"Name": "Tools", "Topics": []map[string]any{
					{"Text": "gofmt - Formatter", "FirstURL": "https://duckduckgo.com/gofmt"},
					{"Text": "go vet - Checker", "FirstURL": "https://duckduckgo.com/vet"},
				}},
			},
		})
	}))
	defer srv.Close()

	results, err := NewDuckDuckGoSearcher(srv.URL).Search(context.Background(), "golang", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	if results[0].Title != "Go" || results[1].Title != "Gopher" || results[2].Title != "gofmt" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestWeather(t *testing.T) {
	var geoCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/geo/1.0/direct":
			geoCalls.Add(1)
			if r.URL.Query().Get("q") == "Atlantis" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_, _ = w.Write([]byte(`[{"name":"London","lat":51.5,"lon":-0.12,"country":"GB"}]`))
		case "/data/3.0/onecall":
			if r.URL.Query().Get("units") != "metric" {
				t.Errorf("unexpected units %s", r.URL.Query().Get("units"))
			}
			_, _ = w.Write([]byte(`{"current":{"temp":12.34,"feels_like":10,"humidity":80,"pressure":1012,
				"wind_speed":3.5,"wind_deg":90,"visibility":10000,"uvi":1.2,
				"weather":[{"description":"light rain"}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	w := NewWeather("k", WithWeatherBaseURL(srv.URL))
	wt := w.Tool()

	for i := 0; i < 2; i++ {
		out, err := wt.Invoke(context.Background(), map[string]any{"location": "London"})
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		report := out.(string)
		for _, want := range []string{"London, GB", "Light Rain", "12.3°C", "80%", "3.5 m/s E", "10.0 km"} {
			if !strings.Contains(report, want) {
				t.Errorf("report missing %q:\n%s", want, report)
			}
		}
	}
	if geoCalls.Load() != 1 || w.CachedLocations() != 1 {
		t.Errorf("expected geocoding to be cached, calls=%d", geoCalls.Load())
	}

	if _, err := w.Current(context.Background(), "Atlantis", "metric"); err == nil {
		t.Errorf("expected not found error")
	}
	if _, err := NewWeather("").Current(context.Background(), "London", ""); err == nil {
		t.Errorf("expected missing key error")
	}
}

func TestWindDirection(t *testing.T) {
	tests := map[float64]string{0: "N", 90: "E", 180: "S", 270: "W", 350: "N", 45: "NE"}
	for deg, want := range tests {
		if got := windDirection(deg); got != want {
			t.Errorf("windDirection(%v) = %s, want %s", deg, got, want)
		}
	}
}
