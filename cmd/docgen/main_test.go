package main

import (
	"strings"
	"testing"
)

const annotated = `package api

// @Title: Get Price
// @Route: GET /api/price
// @Description: Reads the record
// @Response: {"price": 2197}
func (s *Service) HandlePrice() {}

// @Title: Missing Route
// @Response: ignored
func (s *Service) Broken() {}

// @Title: Get Address
// @Route: GET /api/address
// @Response: {"address": "..."}
func (s *Service) HandleAddress() {}
`

func TestScan(t *testing.T) {
	endpoints, err := scan(strings.NewReader(annotated))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2: %+v", len(endpoints), endpoints)
	}
	if endpoints[0].Title != "Get Price" || endpoints[0].Description != "Reads the record" {
		t.Errorf("first endpoint = %+v", endpoints[0])
	}
	if endpoints[1].Route != "GET /api/address" || endpoints[1].Description != "" {
		t.Errorf("second endpoint = %+v", endpoints[1])
	}
}

func TestRender(t *testing.T) {
	var b strings.Builder
	err := render(&b, []Endpoint{{
		Title:       "Get Price",
		Route:       "GET /api/price",
		Description: "Reads the record.",
		Response:    `{"price": 2197}`,
	}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := b.String()
	for _, want := range []string{"= API Reference", "== Get Price", "`GET /api/price`", "Reads the record.\n", "Response:: `{\"price\": 2197}`"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRoutePath(t *testing.T) {
	if got := routePath("POST /api/tx"); got != "/api/tx" {
		t.Errorf("routePath = %q", got)
	}
	if got := routePath("/docs"); got != "/docs" {
		t.Errorf("routePath = %q", got)
	}
}
