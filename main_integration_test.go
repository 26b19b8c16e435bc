// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

//go:build integration

/*
To run these tests, specify `-tags=integration` when running `go test`.
*/
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// Server configuration constants.
	host      = "127.0.0.1:8282"
	authority = "http://127.0.0.1:8282"

	// Polling constants.
	retryCount  = 10
	dialTimeout = 250 * time.Millisecond
)

// httpTestCase defines a test case.
type httpTestCase struct {
	URL                string
	Method             string
	Body               string
	ExpectedStatusCode int
}

// setDefault sets the default values for the test case.
func (c *httpTestCase) setDefault() {
	if c.Method == "" {
		c.Method = http.MethodGet
	}

	if c.ExpectedStatusCode == 0 {
		c.ExpectedStatusCode = http.StatusOK
	}
}

// TestMain is used for global setup and teardown.
//
// It starts the server with the identity backend, so no translation
// credentials are needed, and waits for it to be available.
func TestMain(m *testing.M) {
	for key, value := range map[string]string{
		"SAFEBITES_HOST":                "127.0.0.1",
		"SAFEBITES_PORT":                "8282",
		"SAFEBITES_TRANSLATION_BACKEND": "identity",
		"SAFEBITES_LIMITER":             "false",
	} {
		if err := os.Setenv(key, value); err != nil {
			log.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	go func() {
		if err := run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if !waitForServerReady() {
		log.Fatalf("Server did not start in time")
	}

	os.Exit(m.Run())
}

// waitForServerReady polls the server until it's available or the retries are exhausted.
func waitForServerReady() bool {
	for range retryCount {
		conn, err := net.DialTimeout("tcp", host, dialTimeout)
		if err == nil {
			_ = conn.Close()

			return true
		}

		time.Sleep(dialTimeout)
	}

	return false
}

// TestBasicAllRoutes checks the status code of every read-only route.
func TestBasicAllRoutes(t *testing.T) {
	t.Parallel()

	testCases := []httpTestCase{
		{URL: "/healthz"},
		{URL: "/api/allergens"},
		{URL: "/api/results"},
		{URL: "/api/languages"},
		{URL: "/api/allergens/missing", ExpectedStatusCode: http.StatusNotFound},
		{URL: "/api/results/missing", ExpectedStatusCode: http.StatusNotFound},
		{URL: "/api/nothing-here", ExpectedStatusCode: http.StatusNotFound},
		{URL: "/api/match", Method: http.MethodPost, Body: `{"text": "water"}`},
		{URL: "/api/match", Method: http.MethodPost, Body: `{}`, ExpectedStatusCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.Method+" "+tc.URL, func(t *testing.T) {
			t.Parallel()

			tc.setDefault()

			resp := makeRequest(t, buildRequest(t, tc.URL, tc.Method, tc.Body))
			defer resp.Body.Close()

			assert.Equal(t, tc.ExpectedStatusCode, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
		})
	}
}

// TestScanRoundTrip enables a starter allergen, submits a fragment and
// waits for the scanner to report it.
func TestScanRoundTrip(t *testing.T) {
	t.Parallel()

	resp := makeRequest(t, buildRequest(t, "/api/allergens", http.MethodPost, `{"name": "Mustard"}`))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = makeRequest(t, buildRequest(t, "/api/fragments/integration", http.MethodPut, `{"transcript": "Dijon mustard, vinegar"}`))
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp := makeRequest(t, buildRequest(t, "/api/results/integration", http.MethodGet, ""))
		defer resp.Body.Close()

		var body struct {
			State string `json:"state"`
		}

		return resp.StatusCode == http.StatusOK &&
			json.NewDecoder(resp.Body).Decode(&body) == nil &&
			body.State == "found"
	}, 5*time.Second, 50*time.Millisecond)
}

func buildRequest(t *testing.T, link, method, body string) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, authority+link, reader)
	require.NoError(t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

func makeRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}
