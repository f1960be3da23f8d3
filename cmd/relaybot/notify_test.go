package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPostNotify(t *testing.T) {
	t.Parallel()
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notify" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("OK"))
	}))
	defer srv.Close()

	body, err := postNotify(context.Background(), srv.Client(), srv.URL+"/", "disk full", "critical")
	if err != nil {
		t.Fatalf("postNotify: %v", err)
	}
	if body != "OK" {
		t.Fatalf("body = %q", body)
	}
	if got["message"] != "disk full" || got["severity"] != "critical" {
		t.Fatalf("payload = %v", got)
	}
}

func TestPostNotifyOmitsEmptySeverity(t *testing.T) {
	t.Parallel()
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if _, err := postNotify(context.Background(), srv.Client(), srv.URL, "hi", " "); err != nil {
		t.Fatalf("postNotify: %v", err)
	}
	if _, ok := raw["severity"]; ok {
		t.Fatalf("payload = %v, want no severity", raw)
	}
}

func TestPostNotifyReportsServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`unknown severity "LOUD"`))
	}))
	defer srv.Close()

	_, err := postNotify(context.Background(), srv.Client(), srv.URL, "hi", "loud")
	if err == nil || !strings.Contains(err.Error(), `HTTP 400: unknown severity "LOUD"`) {
		t.Fatalf("err = %v", err)
	}
}
