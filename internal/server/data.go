package server

import "time"

// Wire shapes of the HTTP API. Request fields use the same snake_case
// names as the config file keys.

type loadRequest struct {
	Source       string `json:"source"`
	ForceRefresh bool   `json:"force_refresh"`
}

type sliceRequest struct {
	Source       string `json:"source"`
	Rows         int    `json:"rows"`
	Separator    string `json:"separator"`
	HasHeader    *bool  `json:"has_header"`
	ForceRefresh bool   `json:"force_refresh"`
}

type loadResponse struct {
	Source    string   `json:"source"`
	LocalPath string   `json:"local_path"`
	WasCached bool     `json:"was_cached"`
	Columns   []string `json:"columns"`
	Rows      int      `json:"rows"`
}

type sliceResponse struct {
	Source    string       `json:"source"`
	LocalPath string       `json:"local_path"`
	WasCached bool         `json:"was_cached"`
	Columns   []string     `json:"columns"`
	Records   [][]string   `json:"records"`
	Shape     shapePayload `json:"shape"`
}

// shapePayload reports the full table's dimensions, not the slice's.
type shapePayload struct {
	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

type entryPayload struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

type entriesResponse struct {
	Entries []entryPayload `json:"entries"`
	Count   int            `json:"count"`
}

type clearResponse struct {
	Removed int `json:"removed"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Cause     string `json:"cause,omitempty"`
	RequestID string `json:"request_id"`
}
