package api

import (
	"context"
	"net/http"
	"time"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler reports liveness and dependency readiness. A failing
// required check makes the service unready; a failing optional one only
// degrades it.
type HealthHandler struct {
	required map[string]Check
	optional map[string]Check
	env      string
	version  string
}

func NewHealthHandler(required, optional map[string]Check, env, version string) *HealthHandler {
	return &HealthHandler{
		required: required,
		optional: optional,
		env:      env,
		version:  version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string)
	status := "ok"

	for name, check := range h.required {
		if !probe(ctx, check) {
			deps[name] = "down"
			status = "error"
			continue
		}
		deps[name] = "ok"
	}

	for name, check := range h.optional {
		if !probe(ctx, check) {
			deps[name] = "down"
			if status == "ok" {
				status = "degraded"
			}
			continue
		}
		deps[name] = "ok"
	}

	resp := ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

func probe(ctx context.Context, check Check) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return check(ctx) == nil
}
