package dto

// HealthResponse is the payload of /healthz and /readyz. Checks maps a dependency name to
// "ok" or its failure message and is only set on readiness.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)
