package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// MetricsSummary is returned by GET /v1/admin/metrics.
type MetricsSummary struct {
	LoginsSucceeded      int64   `json:"loginsSucceeded"`
	LoginsFailed         int64   `json:"loginsFailed"`
	ApprovalsApproved    int64   `json:"approvalsApproved"`
	ApprovalsRejected    int64   `json:"approvalsRejected"`
	ChangeRequests       int64   `json:"changeRequests"`
	NotificationsCreated int64   `json:"notificationsCreated"`
	SnapshotHitRate      float64 `json:"snapshotHitRate"`
	Period               string  `json:"period"`
}
