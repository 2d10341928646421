package models

// TaxAccount is one property tax account parsed from a search results page.
type TaxAccount struct {
	// Query is the search text that produced the account, wildcard included.
	Query string `json:"query"`

	// Page is the 1-based results page the account appeared on.
	Page int `json:"page"`

	// Acct is the tax account number.
	Acct string `json:"acct"`

	// Due is the total amount due as displayed, e.g. "$1,234.56".
	Due string `json:"due"`

	Owner    string `json:"owner"`
	Type     string `json:"type"`
	Location string `json:"location"`

	// Link points at the account details page.
	Link string `json:"link"`
}

// SearchPage is the parsed content of one results page.
type SearchPage struct {
	Query    string
	Page     int
	Accounts []TaxAccount

	// TotalResults and TotalPages are only read from the first page.
	TotalResults int
	TotalPages   int
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "busy"
	Uptime     string `json:"uptime"`
	JobRunning bool   `json:"job_running"`
	LastJobID  string `json:"last_job_id,omitempty"`
	Version    string `json:"version"`
}
