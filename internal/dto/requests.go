package dto

// OutlierQuery holds the query parameters accepted by the outlier
// endpoints. Universe defaults and threshold fallbacks are applied by the
// handler after binding.
type OutlierQuery struct {
	Universe  string   `form:"universe" binding:"omitempty,oneof=sp500 russell2000"`
	Threshold *float64 `form:"threshold" binding:"omitempty,gt=0,lte=10"`
}

// SummaryQuery holds the query parameters for sector performance
type SummaryQuery struct {
	Universe string `form:"universe" binding:"omitempty,oneof=sp500 russell2000"`
}

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RefreshAccepted acknowledges an asynchronous refresh kickoff
type RefreshAccepted struct {
	Status   string `json:"status"`
	Universe string `json:"universe"`
	Message  string `json:"message"`
}
