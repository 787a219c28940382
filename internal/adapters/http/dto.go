package http

import "github.com/J-York/TarotWhisper/internal/app"

// ConfigResponse is the JSON shape returned by GET /api/config.
type ConfigResponse struct {
	FallbackAvailable bool `json:"fallbackAvailable"`
	RateLimit         int  `json:"rateLimit"`
}

func toConfigResponse(info app.ServerInfo) ConfigResponse {
	return ConfigResponse{
		FallbackAvailable: info.FallbackAvailable,
		RateLimit:         info.RateLimit,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
