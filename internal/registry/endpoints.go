package registry

// Quote backend endpoints.
const (
	LiFiBaseURL        = "https://li.quest/v1"
	AcrossBaseURL      = "https://app.across.to/api"
	JupiterLiteBaseURL = "https://lite-api.jup.ag/swap/v1"
	JupiterProBaseURL  = "https://api.jup.ag/swap/v1"
)
