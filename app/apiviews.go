package app

type errorView struct {
	Error string `json:"error"`
}

type successView struct {
	Success bool `json:"success"`
}

type subscribeView struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

type testConfigView struct {
	Success              bool `json:"success"`
	PublicKeyConfigured  bool `json:"publicKeyConfigured"`
	PrivateKeyConfigured bool `json:"privateKeyConfigured"`
}

type messageView struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type importView struct {
	Success       bool `json:"success"`
	Markers       int  `json:"markers"`
	Subscriptions int  `json:"subscriptions"`
	Skipped       int  `json:"skipped"`
}
