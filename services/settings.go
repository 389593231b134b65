package services

import "time"

const (
	ReopenPolicyResubmit = "resubmit"
	ReopenPolicyAccept   = "accept"
)

// Settings holds the order lifecycle knobs shared by the services.
type Settings struct {
	ReceiptGracePeriod   time.Duration
	ReopenWindow         time.Duration
	MaxReopeningRequests int
	// ReopenPolicy decides where an approved reopening lands: back to
	// submitted (resubmit) or straight to accepted when payment is settled.
	ReopenPolicy string

	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

func DefaultSettings() Settings {
	return Settings{
		ReceiptGracePeriod:   24 * time.Hour,
		ReopenWindow:         24 * time.Hour,
		MaxReopeningRequests: 3,
		ReopenPolicy:         ReopenPolicyResubmit,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.ReceiptGracePeriod <= 0 {
		s.ReceiptGracePeriod = def.ReceiptGracePeriod
	}
	if s.ReopenWindow <= 0 {
		s.ReopenWindow = def.ReopenWindow
	}
	if s.MaxReopeningRequests <= 0 {
		s.MaxReopeningRequests = def.MaxReopeningRequests
	}
	if s.ReopenPolicy != ReopenPolicyAccept {
		s.ReopenPolicy = ReopenPolicyResubmit
	}
	if s.Now == nil {
		s.Now = func() time.Time { return time.Now().UTC() }
	}
	return s
}
