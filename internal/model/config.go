package model

import "time"

// PaceConfig is the per-account delivery pacing, user editable, read once at
// run start. Delays in milliseconds on the wire, durations here.
type PaceConfig struct {
	AccountID     string
	InstanceID    string
	DelayMin      time.Duration
	DelayMax      time.Duration
	PauseAfter    int
	PauseDuration time.Duration
	UpdatedAt     time.Time
}

// AvgDelay is the midpoint of the configured delay window.
func (c PaceConfig) AvgDelay() time.Duration {
	return (c.DelayMin + c.DelayMax) / 2
}

type ConnectionState string

const (
	StateOpen         ConnectionState = "open"
	StateConnecting   ConnectionState = "connecting"
	StateDisconnected ConnectionState = "close"
)

// SessionInfo is the gateway-side connectivity snapshot for an instance.
type SessionInfo struct {
	InstanceID  string
	State       ConnectionState
	QRCode      string // base64 data URL, present while pairing
	PairingCode string
}

func (s SessionInfo) Connected() bool { return s.State == StateOpen }

// SavedList is a reusable recipient list the dashboard manages.
type SavedList struct {
	ID         string
	AccountID  string
	Name       string
	Kind       RecipientKind
	Recipients []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RunReport summarizes one runner invocation.
type RunReport struct {
	Processed         int  `json:"processed"`
	Sent              int  `json:"sent"`
	Failed            int  `json:"failed"`
	PermanentlyFailed int  `json:"permanentlyFailed"`
	MoreRemaining     bool `json:"moreRemaining"`
}
