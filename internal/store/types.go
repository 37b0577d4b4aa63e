package store

import (
	"fmt"
	"time"
)

// UnlockPolicy controls how long an unlocked vault stays open.
type UnlockPolicy int

const (
	// UnlockForAWhile keeps a vault open until its session expires.
	UnlockForAWhile UnlockPolicy = iota
	// UnlockEveryTime requires the master passphrase for every operation.
	UnlockEveryTime
)

func (p UnlockPolicy) String() string {
	switch p {
	case UnlockForAWhile:
		return "for-a-while"
	case UnlockEveryTime:
		return "every-time"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseUnlockPolicy parses the String form of a policy.
func ParseUnlockPolicy(s string) (UnlockPolicy, error) {
	switch s {
	case "for-a-while":
		return UnlockForAWhile, nil
	case "every-time":
		return UnlockEveryTime, nil
	}
	return 0, fmt.Errorf("unknown unlock policy %q", s)
}

// Settings holds the per-identity preferences kept outside the vault.
type Settings struct {
	UnlockPolicy     UnlockPolicy `json:"unlock_policy"`
	BiometricEnabled bool         `json:"biometric_enabled"`
	UpdatedAt        time.Time    `json:"updated_at,omitempty"`
}

// DefaultSettings returns the settings of an identity that never changed them.
func DefaultSettings() *Settings {
	return &Settings{UnlockPolicy: UnlockForAWhile}
}

// AuditEntry records one vault operation. It never carries secret values.
type AuditEntry struct {
	Action    string    `json:"action"`
	Identity  string    `json:"identity"`
	App       string    `json:"app,omitempty"`
	Key       string    `json:"key,omitempty"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}
