// Package model holds the shared data types for vaults and secrets.
package model

import "time"

// Vault is a remote Key Vault discovered through ARM. Identity is the URI;
// records are immutable once listed.
type Vault struct {
	Name           string
	URI            string
	SubscriptionID string
}

// Secret is a named value in a vault. Value is populated only when the
// secret has been explicitly fetched; listings carry metadata only.
type Secret struct {
	Name    string
	Value   string
	Version string
	Enabled bool
	Updated time.Time
}
