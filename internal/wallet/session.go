// Package wallet holds the client-local identity session: the active DID,
// its address and public key, the credential list and a cached balance.
// The private key stays in memory only and never reaches durable storage.
package wallet

import (
	"time"

	"persona/internal/credential"
)

// Session is the observable wallet state handed to listeners and HTTP
// callers. It carries no key material.
type Session struct {
	DID         string                   `json:"did"`
	Address     string                   `json:"address"`
	PublicKey   string                   `json:"public_key"`
	Balance     float64                  `json:"balance"`
	Credentials []*credential.Credential `json:"credentials"`
	IsConnected bool                     `json:"is_connected"`
	ConnectedAt time.Time                `json:"connected_at,omitempty"`
}

// clone returns a copy whose credential slice the caller may hold without
// seeing later mutations.
func (s Session) clone() Session {
	out := s
	out.Credentials = make([]*credential.Credential, len(s.Credentials))
	copy(out.Credentials, s.Credentials)
	return out
}
