// Package models contains pure domain models for the account/authentication
// domain: entities that do not depend on transport or HTTP concerns.
package models

import (
	"time"

	"github.com/google/uuid"

	s "persona/pkg/string"
	"persona/pkg/validation"
)

// KYCStatus is the identity verification state of an account. It is mutated
// only by an external verification process, never by this service.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

// Account represents a registered identity holder.
// This is a pure domain entity - use AccountSummary for JSON responses.
type Account struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string
	DID           string
	WalletAddress string
	KYCStatus     KYCStatus

	// Profile snapshot taken at registration.
	FirstName   string
	LastName    string
	DateOfBirth string
	Country     string

	CreatedAt time.Time
}

// Summary returns the client-safe view of the account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:            a.ID.String(),
		Email:         a.Email,
		DID:           a.DID,
		WalletAddress: a.WalletAddress,
		KYCStatus:     string(a.KYCStatus),
	}
}

// Profile carries the registration profile fields.
type Profile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Country     string `json:"country,omitempty"`
}

// RegisterRequest is the registration input.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Profile  Profile `json:"profile"`

	// IdempotencyKey deduplicates client retries; a retried registration
	// with the same key returns the account created by the first attempt.
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,uuid"`
}

// Normalize trims surrounding whitespace from identity fields.
// The email itself stays case-sensitive as stored.
func (r *RegisterRequest) Normalize() {
	s.TrimStrings(&r.Email, &r.Profile.FirstName, &r.Profile.LastName, &r.Profile.Country)
}

// Validate rejects malformed registrations before any side effect.
func (r *RegisterRequest) Validate() error {
	return validation.Validate(r)
}

// AccountSummary is the JSON view of an account.
type AccountSummary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DID           string `json:"did"`
	WalletAddress string `json:"wallet_address"`
	KYCStatus     string `json:"kyc_status"`
}

// PasswordStepResult marks a successful first login step: the password
// checked out and the caller must now present a TOTP code.
type PasswordStepResult struct {
	DID          string `json:"did"`
	TOTPRequired bool   `json:"totp_required"`
}

// LoginResult is the outcome of a completed login.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   AccountSummary `json:"account"`
}
