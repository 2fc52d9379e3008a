package otp

import "time"

// Record is the single active OTP for a phone, bound to a target address.
type Record struct {
	Phone         string     `json:"phone"`
	CodeHash      string     `json:"code_hash"`
	TargetAddress string     `json:"target_address"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
}

// Binding is what a successful verification hands to issuance.
type Binding struct {
	Phone         string
	TargetAddress string
}
