// Package mint triggers the external, irreversible minting of an identity record.
package mint

import "context"

// Params are the identity attributes written on-chain for TargetAddress.
type Params struct {
	Category      string
	TargetAddress string
	FirstName     string
	LastName      string
	DateOfBirth   string
	Phone         string
}

// Result is the structured outcome of a mint invocation.
type Result struct {
	ExitCode int
	Output   string
}

// Minter runs one mint. A returned error means the mint cannot be assumed to
// have happened; it is never retried by callers.
type Minter interface {
	Mint(ctx context.Context, params Params) (Result, error)
}
