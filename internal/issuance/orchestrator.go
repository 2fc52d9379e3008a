// Package issuance runs the verify, mint and read-back workflow that turns a
// confirmed phone number into an on-chain identity.
package issuance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/chain"
	"github.com/idmint/idmint/internal/identity"
	"github.com/idmint/idmint/internal/logging"
	"github.com/idmint/idmint/internal/metrics"
	"github.com/idmint/idmint/internal/mint"
	"github.com/idmint/idmint/internal/otp"
)

const dateLayout = "2006-01-02"

// Verifier confirms an OTP and yields the address it was requested for.
type Verifier interface {
	Verify(ctx context.Context, phone, code string) (otp.Binding, error)
}

// ContractResolver maps a category onto its deployed contract address.
type ContractResolver interface {
	ContractAddress(category identity.Category) (string, error)
}

// Result is the response assembled after a successful issuance.
type Result struct {
	Address     string `json:"address"`
	IDType      string `json:"idType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth int64  `json:"dateOfBirth"`
	Phone       string `json:"phone"`
	UID         string `json:"UID"`
}

// Orchestrator sequences verification, minting and chain read-back.
type Orchestrator struct {
	verifier   Verifier
	identities identity.Repository
	contracts  ContractResolver
	minter     mint.Minter
	reader     chain.Reader
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewOrchestrator wires the issuance workflow.
func NewOrchestrator(verifier Verifier, identities identity.Repository, contracts ContractResolver, minter mint.Minter, reader chain.Reader, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		verifier:   verifier,
		identities: identities,
		contracts:  contracts,
		minter:     minter,
		reader:     reader,
		metrics:    m,
		logger:     logger,
	}
}

// Issue verifies code for phone and, on success, mints the category identity
// to the address bound at OTP request time and reads it back. Each step
// short-circuits on failure and the mint is never retried.
func (o *Orchestrator) Issue(ctx context.Context, category identity.Category, phone, code string) (res Result, err error) {
	defer func() { o.metrics.Issued(string(category), err) }()

	if !category.Valid() {
		return Result{}, apperr.New(apperr.ErrInvalidInput, "unknown id_type "+string(category))
	}

	binding, err := o.verifier.Verify(ctx, phone, code)
	if err != nil {
		return Result{}, err
	}

	person, err := o.identities.FindByPhone(ctx, category, binding.Phone)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Result{}, apperr.Wrap(apperr.ErrNotFound, "User not found", err)
		}
		return Result{}, err
	}

	contract, err := o.contracts.ContractAddress(category)
	if err != nil {
		return Result{}, err
	}

	attrs := []any{
		slog.String("category", string(category)),
		slog.String("phone", logging.RedactPhone(binding.Phone)),
		slog.String("address", binding.TargetAddress),
		slog.String("contract", contract),
	}

	// The mint is irreversible, so a client disconnect must not abort it.
	mintCtx := context.WithoutCancel(ctx)
	start := time.Now()
	minted, err := o.minter.Mint(mintCtx, mint.Params{
		Category:      string(category),
		TargetAddress: binding.TargetAddress,
		FirstName:     person.FirstName,
		LastName:      person.LastName,
		DateOfBirth:   person.DateOfBirth.Format(dateLayout),
		Phone:         person.Phone,
	})
	o.metrics.ObserveMint(time.Since(start), err)
	if err != nil {
		if !errors.Is(err, apperr.ErrIssuanceExecution) {
			err = apperr.Wrap(apperr.ErrIssuanceExecution, "Minting failed", err)
		}
		o.logger.Error("identity mint failed", append(attrs,
			slog.Any("error", err),
			slog.Int("exit_code", minted.ExitCode),
			slog.String("output", minted.Output),
		)...)
		return Result{}, err
	}

	record, err := o.reader.IdentityRecord(ctx, contract, binding.TargetAddress)
	if err != nil {
		if !errors.Is(err, apperr.ErrChainRead) {
			err = apperr.Wrap(apperr.ErrChainRead, "Failed to read identity", err)
		}
		o.logger.Error("identity minted but read-back failed", append(attrs, slog.Any("error", err))...)
		return Result{}, err
	}

	o.logger.Info("identity issued", append(attrs, slog.String("uid", record.UID))...)

	return Result{
		Address:     binding.TargetAddress,
		IDType:      person.IDType,
		FirstName:   person.FirstName,
		LastName:    person.LastName,
		DateOfBirth: person.DateOfBirth.UnixMilli(),
		Phone:       person.Phone,
		UID:         record.UID,
	}, nil
}
