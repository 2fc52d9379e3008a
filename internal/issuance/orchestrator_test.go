package issuance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/chain"
	"github.com/idmint/idmint/internal/identity"
	"github.com/idmint/idmint/internal/mint"
	"github.com/idmint/idmint/internal/otp"
)

const (
	testPhone    = "+15551230000"
	testAddress  = "0xabc0000000000000000000000000000000000001"
	contractAddr = "0x1000000000000000000000000000000000000001"
	goodCode     = "4821"
)

type stubVerifier struct {
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, phone, code string) (otp.Binding, error) {
	v.calls++
	if code != goodCode {
		return otp.Binding{}, apperr.New(apperr.ErrInvalidCode, "Invalid OTP")
	}
	return otp.Binding{Phone: phone, TargetAddress: testAddress}, nil
}

type stubMinter struct {
	calls  []mint.Params
	err    error
	ctxErr error
}

func (m *stubMinter) Mint(ctx context.Context, p mint.Params) (mint.Result, error) {
	m.calls = append(m.calls, p)
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return mint.Result{ExitCode: 1, Output: "Error: insufficient funds"}, m.err
	}
	return mint.Result{ExitCode: 0, Output: "minted"}, nil
}

type stubReader struct {
	contract string
	target   string
	err      error
}

func (r *stubReader) IdentityRecord(_ context.Context, contractAddress, targetAddress string) (chain.Record, error) {
	r.contract, r.target = contractAddress, targetAddress
	if r.err != nil {
		return chain.Record{}, r.err
	}
	return chain.Record{UID: "42"}, nil
}

type fixture struct {
	orch     *Orchestrator
	verifier *stubVerifier
	minter   *stubMinter
	reader   *stubReader
	dob      time.Time
}

func newFixture(t *testing.T, contracts map[string]string) *fixture {
	t.Helper()
	dob := time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC)
	ids := identity.NewMemoryRepository()
	require.NoError(t, ids.Create(context.Background(), identity.Identity{
		Category:    identity.CategoryStandard,
		Phone:       testPhone,
		IDType:      "passport",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: dob,
	}))

	f := &fixture{
		verifier: &stubVerifier{},
		minter:   &stubMinter{},
		reader:   &stubReader{},
		dob:      dob,
	}
	registry := chain.NewRegistry("sepolia", contracts)
	f.orch = NewOrchestrator(f.verifier, ids, registry, f.minter, f.reader, nil, nil)
	return f
}

func TestIssueEndToEnd(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})

	res, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, goodCode)
	require.NoError(t, err)

	assert.Equal(t, Result{
		Address:     testAddress,
		IDType:      "passport",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: f.dob.UnixMilli(),
		Phone:       testPhone,
		UID:         "42",
	}, res)

	require.Len(t, f.minter.calls, 1)
	assert.Equal(t, mint.Params{
		Category:      "standard",
		TargetAddress: testAddress,
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DateOfBirth:   "1990-01-15",
		Phone:         testPhone,
	}, f.minter.calls[0])
	assert.Equal(t, contractAddr, f.reader.contract)
	assert.Equal(t, testAddress, f.reader.target)
}

func TestIssueWrongCodeSkipsMint(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})

	_, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, "0000")
	require.ErrorIs(t, err, apperr.ErrInvalidCode)
	assert.Empty(t, f.minter.calls)
	assert.Empty(t, f.reader.contract)
}

func TestIssueMissingContractSkipsMint(t *testing.T) {
	f := newFixture(t, map[string]string{"ssa": contractAddr})

	_, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Equal(t, "Contract address not found", apperr.Message(err))
	assert.Empty(t, f.minter.calls)
}

func TestIssueIdentityMissingForCategory(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr, "ssa": contractAddr})

	_, err := f.orch.Issue(context.Background(), identity.CategorySSA, testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "User not found", apperr.Message(err))
	assert.Empty(t, f.minter.calls)
}

func TestIssueMintFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})
	f.minter.err = errors.New("exit status 1")

	_, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Len(t, f.minter.calls, 1)
	assert.Empty(t, f.reader.contract, "chain must not be read after a failed mint")
}

func TestIssueMintFailureLogsCommandResult(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})
	f.minter.err = errors.New("exit status 1")

	var buf bytes.Buffer
	f.orch.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	_, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "identity mint failed", entry["msg"])
	assert.EqualValues(t, 1, entry["exit_code"])
	assert.Equal(t, "Error: insufficient funds", entry["output"])
}

func TestIssueChainReadFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})
	f.reader.err = errors.New("execution reverted")

	_, err := f.orch.Issue(context.Background(), identity.CategoryStandard, testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrChainRead)
	assert.Len(t, f.minter.calls, 1)
}

func TestIssueMintSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _ = f.orch.Issue(ctx, identity.CategoryStandard, testPhone, goodCode)
	require.Len(t, f.minter.calls, 1)
	assert.NoError(t, f.minter.ctxErr)
}

func TestIssueRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t, map[string]string{"standard": contractAddr})

	_, err := f.orch.Issue(context.Background(), identity.Category("gold"), testPhone, goodCode)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Zero(t, f.verifier.calls)
}
