package mint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idmint/idmint/internal/apperr"
)

func params() Params {
	return Params{
		Category:      "standard",
		TargetAddress: "0xabc0000000000000000000000000000000000001",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		DateOfBirth:   "1990-01-15",
		Phone:         "+15551230000",
	}
}

func TestCommandMinterSuccess(t *testing.T) {
	m, err := NewCommandMinter("sh testdata/mint_ok.sh", "", "sepolia", 10*time.Second, nil)
	require.NoError(t, err)

	res, err := m.Mint(context.Background(), params())
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "minting standard for 0xabc0000000000000000000000000000000000001 (Ada Lovelace, 1990-01-15, +15551230000) on sepolia")
	assert.Contains(t, res.Output, "args: --network sepolia")
}

func TestCommandMinterNonZeroExit(t *testing.T) {
	m, err := NewCommandMinter("sh testdata/mint_fail.sh", "", "sepolia", 10*time.Second, nil)
	require.NoError(t, err)

	res, err := m.Mint(context.Background(), params())
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "insufficient funds")
}

func TestCommandMinterTimeout(t *testing.T) {
	m, err := NewCommandMinter("sh testdata/mint_hang.sh", "", "", 200*time.Millisecond, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = m.Mint(context.Background(), params())
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Equal(t, "Minting timed out", apperr.Message(err))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCommandMinterClassify(t *testing.T) {
	m, err := NewCommandMinter("true", "", "", time.Second, nil)
	require.NoError(t, err)

	killed := errors.New("signal: killed")

	assert.NoError(t, m.classify(nil, nil))
	assert.NoError(t, m.classify(nil, context.DeadlineExceeded), "clean exit after deadline is a success")

	err = m.classify(killed, context.DeadlineExceeded)
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Equal(t, msgTimedOut, apperr.Message(err))
	assert.ErrorIs(t, err, killed)

	err = m.classify(killed, nil)
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Equal(t, msgFailed, apperr.Message(err))

	err = m.classify(killed, context.Canceled)
	assert.Equal(t, msgFailed, apperr.Message(err))
}

func TestCommandMinterMissingBinary(t *testing.T) {
	m, err := NewCommandMinter("definitely-not-a-mint-binary", "", "", time.Second, nil)
	require.NoError(t, err)

	res, err := m.Mint(context.Background(), params())
	require.ErrorIs(t, err, apperr.ErrIssuanceExecution)
	assert.Equal(t, -1, res.ExitCode)
}

func TestCommandMinterBoundsOutput(t *testing.T) {
	m, err := NewCommandMinter("sh testdata/mint_noisy.sh", "", "", 10*time.Second, nil)
	require.NoError(t, err)
	m.maxOutput = 100

	res, err := m.Mint(context.Background(), params())
	require.NoError(t, err)
	assert.Contains(t, res.Output, "[output truncated]")
	assert.LessOrEqual(t, len(res.Output), 100+len("\n[output truncated]"))
}

func TestNewCommandMinterValidation(t *testing.T) {
	_, err := NewCommandMinter("   ", "", "", time.Second, nil)
	assert.Error(t, err)
	_, err = NewCommandMinter("npx hardhat run scripts/mint.js", "", "", 0, nil)
	assert.Error(t, err)
}
