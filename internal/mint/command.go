package mint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/logging"
)

const (
	defaultMaxOutput = 64 << 10
	waitDelay        = 5 * time.Second
)

// CommandMinter runs an external mint command such as a contract deployment
// script. Identity attributes are passed as MINT_* environment variables and
// the target network as a trailing --network flag.
type CommandMinter struct {
	name      string
	args      []string
	workDir   string
	network   string
	timeout   time.Duration
	maxOutput int
	logger    *slog.Logger
}

// NewCommandMinter parses command (whitespace separated, no shell) and binds
// it to a working directory, network and timeout.
func NewCommandMinter(command, workDir, network string, timeout time.Duration, logger *slog.Logger) (*CommandMinter, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("mint command is empty")
	}
	if timeout <= 0 {
		return nil, errors.New("mint timeout must be positive")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CommandMinter{
		name:      fields[0],
		args:      fields[1:],
		workDir:   workDir,
		network:   network,
		timeout:   timeout,
		maxOutput: defaultMaxOutput,
		logger:    logger,
	}, nil
}

// Mint runs the command to completion or until the timeout expires. Timeouts,
// start failures and non-zero exits all fail with IssuanceExecutionFailed.
func (m *CommandMinter) Mint(ctx context.Context, p Params) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := append([]string{}, m.args...)
	if m.network != "" {
		args = append(args, "--network", m.network)
	}

	cmd := exec.CommandContext(ctx, m.name, args...)
	cmd.Dir = m.workDir
	cmd.Env = append(os.Environ(),
		"MINT_CATEGORY="+p.Category,
		"MINT_ADDRESS="+p.TargetAddress,
		"MINT_FIRST_NAME="+p.FirstName,
		"MINT_LAST_NAME="+p.LastName,
		"MINT_DATE_OF_BIRTH="+p.DateOfBirth,
		"MINT_PHONE="+p.Phone,
		"MINT_NETWORK="+m.network,
	)
	cmd.WaitDelay = waitDelay

	out := &boundedBuffer{limit: m.maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	runErr := cmd.Run()

	res := Result{ExitCode: -1, Output: out.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	attrs := []any{
		slog.String("category", p.Category),
		slog.String("address", p.TargetAddress),
		slog.Int("exit_code", res.ExitCode),
		slog.Duration("duration", time.Since(start)),
	}

	if err := m.classify(runErr, ctx.Err()); err != nil {
		msg := "mint failed"
		if apperr.Message(err) == msgTimedOut {
			msg = "mint timed out"
		}
		m.logger.Error(msg, append(attrs, slog.Any("error", runErr), slog.String("output", res.Output))...)
		return res, err
	}

	m.logger.Info("mint completed", attrs...)
	return res, nil
}

const (
	msgTimedOut = "Minting timed out"
	msgFailed   = "Minting failed"
)

// classify maps the command outcome to an error. A run that exited cleanly
// succeeds even if the deadline passed while its output was being collected.
func (m *CommandMinter) classify(runErr, ctxErr error) error {
	if runErr == nil {
		return nil
	}
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.ErrIssuanceExecution, msgTimedOut, fmt.Errorf("after %s: %w", m.timeout, runErr))
	}
	return apperr.Wrap(apperr.ErrIssuanceExecution, msgFailed, runErr)
}

// boundedBuffer keeps the first limit bytes written to it and drops the rest.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.buf)
	if room > len(p) {
		room = len(p)
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	if room < len(p) {
		b.truncated = true
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return string(b.buf) + "\n[output truncated]"
	}
	return string(b.buf)
}
