package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/lldpwatch/lldpwatchd/internal/lldp"
)

// LocalAgentName identifies the local lldpd in events and API output.
const LocalAgentName = "local"

// commandRunner abstracts subprocess execution for tests.
type commandRunner func(ctx context.Context, path string, args ...string) (stdout, stderr []byte, err error)

// LLDPCtl reads the local lldpd daemon through the lldpctl command.
type LLDPCtl struct {
	path string
	run  commandRunner
}

// NewLLDPCtl builds a provider around the lldpctl binary. An empty
// path means "lldpctl" from PATH.
func NewLLDPCtl(path string) *LLDPCtl {
	if path == "" {
		path = "lldpctl"
	}
	return &LLDPCtl{path: path, run: runCommand}
}

func (p *LLDPCtl) Name() string { return LocalAgentName }

func (p *LLDPCtl) FetchNeighbors(ctx context.Context) ([]lldp.Record, error) {
	stdout, stderr, err := p.run(ctx, p.path, "-f", "keyvalue")
	if err != nil {
		return nil, p.wrapExecErr(ctx, stderr, err)
	}
	return ParseKeyValue(string(stdout)), nil
}

func (p *LLDPCtl) AgentVersion(ctx context.Context) (string, error) {
	stdout, stderr, err := p.run(ctx, p.path, "-v")
	if err != nil {
		return "", p.wrapExecErr(ctx, stderr, err)
	}
	return NormalizeVersion(string(stdout)), nil
}

func (p *LLDPCtl) wrapExecErr(ctx context.Context, stderr []byte, err error) error {
	logAgentStderr(stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s did not finish in time", ErrAgentTimeout, p.path)
		}
		return ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s not found, is lldpd installed?", ErrAgentUnavailable, p.path)
	}
	return fmt.Errorf("%w: running %s: %v", ErrAgentUnavailable, p.path, err)
}

// logAgentStderr forwards lldpctl's own diagnostics into our log.
func logAgentStderr(stderr []byte) {
	for _, line := range strings.Split(string(stderr), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			log.WithField("agent", LocalAgentName).Debug(line)
		}
	}
}

func runCommand(ctx context.Context, path string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
