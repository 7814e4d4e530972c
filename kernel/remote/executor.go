package remote

import (
	"context"
	"strings"
	"time"

	"github.com/chunga-ict/vpnctl/kernel/fault"
)

const (
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// Result is the terminal state of one remote script run.
type Result struct {
	Status string
	Stdout string
	Stderr string
}

func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Err converts a non-success terminal status into a RemoteCommandFailed error carrying
// the remote error text, or the status when stderr is empty.
func (r *Result) Err() error {
	if r.Succeeded() {
		return nil
	}
	if r == nil {
		return fault.New(fault.RemoteCommandFailed, "remote command produced no result")
	}
	detail := strings.TrimSpace(r.Stderr)
	if detail == "" {
		detail = r.Status
	}
	return fault.New(fault.RemoteCommandFailed, "%s", detail)
}

// LastLine is where scripts emit their machine readable result.
func (r *Result) LastLine() string {
	lines := strings.Split(strings.TrimSpace(r.Stdout), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Executor runs a bash script on the VPN host and blocks until it reaches a terminal
// state or timeout elapses. Exceeding timeout yields a Timeout fault.
type Executor interface {
	Run(ctx context.Context, script string, timeout time.Duration) (*Result, error)
}
