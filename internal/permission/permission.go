package permission

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"

	"qrscanner/internal/logger"
)

// Status is the outcome of a permission check or request.
type Status int

const (
	Denied Status = iota
	Granted
)

func (s Status) String() string {
	if s == Granted {
		return "granted"
	}
	return "denied"
}

// ErrNotInteractive is returned by a prompter that cannot ask anyone.
var ErrNotInteractive = errors.New("no interactive terminal to ask for camera access")

// AccessFunc checks whether this process may open the camera device.
type AccessFunc func(path string) error

// Prompter asks the operator for consent once.
type Prompter interface {
	Ask(ctx context.Context, question string) (bool, error)
}

// Gate guards camera startup. Access is granted when the device is usable by
// this process and the operator has consented.
type Gate struct {
	device   string // empty for network sources
	access   AccessFunc
	prompter Prompter
	logger   *logger.Logger

	mu        sync.Mutex
	consented bool
}

// NewGate creates a gate for device ("/dev/video0"); use an empty device for
// sources that need no local hardware. consent records prior operator consent.
func NewGate(device string, consent bool, prompter Prompter, logger *logger.Logger) *Gate {
	return &Gate{
		device:    device,
		access:    DeviceAccess,
		prompter:  prompter,
		logger:    logger,
		consented: consent,
	}
}

// WithAccess replaces the device access check.
func (g *Gate) WithAccess(access AccessFunc) *Gate {
	g.access = access
	return g
}

// Check reports the current status without prompting.
func (g *Gate) Check() Status {
	g.mu.Lock()
	consented := g.consented
	g.mu.Unlock()

	if !consented {
		return Denied
	}
	if g.device == "" {
		return Granted
	}
	if err := g.access(g.device); err != nil {
		g.logger.Warning("Camera device %s not accessible: %v", g.device, err)
		return Denied
	}
	return Granted
}

// Request asks the operator once and re-checks. It never retries.
func (g *Gate) Request(ctx context.Context) Status {
	g.mu.Lock()
	consented := g.consented
	g.mu.Unlock()

	if !consented {
		question := "Allow camera access"
		if g.device != "" {
			question = fmt.Sprintf("Allow camera access to %s", g.device)
		}
		ok, err := g.prompter.Ask(ctx, question)
		if err != nil {
			g.logger.Warning("Camera permission request failed: %v", err)
			return Denied
		}
		if !ok {
			g.logger.Info("Camera permission refused by operator")
			return Denied
		}
		g.mu.Lock()
		g.consented = true
		g.mu.Unlock()
	}

	return g.Check()
}

// DeviceAccess checks read/write access to a device node.
func DeviceAccess(path string) error {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	return nil
}

// DevicePath returns the V4L2 node for a device index.
func DevicePath(device int) string {
	return fmt.Sprintf("/dev/video%d", device)
}

// TerminalPrompter asks on a terminal. Non-terminal input is refused.
type TerminalPrompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

// NewTerminalPrompter prompts on stdin/stdout when stdin is a terminal.
func NewTerminalPrompter() *TerminalPrompter {
	fd := os.Stdin.Fd()
	return &TerminalPrompter{
		in:          os.Stdin,
		out:         os.Stdout,
		interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// NewPrompter prompts on arbitrary streams, treated as interactive.
func NewPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, interactive: true}
}

// Ask writes the question and waits for a yes/no answer.
func (p *TerminalPrompter) Ask(ctx context.Context, question string) (bool, error) {
	if !p.interactive {
		return false, ErrNotInteractive
	}

	fmt.Fprintf(p.out, "%s? [y/N] ", question)

	answer := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.in).ReadString('\n')
		if err != nil && line == "" {
			errCh <- err
			return
		}
		answer <- line
	}()

	select {
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "s", "si", "sí":
			return true, nil
		}
		return false, nil
	case err := <-errCh:
		return false, fmt.Errorf("failed to read answer: %w", err)
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
