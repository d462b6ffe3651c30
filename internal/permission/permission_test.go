package permission

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"qrscanner/internal/logger"
)

type fakePrompter struct {
	answer bool
	err    error
	asked  int
}

func (p *fakePrompter) Ask(ctx context.Context, question string) (bool, error) {
	p.asked++
	return p.answer, p.err
}

func allow(string) error { return nil }

func forbid(string) error { return errors.New("permission denied") }

func TestGate_CheckWithoutConsent(t *testing.T) {
	g := NewGate("/dev/video0", false, &fakePrompter{}, logger.NewDiscard()).WithAccess(allow)
	if g.Check() != Denied {
		t.Error("Expected Denied without consent")
	}
}

func TestGate_CheckWithConsent(t *testing.T) {
	tests := []struct {
		name     string
		device   string
		access   AccessFunc
		expected Status
	}{
		{"accessible device", "/dev/video0", allow, Granted},
		{"inaccessible device", "/dev/video0", forbid, Denied},
		{"network source", "", forbid, Granted},
	}

	for _, tt := range tests {
		g := NewGate(tt.device, true, &fakePrompter{}, logger.NewDiscard()).WithAccess(tt.access)
		if got := g.Check(); got != tt.expected {
			t.Errorf("%s: Check() = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestGate_RequestGranted(t *testing.T) {
	prompter := &fakePrompter{answer: true}
	g := NewGate("/dev/video0", false, prompter, logger.NewDiscard()).WithAccess(allow)

	if got := g.Request(context.Background()); got != Granted {
		t.Errorf("Request() = %v, expected Granted", got)
	}
	if g.Check() != Granted {
		t.Error("Consent should be remembered")
	}
	if prompter.asked != 1 {
		t.Errorf("Expected one prompt, got %d", prompter.asked)
	}
}

func TestGate_RequestRefused(t *testing.T) {
	prompter := &fakePrompter{answer: false}
	g := NewGate("/dev/video0", false, prompter, logger.NewDiscard()).WithAccess(allow)

	if got := g.Request(context.Background()); got != Denied {
		t.Errorf("Request() = %v, expected Denied", got)
	}
	if g.Check() != Denied {
		t.Error("Refusal must not grant access")
	}
}

func TestGate_RequestGrantedButDeviceLocked(t *testing.T) {
	g := NewGate("/dev/video0", false, &fakePrompter{answer: true}, logger.NewDiscard()).WithAccess(forbid)
	if got := g.Request(context.Background()); got != Denied {
		t.Errorf("Request() = %v, expected Denied for locked device", got)
	}
}

func TestGate_RequestNotInteractive(t *testing.T) {
	g := NewGate("", false, &fakePrompter{err: ErrNotInteractive}, logger.NewDiscard())
	if got := g.Request(context.Background()); got != Denied {
		t.Errorf("Request() = %v, expected Denied", got)
	}
}

func TestTerminalPrompter_Answers(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"si\n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		p := NewPrompter(strings.NewReader(tt.input), &out)
		got, err := p.Ask(context.Background(), "Allow camera access")
		if err != nil {
			t.Fatalf("Ask(%q) failed: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("Ask(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
		if !strings.Contains(out.String(), "Allow camera access? [y/N]") {
			t.Errorf("Unexpected prompt %q", out.String())
		}
	}
}

func TestTerminalPrompter_NotInteractive(t *testing.T) {
	p := &TerminalPrompter{in: strings.NewReader("y\n"), out: &bytes.Buffer{}}
	if _, err := p.Ask(context.Background(), "Allow"); !errors.Is(err, ErrNotInteractive) {
		t.Errorf("Expected ErrNotInteractive, got %v", err)
	}
}

func TestDevicePath(t *testing.T) {
	if got := DevicePath(2); got != "/dev/video2" {
		t.Errorf("DevicePath(2) = %q", got)
	}
}
