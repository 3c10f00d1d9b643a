package queue

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Spooler sends a file to a physical printer.
type Spooler interface {
	Print(ctx context.Context, job PrintJob) error
}

// LPSpooler prints through the CUPS lp command.
type LPSpooler struct {
	Command string
}

func (s LPSpooler) Print(ctx context.Context, job PrintJob) error {
	cmd := s.Command
	if cmd == "" {
		cmd = "lp"
	}

	args := []string{}
	if strings.TrimSpace(job.PrinterName) != "" {
		args = append(args, "-d", job.PrinterName)
	}
	args = append(args, job.FilePath)

	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", cmd, err, strings.TrimSpace(string(out)))
	}
	return nil
}
