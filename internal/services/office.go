package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DocumentConverter turns a staged office document into a PDF inside the
// job's workspace and returns the output path.
type DocumentConverter interface {
	Convert(ctx context.Context, inputPath, outDir string) (string, error)
}

// OfficeConverter shells out to a headless LibreOffice. It holds no state
// beyond its configuration and is safe to invoke from concurrent jobs, as
// long as each job converts into its own workspace.
type OfficeConverter struct {
	binPath string
	timeout time.Duration
}

// NewOfficeConverter creates a converter. If binPath is empty, "soffice"
// is used.
func NewOfficeConverter(binPath string, timeout time.Duration) *OfficeConverter {
	if binPath == "" {
		binPath = "soffice"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OfficeConverter{binPath: binPath, timeout: timeout}
}

// Convert runs the external converter with a hard deadline. On expiry the
// process is killed and a timeout error carrying the captured output is
// returned. On success exactly one .pdf must exist in outDir, and it must
// parse as a PDF with at least one page.
func (c *OfficeConverter) Convert(ctx context.Context, inputPath, outDir string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.binPath,
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Orphaned children of a killed soffice can keep the output pipes
	// open; don't let them stall Wait past the deadline.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	captured := stdout.String() + stderr.String()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return "", &ConverterError{
			Reason: ConverterTimeout,
			Output: captured,
			Err:    fmt.Errorf("killed after %s", c.timeout),
		}
	}
	if err != nil {
		return "", &ConverterError{
			Reason: ConverterNonZeroExit,
			Output: captured,
			Err:    err,
		}
	}

	outputPath, err := findSinglePDF(outDir, captured)
	if err != nil {
		return "", err
	}

	// A crashed converter can exit zero and still leave a truncated file
	// behind; make sure the result parses before anyone streams it.
	pages, err := api.PageCountFile(outputPath)
	if err != nil || pages < 1 {
		return "", &ConverterError{
			Reason: ConverterBadOutput,
			Output: captured,
			Err:    err,
		}
	}

	return outputPath, nil
}

func findSinglePDF(outDir, captured string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if err != nil {
		return "", &ConverterError{Reason: ConverterNoOutput, Output: captured, Err: err}
	}
	if len(matches) != 1 {
		return "", &ConverterError{
			Reason: ConverterNoOutput,
			Output: captured,
			Err:    fmt.Errorf("expected 1 pdf in output dir, found %d", len(matches)),
		}
	}
	return matches[0], nil
}
