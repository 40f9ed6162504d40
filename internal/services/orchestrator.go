package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/calderadev/doc-convert/internal/models"
)

// QuotaGate admits or rejects a conversion for a user. Implemented by the
// database usage repo; the admission must be atomic against concurrent
// requests from the same user.
type QuotaGate interface {
	Admit(ctx context.Context, userID string, freeLimit int) (bool, int, error)
}

// ConversionRequest describes one conversion to run
type ConversionRequest struct {
	Operation models.Operation
	// UserID gates the request through the free-usage quota when set.
	// Requests without a user identity are not quota-checked.
	UserID string
	Upload *models.Upload
	// WithImage appends the source image as a second page (OCR mode "B")
	WithImage bool
	Fit       FitMode
}

// Orchestrator composes the conversion pipeline: validate, quota-check,
// stage, transform, assemble, clean up. The workspace lives exactly as
// long as one call to Convert.
type Orchestrator struct {
	quota      QuotaGate
	freeLimit  int
	workspaces *WorkspaceManager
	recognizer Recognizer
	assembler  *Assembler
	office     DocumentConverter
	maxBytes   int64
}

// NewOrchestrator wires the pipeline components together
func NewOrchestrator(
	quota QuotaGate,
	freeLimit int,
	workspaces *WorkspaceManager,
	recognizer Recognizer,
	assembler *Assembler,
	office DocumentConverter,
	maxBytes int64,
) *Orchestrator {
	return &Orchestrator{
		quota:      quota,
		freeLimit:  freeLimit,
		workspaces: workspaces,
		recognizer: recognizer,
		assembler:  assembler,
		office:     office,
		maxBytes:   maxBytes,
	}
}

// Convert runs one conversion end to end and returns the PDF bytes. The
// result is fully materialized before the workspace is removed, so the
// caller can stream it without holding any filesystem resource; cleanup
// runs on every exit path.
func (o *Orchestrator) Convert(ctx context.Context, req ConversionRequest) ([]byte, error) {
	// Validating
	if err := ValidateUpload(req.Upload, PolicyFor(req.Operation, o.maxBytes)); err != nil {
		return nil, err
	}

	// QuotaCheck. A rejected request never reaches staging: no workspace
	// exists for it.
	if req.UserID != "" {
		admitted, _, err := o.quota.Admit(ctx, req.UserID, o.freeLimit)
		if err != nil {
			return nil, fmt.Errorf("quota check failed: %w", err)
		}
		if !admitted {
			return nil, &QuotaExceededError{Limit: o.freeLimit}
		}
	}

	// Staging
	ws, err := o.workspaces.Create()
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer o.workspaces.Destroy(ws)

	job := &models.ConversionJob{
		Operation:     req.Operation,
		WorkspacePath: ws,
		StartedAt:     time.Now(),
	}

	job.InputPath, err = o.workspaces.Stage(ws, req.Upload.Filename, req.Upload.Data)
	if err != nil {
		job.State = models.JobStateFailed
		return nil, err
	}
	job.State = models.JobStateStaged

	// Transforming
	job.State = models.JobStateConverting
	var out []byte
	if req.Operation.IsOffice() {
		out, err = o.convertOffice(ctx, job)
	} else {
		out, err = o.convertImage(ctx, job, req)
	}
	if err != nil {
		job.State = models.JobStateFailed
		return nil, err
	}

	job.State = models.JobStateDone
	return out, nil
}

// convertOffice delegates to the external converter process
func (o *Orchestrator) convertOffice(ctx context.Context, job *models.ConversionJob) ([]byte, error) {
	outputPath, err := o.office.Convert(ctx, job.InputPath, job.WorkspacePath)
	if err != nil {
		return nil, err
	}
	job.OutputPath = outputPath

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converter output: %w", err)
	}
	return data, nil
}

// convertImage runs the recognizer-plus-assembler path
func (o *Orchestrator) convertImage(ctx context.Context, job *models.ConversionJob, req ConversionRequest) ([]byte, error) {
	doc := o.assembler.NewDocument()

	if job.Operation == models.OpImageToPDFOCR {
		text, err := o.recognizer.Recognize(ctx, job.InputPath)
		if err != nil {
			return nil, err
		}
		doc.AddTextPage(text)
	}

	if req.WithImage || job.Operation == models.OpImageToPDFPlain {
		if err := doc.AddImagePage(req.Upload.Data, req.Upload.ContentType, req.Fit); err != nil {
			return nil, err
		}
	}

	return doc.Bytes()
}
