package services

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calderadev/doc-convert/internal/models"
)

// UploadPolicy is the per-operation validation policy for uploads
type UploadPolicy struct {
	MaxBytes    int64
	AllowedExts []string // empty means any extension
}

// WordExts and ExcelExts are the extension allow-lists for the office
// conversion operations.
var (
	WordExts  = []string{".doc", ".docx", ".rtf"}
	ExcelExts = []string{".xls", ".xlsx", ".csv"}
)

// PolicyFor returns the upload policy for an operation
func PolicyFor(op models.Operation, maxBytes int64) UploadPolicy {
	switch op {
	case models.OpWordToPDF:
		return UploadPolicy{MaxBytes: maxBytes, AllowedExts: WordExts}
	case models.OpExcelToPDF:
		return UploadPolicy{MaxBytes: maxBytes, AllowedExts: ExcelExts}
	default:
		return UploadPolicy{MaxBytes: maxBytes}
	}
}

// ValidateUpload checks an upload against a policy. The declared filename
// extension and mimetype are trusted; file content is not sniffed.
func ValidateUpload(upload *models.Upload, policy UploadPolicy) error {
	if upload == nil || len(upload.Data) == 0 {
		return &ValidationError{
			Reason:  ReasonMissingFile,
			Message: "file is required",
		}
	}

	if policy.MaxBytes > 0 && upload.Size > policy.MaxBytes {
		return &ValidationError{
			Reason:  ReasonTooLarge,
			Message: TooLargeMessage(policy.MaxBytes),
		}
	}

	if len(policy.AllowedExts) > 0 {
		ext := strings.ToLower(filepath.Ext(upload.Filename))
		if !extAllowed(ext, policy.AllowedExts) {
			return &ValidationError{
				Reason:  ReasonUnsupportedFormat,
				Message: fmt.Sprintf("unsupported file type %q. Supported: %s", ext, strings.Join(policy.AllowedExts, ", ")),
			}
		}
	}

	return nil
}

// TooLargeMessage is the user-facing text for uploads over the ceiling.
// Also used by the HTTP layer when the server's body limit rejects a
// request before the validator ever sees it.
func TooLargeMessage(maxBytes int64) string {
	return fmt.Sprintf("file too large. Maximum size is %dMB", maxBytes/(1024*1024))
}

func extAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
