//go:build !windows

package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer extracts text from images with Tesseract. A fresh
// gosseract client is created per call; clients are not safe to share
// across concurrent jobs.
type TesseractRecognizer struct {
	language string
}

// NewTesseractRecognizer creates a Tesseract-backed recognizer
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	// Probe once at startup so a missing tesseract install fails fast
	// instead of on the first request.
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	return &TesseractRecognizer{language: language}, nil
}

// Recognize extracts text from an image file
func (r *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(imagePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}
	if err := client.SetImage(absPath); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
	}

	if strings.TrimSpace(text) == "" {
		return NoTextPlaceholder, nil
	}

	return text, nil
}

// Close releases recognizer resources
func (r *TesseractRecognizer) Close() error {
	return nil
}
