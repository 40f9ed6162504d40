//go:build windows

package services

import (
	"context"
	"errors"
)

// TesseractRecognizer is a stub on Windows
type TesseractRecognizer struct{}

// NewTesseractRecognizer creates a Tesseract-backed recognizer (not available on Windows)
func NewTesseractRecognizer(language string) (*TesseractRecognizer, error) {
	return nil, errors.New("OCR is not available on Windows - run in Docker container")
}

// Recognize extracts text from an image file
func (r *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	return "", errors.New("OCR is not available on Windows")
}

// Close releases recognizer resources
func (r *TesseractRecognizer) Close() error {
	return nil
}
