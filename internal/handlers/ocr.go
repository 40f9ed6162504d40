package handlers

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/calderadev/doc-convert/internal/models"
	"github.com/calderadev/doc-convert/internal/services"
)

// ImageToPDF handles OCR image-to-PDF conversion. Mode "A" produces a
// single text page; mode "B" appends the original image as a second page.
func (h *Handler) ImageToPDF(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.FormValue("user_id"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	upload, err := readUpload(c, "file")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read uploaded file",
		})
	}

	pdf, err := h.orch.Convert(c.Context(), services.ConversionRequest{
		Operation: models.OpImageToPDFOCR,
		UserID:    userID,
		Upload:    upload,
		WithImage: c.FormValue("mode") == "B",
		Fit:       services.FitContain,
	})
	if err != nil {
		status, message := mapPipelineError(err)
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="document.pdf"`)
	return c.Send(pdf)
}

// readUpload pulls one multipart file into memory. A missing field is not
// an error here: the validator reports it with the proper reason.
func readUpload(c *fiber.Ctx, field string) (*models.Upload, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	return &models.Upload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Data:        data,
	}, nil
}
