package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/calderadev/doc-convert/internal/models"
	"github.com/calderadev/doc-convert/internal/services"
)

// WordToPDF converts an uploaded word-processor document to PDF
func (h *Handler) WordToPDF(c *fiber.Ctx) error {
	return h.convertOffice(c, models.OpWordToPDF)
}

// ExcelToPDF converts an uploaded spreadsheet to PDF
func (h *Handler) ExcelToPDF(c *fiber.Ctx) error {
	return h.convertOffice(c, models.OpExcelToPDF)
}

func (h *Handler) convertOffice(c *fiber.Ctx, op models.Operation) error {
	upload, err := readUpload(c, "file")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"ok":    false,
			"error": "failed to read uploaded file",
		})
	}

	pdf, err := h.orch.Convert(c.Context(), services.ConversionRequest{
		Operation: op,
		Upload:    upload,
	})
	if err != nil {
		status, message := mapPipelineError(err)
		return c.Status(status).JSON(fiber.Map{
			"ok":    false,
			"error": message,
		})
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="document.pdf"`)
	return c.Send(pdf)
}
