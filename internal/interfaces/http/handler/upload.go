package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/interfaces/http/dto"
)

// multipartOverhead is allowed on top of the file size for form framing
const multipartOverhead = 64 << 10

// UploadHandler handles product image uploads
type UploadHandler struct {
	BaseHandler
	uploads *storefront.UploadService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads *storefront.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload godoc
// @ID           uploadImage
// @Summary      Upload a product image
// @Description  Stores the image in object storage and returns a presigned download URL. The content type is sniffed from the bytes.
// @Tags         uploads
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Image"
// @Success      201 {object} Envelope[storefront.UploadResult]
// @Failure      400 {object} ErrorEnvelope
// @Failure      413 {object} ErrorEnvelope
// @Failure      415 {object} ErrorEnvelope
// @Failure      503 {object} ErrorEnvelope
// @Router       /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	limit := h.uploads.MaxSize() + multipartOverhead
	if c.Request.ContentLength > limit {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Uploaded file exceeds the size limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Uploaded file exceeds the size limit")
			return
		}
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	res, err := h.uploads.Upload(c.Request.Context(), file)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, res)
}
