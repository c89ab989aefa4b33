package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certhub/backend/internal/interfaces/http/dto"
)

// UploadField is the multipart field carrying the uploaded file
const UploadField = "file"

// readUpload reads the uploaded file of the request. On failure it writes the
// response and returns false.
func (h *BaseHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	fh, err := c.FormFile(UploadField)
	if err != nil {
		h.uploadError(c, err, "A CSV file is required in the '"+UploadField+"' field")
		return "", nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.InternalError(c, "Failed to open uploaded file")
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.uploadError(c, err, "Failed to read uploaded file")
		return "", nil, false
	}
	return fh.Filename, data, true
}

func (h *BaseHandler) uploadError(c *gin.Context, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	h.BadRequest(c, message)
}
