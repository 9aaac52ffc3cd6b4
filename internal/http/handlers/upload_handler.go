// Upload HTTP handler.
//
// Attachments are uploaded out-of-band before the message referencing them
// is sent: the client POSTs the file here, receives its public URL and
// metadata, and passes those along in send_message / POST /messages. Files
// land in a local uploads directory served as static content.
package handlers

import (
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxUploadBytes caps a single attachment (10 MiB).
const maxUploadBytes = 10 << 20

// UploadResponse is returned after a successful upload; the fields feed
// straight into the send payload.
type UploadResponse struct {
	FileURL      string `json:"file_url"`
	FileType     string `json:"file_type"`
	OriginalName string `json:"original_name"`
}

// Upload stores one multipart attachment (form field "file") under the
// uploads directory. Stored names are random UUIDs plus the original
// extension so uploads can never collide or traverse paths.
func (h *Handlers) Upload(c *gin.Context) {
	if _, authed := requireUser(c); !authed {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' required")
		return
	}
	if fh.Size > maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "file too large")
		return
	}

	name := uuid.NewString() + safeExt(fh.Filename)
	dst := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		return
	}

	ok(c, http.StatusCreated, UploadResponse{
		FileURL:      path.Join("/uploads", name),
		FileType:     contentType(fh),
		OriginalName: filepath.Base(fh.Filename),
	})
}

// safeExt returns a lowercase extension stripped of anything suspicious.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\?%*:|"<>`) {
		return ""
	}
	return ext
}

// contentType reads the client-declared MIME type from the part header.
func contentType(fh *multipart.FileHeader) string {
	return fh.Header.Get("Content-Type")
}
