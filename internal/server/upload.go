package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	uploaddomain "github.com/smallbiznis/portal/internal/upload/domain"
)

const (
	uploadFormField        = "files"
	defaultFileContentType = "application/octet-stream"
	multipartOverheadBytes = 1 << 20
)

func (s *Server) UploadSupportFiles(c *gin.Context) {
	files, err := s.readUploadForm(c, s.policy.Get().Upload.MaxGenericBytes)
	if err != nil {
		s.rejectUpload(c, uploaddomain.KindSupport, err)
		return
	}

	v := &ValidationErrors{}
	requestID := strings.TrimSpace(c.PostForm("request_id"))
	if requestID == "" {
		v.Add("request_id", "field_required")
	}
	if !v.Empty() {
		s.rejectUpload(c, uploaddomain.KindSupport, v)
		return
	}

	attrs, _ := s.attributes(c)
	res, err := s.uploadSvc.UploadSupport(c.Request.Context(), uploaddomain.SupportRequest{
		CustomerID: attrs.CustomerID,
		UserID:     attrs.Subject(),
		RequestID:  requestID,
		ReplyID:    strings.TrimSpace(c.PostForm("reply_id")),
		Files:      files,
	})
	if err != nil {
		s.rejectUpload(c, uploaddomain.KindSupport, err)
		return
	}
	s.respondUpload(c, uploaddomain.KindSupport, res)
}

func (s *Server) UploadServiceFiles(c *gin.Context) {
	files, err := s.readUploadForm(c, s.policy.Get().Upload.MaxServiceBytes)
	if err != nil {
		s.rejectUpload(c, uploaddomain.KindService, err)
		return
	}

	v := &ValidationErrors{}
	fileType := strings.TrimSpace(c.PostForm("file_type"))
	if fileType == "" {
		v.Add("file_type", "field_required")
	}
	historyID := strings.TrimSpace(c.PostForm("processing_history_id"))
	if historyID == "" {
		v.Add("processing_history_id", "field_required")
	}
	if !v.Empty() {
		s.rejectUpload(c, uploaddomain.KindService, v)
		return
	}

	attrs, _ := s.attributes(c)
	res, err := s.uploadSvc.UploadService(c.Request.Context(), uploaddomain.ServiceRequest{
		CustomerID:          attrs.CustomerID,
		UserID:              attrs.Subject(),
		FileType:            fileType,
		ProcessingHistoryID: historyID,
		PolicyID:            strings.TrimSpace(c.PostForm("policy_id")),
		Files:               files,
	})
	if err != nil {
		s.rejectUpload(c, uploaddomain.KindService, err)
		return
	}
	s.respondUpload(c, uploaddomain.KindService, res)
}

// readUploadForm caps the body at the batch ceiling. Oversized single files
// inside the cap are rejected per item by the upload service.
func (s *Server) readUploadForm(c *gin.Context, perFileBytes int64) ([]uploaddomain.File, error) {
	maxFiles := int64(max(s.policy.Get().Upload.MaxFiles, 1))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFiles*perFileBytes+multipartOverheadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, newValidationError(uploadFormField, string(uploaddomain.KindFileTooLarge))
		}
		return nil, newValidationError("request", "invalid_value")
	}
	return formFiles(form.File[uploadFormField]), nil
}

func formFiles(headers []*multipart.FileHeader) []uploaddomain.File {
	files := make([]uploaddomain.File, 0, len(headers))
	for _, fh := range headers {
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = defaultFileContentType
		}
		files = append(files, uploaddomain.File{
			Name:        fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

func (s *Server) rejectUpload(c *gin.Context, kind uploaddomain.Kind, err error) {
	s.obsMetrics.RecordUpload(c.Request.Context(), string(kind), "rejected")
	s.AbortWithError(c, err)
}

// respondUpload keeps stored files when others fail. Item errors are keyed by
// the submitted file name.
func (s *Server) respondUpload(c *gin.Context, kind uploaddomain.Kind, res *uploaddomain.Result) {
	ctx := c.Request.Context()
	if len(res.Errors) == 0 {
		s.obsMetrics.RecordUpload(ctx, string(kind), "success")
		s.respond(c, "upload_succeeded", res)
		return
	}

	lang := s.lang(c)
	fields := make(map[string][]string, len(res.Errors))
	storageOnly := true
	for _, item := range res.Errors {
		fields[item.Name] = append(fields[item.Name], string(item.Kind))
		if item.Kind != uploaddomain.KindStorageUnavailable {
			storageOnly = false
		}
	}

	status := http.StatusMultiStatus
	message := "upload_partial"
	outcome := "partial"
	if len(res.Uploaded) == 0 {
		message = "upload_failed"
		outcome = "failed"
		status = http.StatusUnprocessableEntity
		if storageOnly {
			status = http.StatusBadGateway
		}
	}
	s.obsMetrics.RecordUpload(ctx, string(kind), outcome)

	c.JSON(status, ActionResult{
		Success: false,
		Message: s.dict.Message(lang, message),
		Errors:  s.localizeFields(lang, fields),
		Data:    res,
	})
}
