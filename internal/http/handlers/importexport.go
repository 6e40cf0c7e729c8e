package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studyport-backend/internal/http/response"
	ie "github.com/yungbote/studyport-backend/internal/modules/importexport"
	"github.com/yungbote/studyport-backend/internal/platform/ctxutil"
	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type ImportExportHandler struct {
	log            *logger.Logger
	transfer       ie.Usecases
	maxUploadBytes int64
}

func NewImportExportHandler(log *logger.Logger, transfer ie.Usecases, maxUploadBytes int64) *ImportExportHandler {
	return &ImportExportHandler{
		log:            log.With("handler", "ImportExportHandler"),
		transfer:       transfer,
		maxUploadBytes: maxUploadBytes,
	}
}

type confirmStudyRequest struct {
	OverwritePropertiesConfirm bool `json:"overwritePropertiesConfirm"`
	OverwriteAssetsConfirm     bool `json:"overwriteAssetsConfirm"`
}

// POST /api/studies/import
func (h *ImportExportHandler) ImportStudy(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	upload, closeFn, ok := h.readUpload(c, "study", rd.UserID)
	if !ok {
		return
	}
	defer closeFn()

	report, err := h.transfer.ImportStudy(c.Request.Context(), upload)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, report)
}

// POST /api/studies/import/:token/confirm
func (h *ImportExportHandler) ConfirmStudy(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	token, ok := parseToken(c)
	if !ok {
		return
	}
	var req confirmStudyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	res, err := h.transfer.ConfirmStudy(c.Request.Context(), ie.ConfirmStudyInput{
		Actor:               rd.UserID,
		Token:               token,
		OverwriteProperties: req.OverwritePropertiesConfirm,
		OverwriteAssets:     req.OverwriteAssetsConfirm,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/studies/:id/components/import
func (h *ImportExportHandler) ImportComponent(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	studyID, ok := parseID(c, "id")
	if !ok {
		return
	}
	upload, closeFn, ok := h.readUpload(c, "component", rd.UserID)
	if !ok {
		return
	}
	defer closeFn()

	report, err := h.transfer.ImportComponent(c.Request.Context(), studyID, upload)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, report)
}

// POST /api/components/import/:token/confirm
func (h *ImportExportHandler) ConfirmComponent(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	token, ok := parseToken(c)
	if !ok {
		return
	}
	res, err := h.transfer.ConfirmComponent(c.Request.Context(), rd.UserID, token)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/imports/:token
func (h *ImportExportHandler) Discard(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	token, ok := parseToken(c)
	if !ok {
		return
	}
	if err := h.transfer.Discard(c.Request.Context(), rd.UserID, token); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/studies/:id/export
func (h *ImportExportHandler) ExportStudy(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	studyID, ok := parseID(c, "id")
	if !ok {
		return
	}
	res, err := h.transfer.ExportStudy(c.Request.Context(), rd.UserID, studyID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.deliver(c, res)
}

// GET /api/studies/:id/components/:componentId/export
func (h *ImportExportHandler) ExportComponent(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	studyID, ok := parseID(c, "id")
	if !ok {
		return
	}
	componentID, ok := parseID(c, "componentId")
	if !ok {
		return
	}
	res, err := h.transfer.ExportComponent(c.Request.Context(), rd.UserID, studyID, componentID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	h.deliver(c, res)
}

func (h *ImportExportHandler) deliver(c *gin.Context, res *ie.ExportResult) {
	defer h.transfer.Cleanup(res)

	f, err := h.transfer.Open(res)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	defer f.Close()

	extra := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", res.Name),
	}
	if res.URL != "" {
		extra["X-Export-Url"] = res.URL
	}
	c.DataFromReader(http.StatusOK, res.Size, "application/zip", f, extra)
}

// readUpload pulls the named multipart file. The returned close func must be
// called once the import is done with the archive.
func (h *ImportExportHandler) readUpload(c *gin.Context, field string, actor uuid.UUID) (ie.Upload, func(), bool) {
	if h.maxUploadBytes > 0 {
		// multipart framing on top of the archive itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)
	}
	fh, err := c.FormFile(field)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("multipart field %q: %w", field, err))
		return ie.Upload{}, nil, false
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "archive_too_large", nil)
		return ie.Upload{}, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return ie.Upload{}, nil, false
	}
	closeFn := func() {
		if cerr := f.Close(); cerr != nil {
			h.log.Debug("Upload close failed", "error", cerr)
		}
	}
	return ie.Upload{Actor: actor, Name: fh.Filename, Archive: f, Size: fh.Size}, closeFn, true
}

func parseID(c *gin.Context, param string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(param))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+strings.ToLower(param), err)
		return 0, false
	}
	return uint(id), true
}

func parseToken(c *gin.Context) (uuid.UUID, bool) {
	token, err := uuid.Parse(strings.TrimSpace(c.Param("token")))
	if err != nil || token == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_token", err)
		return uuid.Nil, false
	}
	return token, true
}
