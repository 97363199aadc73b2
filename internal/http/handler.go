package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/filters"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/http/middleware"
	"github.com/nurpe/pestops-contracts/internal/model"
	"github.com/nurpe/pestops-contracts/internal/service"
)

const maxAttachmentSize = 10 << 20

type Handler struct {
	builder *service.BuilderService
	log     zerolog.Logger
	origins []string
}

// NewHandler takes the same allowed origins as the CORS layer; they also
// gate websocket upgrades.
func NewHandler(builder *service.BuilderService, log zerolog.Logger, allowedOrigins []string) *Handler {
	return &Handler{builder: builder, log: log, origins: originPatterns(allowedOrigins)}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/builder/dropdowns", h.dropdowns)
	protected.POST("/builder/sessions", h.openSession)
	protected.GET("/builder/contracts/:contractId/submissions", h.submissions)

	sessions := protected.Group("/builder/sessions/:id")
	sessions.GET("", h.getSession)
	sessions.DELETE("", h.closeSession)
	sessions.POST("/fields", h.changeField)
	sessions.POST("/dates", h.changeDate)
	sessions.POST("/buffer", h.changeBuffer)
	sessions.POST("/attachment", h.uploadAttachment)
	sessions.DELETE("/attachment", h.removeAttachment)
	sessions.POST("/lines", h.commitLine)
	sessions.POST("/lines/cancel", h.cancelEditLine)
	sessions.POST("/lines/:key/edit", h.startEditLine)
	sessions.DELETE("/lines/:key", h.removeLine)
	sessions.POST("/focus/next", h.focusNext)
	sessions.POST("/keys", h.handleKey)
	sessions.POST("/mounts", h.setMounted)
	sessions.POST("/submit", h.submit)
	sessions.POST("/schedule", h.generateSchedule)
	sessions.POST("/tickets", h.persistTickets)
	sessions.GET("/export/schedule.xlsx", h.exportSchedule)
	sessions.GET("/export/summary.pdf", h.exportSummary)
	sessions.GET("/events", h.events)

	protected.GET("/filters/:screen", h.loadFilters)
	protected.PUT("/filters/:screen", h.saveFilters)
}

func (h *Handler) dropdowns(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}
	dropdowns, err := h.builder.Dropdowns(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dropdowns)
}

type openSessionRequest struct {
	ContractID string `json:"contractId"`
}

func (h *Handler) openSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshot, err := h.builder.OpenSession(c.Request.Context(), principal, req.ContractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (h *Handler) getSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	snapshot, err := h.builder.GetSession(principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) closeSession(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.builder.CloseSession(principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type fieldChangeRequest struct {
	Field    string `json:"field" binding:"required"`
	Value    string `json:"value"`
	OptionID string `json:"optionId"`
}

func (r fieldChangeRequest) change() builder.FieldChange {
	return builder.FieldChange{
		Field:    model.Field(strings.TrimSpace(r.Field)),
		Value:    r.Value,
		OptionID: strings.TrimSpace(r.OptionID),
	}
}

func (h *Handler) changeField(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req fieldChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondSnapshot(c)(h.builder.ChangeField(principal, c.Param("id"), req.change()))
}

func (h *Handler) changeBuffer(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req fieldChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondSnapshot(c)(h.builder.ChangeBuffer(principal, c.Param("id"), req.change()))
}

type dateChangeRequest struct {
	Field string  `json:"field" binding:"required"`
	Value *string `json:"value"`
}

func (h *Handler) changeDate(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req dateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	field := model.Field(strings.TrimSpace(req.Field))
	var value *time.Time
	if req.Value != nil && strings.TrimSpace(*req.Value) != "" {
		parsed, err := parseDateOrClock(field, *req.Value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + string(field)})
			return
		}
		value = &parsed
	}
	h.respondSnapshot(c)(h.builder.ChangeDate(principal, c.Param("id"), field, value))
}

func (h *Handler) uploadAttachment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > maxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment is too large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if len(content) > maxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment is too large"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	h.respondSnapshot(c)(h.builder.SetAttachment(principal, c.Param("id"), header.Filename, contentType, content))
}

func (h *Handler) removeAttachment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	h.respondSnapshot(c)(h.builder.SetAttachment(principal, c.Param("id"), "", "", nil))
}

func (h *Handler) commitLine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	h.respondSnapshot(c)(h.builder.CommitLine(principal, c.Param("id")))
}

func (h *Handler) startEditLine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	h.respondSnapshot(c)(h.builder.StartEditLine(principal, c.Param("id"), c.Param("key")))
}

func (h *Handler) removeLine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	h.respondSnapshot(c)(h.builder.RemoveLine(principal, c.Param("id"), c.Param("key")))
}

func (h *Handler) cancelEditLine(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	h.respondSnapshot(c)(h.builder.CancelEditLine(principal, c.Param("id")))
}

type focusRequest struct {
	Current string `json:"current"`
}

func (h *Handler) focusNext(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := h.builder.FocusNext(principal, c.Param("id"), req.Current)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, target)
}

type keyRequest struct {
	Current string           `json:"current"`
	Key     builder.KeyPress `json:"key"`
}

func (h *Handler) handleKey(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.builder.HandleKey(principal, c.Param("id"), req.Current, req.Key)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type mountsRequest struct {
	Mounted map[string]bool `json:"mounted" binding:"required"`
}

func (h *Handler) setMounted(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req mountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respondSnapshot(c)(h.builder.SetMounted(principal, c.Param("id"), req.Mounted))
}

func (h *Handler) submit(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	result, err := h.builder.Submit(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) generateSchedule(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	tickets, err := h.builder.GenerateSchedule(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) persistTickets(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.builder.PersistTickets(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tickets saved"})
}

func (h *Handler) exportSchedule(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	result, err := h.builder.ExportSchedule(principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) exportSummary(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	result, err := h.builder.ExportSummary(principal, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) submissions(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.builder.SubmissionHistory(c.Request.Context(), principal, c.Param("contractId"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": rows})
}

func (h *Handler) loadFilters(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	saved, err := h.builder.LoadFilters(c.Request.Context(), principal, c.Param("screen"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filters": saved})
}

type saveFiltersRequest struct {
	Filters filters.Filters `json:"filters"`
}

func (h *Handler) saveFilters(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req saveFiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.builder.SaveFilters(c.Request.Context(), principal, c.Param("screen"), req.Filters); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func (h *Handler) respondSnapshot(c *gin.Context) func(builder.Snapshot, error) {
	return func(snapshot builder.Snapshot, err error) {
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, snapshot)
	}
}

func sendFile(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var validation *builder.ValidationError
	var persistence *builder.PersistenceFailure

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validation.Field, "code": validation.Code})
	case errors.As(err, &persistence):
		h.log.Warn().Err(err).Str("operation", persistence.Operation).Msg("save failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, builder.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, builder.ErrLineItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoTickets):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, builder.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrUpstream),
		errors.Is(err, gateway.ErrBadResponse):
		h.log.Error().Err(err).Msg("gateway call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
	default:
		h.log.Error().Err(err).Msg("builder request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseDateOrClock(field model.Field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	if field == model.FieldTimeFrom || field == model.FieldTimeTo {
		layouts = []string{"15:04:05", "15:04"}
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
