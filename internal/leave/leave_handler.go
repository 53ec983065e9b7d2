package leave

import (
	"net/http"
	"strconv"

	"leavedesk/internal/identity"
	"leavedesk/internal/shared/apperror"
	"leavedesk/internal/shared/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger ...*zap.Logger) *Handler {
	l := zap.L().Named("leave.handler")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.handler")
	}
	return &Handler{service: service, logger: l}
}

func getActor(c *gin.Context) identity.Actor {
	return identity.Actor{
		EmployeeID:  c.GetString("employee_id"),
		Name:        c.GetString("employee_name"),
		Role:        c.GetString("role"),
		Designation: c.GetString("designation"),
	}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	h.logger.Warn("leave request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", httpErr.Status),
		zap.String("code", httpErr.Code),
		zap.String("message", httpErr.Message),
	)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Apply(c *gin.Context) {
	actor := getActor(c)
	h.logger.Debug("http apply leave", zap.String("actor_id", actor.EmployeeID))

	var req ApplyLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http apply leave validation failed", zap.Error(err))
		httpErr := apperror.ToHTTP(apperror.MapValidationError(err))
		response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
		return
	}

	resp, err := h.service.Apply(c.Request.Context(), actor, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp, nil)
}

func (h *Handler) Decide(c *gin.Context) {
	actor := getActor(c)
	id := c.Param("id")

	var req DecideLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http decide leave validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Input tidak valid", err.Error())
		return
	}

	resp, err := h.service.Decide(c.Request.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) Cancel(c *gin.Context) {
	actor := getActor(c)
	id := c.Param("id")

	var req CancelLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("http cancel leave validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Input tidak valid", err.Error())
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), actor, id, req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

func (h *Handler) List(c *gin.Context) {
	actor := getActor(c)

	var q ListLeavesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.logger.Warn("http list leaves validation failed", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Input tidak valid", err.Error())
		return
	}

	resp, err := h.service.List(c.Request.Context(), actor, q)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if pageSize < 1 {
		pageSize = 10
	}

	total := int64(len(resp))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(resp) {
		start = len(resp)
	}
	if end > len(resp) {
		end = len(resp)
	}

	meta := response.NewPaginationMeta(total, page, pageSize)
	response.Success(c, http.StatusOK, resp[start:end], &meta)
}

func (h *Handler) ListPending(c *gin.Context) {
	resp, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}

// MyStats serves the caller's own aggregation for a given year.
func (h *Handler) MyStats(c *gin.Context) {
	actor := getActor(c)
	h.stats(c, actor.EmployeeID)
}

// EmployeeStats serves another employee's aggregation, manager/admin only
// (enforced on the route).
func (h *Handler) EmployeeStats(c *gin.Context) {
	h.stats(c, c.Param("employeeId"))
}

func (h *Handler) stats(c *gin.Context, employeeID string) {
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))

	resp, err := h.service.Stats(c.Request.Context(), employeeID, year)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp, nil)
}
