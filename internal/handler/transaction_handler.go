package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/grachmannico95/wallet-webhook/internal/service"
	"github.com/grachmannico95/wallet-webhook/pkg/logger"
	"github.com/labstack/echo/v4"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusNotFound = "not_found"
)

type TransactionHandler struct {
	service service.TransactionService
	logger  *logger.Logger
}

func NewTransactionHandler(service service.TransactionService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		logger:  log,
	}
}

type transitionRequest struct {
	ID           string `json:"id" form:"id"`
	CustomerUser string `json:"customer_user" form:"customer_user"`
}

func (h *TransactionHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn(ctx, "Failed to read webhook body",
			"error", err,
		)
		return errorJSON(c, http.StatusBadRequest, "failed to read body")
	}

	result, err := h.service.Ingest(ctx, body)
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    statusSuccess,
		"id":        result.ID,
		"duplicate": result.Duplicate,
	})
}

func (h *TransactionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return errorJSON(c, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	query := service.SummaryQuery{
		Limit:  limit,
		Status: parseStatus(c.QueryParam("status")),
	}

	summary, err := h.service.Summary(ctx, query)
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, summary)
}

func (h *TransactionHandler) Approve(c echo.Context) error {
	req, err := bindTransition(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Approve(c.Request().Context(), req.ID, req.CustomerUser)
	if err != nil {
		return h.failure(c, err)
	}

	return transitioned(c, tx)
}

func (h *TransactionHandler) Cancel(c echo.Context) error {
	req, err := bindTransition(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Cancel(c.Request().Context(), req.ID)
	if err != nil {
		return h.failure(c, err)
	}

	return transitioned(c, tx)
}

func (h *TransactionHandler) Restore(c echo.Context) error {
	req, err := bindTransition(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Restore(c.Request().Context(), req.ID)
	if err != nil {
		return h.failure(c, err)
	}

	return transitioned(c, tx)
}

func (h *TransactionHandler) ResetApproved(c echo.Context) error {
	count, err := h.service.ResetApproved(c.Request().Context())
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"count":  count,
	})
}

func (h *TransactionHandler) ResetCancelled(c echo.Context) error {
	count, err := h.service.ResetCancelled(c.Request().Context())
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"count":  count,
	})
}

func (h *TransactionHandler) History(c echo.Context) error {
	id := c.Param("id")

	entries, err := h.service.History(c.Request().Context(), id)
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":      id,
		"history": entries,
	})
}

func (h *TransactionHandler) UploadSlip(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	file, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn(ctx, "Failed to get file from request",
			"error", err,
		)
		return errorJSON(c, http.StatusBadRequest, "file is required")
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error(ctx, "Failed to open file",
			"error", err,
		)
		return errorJSON(c, http.StatusInternalServerError, "failed to open file")
	}
	defer src.Close()

	tx, err := h.service.AttachSlip(ctx, id, src)
	if err != nil {
		return h.failure(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": statusSuccess,
		"id":     tx.ID,
	})
}

func (h *TransactionHandler) Slip(c echo.Context) error {
	rc, contentType, err := h.service.OpenSlip(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.failure(c, err)
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, contentType, rc)
}

// failure maps service errors onto HTTP responses.
func (h *TransactionHandler) failure(c echo.Context, err error) error {
	ctx := c.Request().Context()

	switch {
	case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrSlipNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"status":  statusNotFound,
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidTransition):
		return errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidSlip):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(ctx, "Request failed",
			"path", c.Path(),
			"error", err,
		)
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
}

func bindTransition(c echo.Context) (transitionRequest, error) {
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return req, errors.New("invalid request body")
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return req, errors.New("id is required")
	}

	return req, nil
}

func transitioned(c echo.Context, tx *domain.Transaction) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             statusSuccess,
		"id":                 tx.ID,
		"transaction_status": tx.Status,
	})
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{
		"status":  statusError,
		"message": message,
	})
}

// parseStatus accepts both record statuses and the list names of the summary.
func parseStatus(raw string) domain.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return ""
	case "new_orders", "pending":
		return domain.TransactionStatusNew
	case "approved_orders":
		return domain.TransactionStatusApproved
	case "cancelled_orders", "canceled":
		return domain.TransactionStatusCancelled
	default:
		return domain.TransactionStatus(strings.ToLower(strings.TrimSpace(raw)))
	}
}
