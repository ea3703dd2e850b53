package kpihandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kpi/internal/domain/audit"
	"kpi/internal/domain/auth"
	"kpi/internal/domain/kpi"
	"kpi/internal/domain/notifications"
	"kpi/internal/platform/letters"
	"kpi/internal/transport/http/api"
	"kpi/internal/transport/http/middleware"
	"kpi/internal/transport/http/shared"
)

const commitEndpoint = "kpi.uploads.commit"

type KPIService interface {
	GetConfig(ctx context.Context) (kpi.Configuration, error)
	Validate(ctx context.Context) ([]kpi.ConfigWarning, error)
	UpdateMetrics(ctx context.Context, defs []kpi.MetricDefinition, actor string) (kpi.Configuration, []kpi.ConfigWarning, error)
	UpdateTriggers(ctx context.Context, rules []kpi.TriggerRule, actor string) (kpi.Configuration, []kpi.ConfigWarning, error)
	UpdateRatings(ctx context.Context, scale kpi.RatingScale, actor string) (kpi.Configuration, []kpi.ConfigWarning, error)
	Preview(ctx context.Context, req kpi.BatchRequest) (kpi.BatchResult, error)
	Commit(ctx context.Context, req kpi.BatchRequest, actor string) (kpi.CommitResult, error)
	ListResults(ctx context.Context, filter kpi.ResultFilter) ([]kpi.StoredResult, int, error)
	GetResult(ctx context.Context, employeeIdentifier, period string) (kpi.StoredResult, error)
	ListAssignments(ctx context.Context, filter kpi.AssignmentFilter) ([]kpi.Assignment, int, error)
}

type TemplateService interface {
	Templates(ctx context.Context) ([]notifications.Template, error)
	UpdateTemplate(ctx context.Context, tmpl notifications.Template) (notifications.Template, error)
}

type IdempotencyStore interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type BatchRecorder interface {
	RecordPreview(rows, rejected int, duration time.Duration)
	RecordCommit(rows, rejected, assignments, notifications int, duration time.Duration)
}

type Handler struct {
	Service     KPIService
	Templates   TemplateService
	Perms       middleware.PermissionStore
	Audit       audit.Recorder
	Idempotency IdempotencyStore
	Metrics     BatchRecorder
	Company     string
	MaxRows     int
	Now         func() time.Time
}

func NewHandler(service KPIService, templates TemplateService, perms middleware.PermissionStore) *Handler {
	return &Handler{
		Service:   service,
		Templates: templates,
		Perms:     perms,
		Company:   "Human Resources",
		Now:       time.Now,
	}
}

// RegisterRoutes mounts the KPI admin routes on a router already scoped to
// /kpi.
func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermKPIRead, h.Perms)
	configure := middleware.RequirePermission(auth.PermKPIConfigure, h.Perms)

	r.With(read).Get("/metrics", h.handleListMetrics)
	r.With(configure).Put("/metrics", h.handleUpdateMetrics)
	r.With(read).Get("/triggers", h.handleListTriggers)
	r.With(configure).Put("/triggers", h.handleUpdateTriggers)
	r.With(read).Get("/ratings", h.handleListRatings)
	r.With(configure).Put("/ratings", h.handleUpdateRatings)
	r.With(read).Get("/config/validate", h.handleValidate)

	r.With(middleware.RequirePermission(auth.PermKPIUpload, h.Perms)).Post("/uploads/preview", h.handlePreview)
	r.With(middleware.RequirePermission(auth.PermKPICommit, h.Perms)).Post("/uploads/commit", h.handleCommit)

	r.With(read).Get("/results", h.handleListResults)
	r.With(read).Get("/results/{employeeID}/{period}/warning-letter", h.handleWarningLetter)
	r.With(read).Get("/assignments", h.handleListAssignments)

	r.With(read).Get("/email-templates", h.handleListTemplates)
	r.With(configure).Put("/email-templates/{key}", h.handleUpdateTemplate)
}

func (h *Handler) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.loadConfig(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Config-Version", cfg.Version)
	api.Success(w, cfg.Metrics, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.loadConfig(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Config-Version", cfg.Version)
	api.Success(w, cfg.Triggers, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRatings(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.loadConfig(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Config-Version", cfg.Version)
	api.Success(w, cfg.Ratings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) loadConfig(w http.ResponseWriter, r *http.Request) (kpi.Configuration, bool) {
	cfg, err := h.Service.GetConfig(r.Context())
	if err != nil {
		slog.Warn("kpi config load failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "config_load_failed", "failed to load KPI configuration", middleware.GetRequestID(r.Context()))
		return kpi.Configuration{}, false
	}
	return cfg, true
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.Service.Validate(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "config_load_failed", "failed to load KPI configuration", middleware.GetRequestID(r.Context()))
		return
	}
	api.SuccessWithMessage(w, map[string]any{
		"warnings": warnings,
		"blocking": len(kpi.Blocking(warnings)) > 0,
	}, warningMessage("Configuration is valid", warnings), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateMetrics(w http.ResponseWriter, r *http.Request) {
	var payload []kpi.MetricDefinition
	if !h.decodeConfig(w, r, &payload) {
		return
	}
	before, _ := h.Service.GetConfig(r.Context())
	cfg, warnings, err := h.Service.UpdateMetrics(r.Context(), payload, actorID(r))
	if err != nil {
		h.failConfig(w, r, err)
		return
	}
	h.record(r, audit.ActionMetricsUpdated, "kpi_metrics", cfg.Version, before.Metrics, cfg.Metrics)
	api.SuccessWithMessage(w, map[string]any{"metrics": cfg.Metrics, "version": cfg.Version, "warnings": warnings},
		warningMessage("Metric configuration saved", warnings), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateTriggers(w http.ResponseWriter, r *http.Request) {
	var payload []kpi.TriggerRule
	if !h.decodeConfig(w, r, &payload) {
		return
	}
	before, _ := h.Service.GetConfig(r.Context())
	cfg, warnings, err := h.Service.UpdateTriggers(r.Context(), payload, actorID(r))
	if err != nil {
		h.failConfig(w, r, err)
		return
	}
	h.record(r, audit.ActionTriggersUpdated, "kpi_triggers", cfg.Version, before.Triggers, cfg.Triggers)
	api.SuccessWithMessage(w, map[string]any{"triggers": cfg.Triggers, "version": cfg.Version, "warnings": warnings},
		warningMessage("Trigger configuration saved", warnings), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRatings(w http.ResponseWriter, r *http.Request) {
	var payload kpi.RatingScale
	if !h.decodeConfig(w, r, &payload) {
		return
	}
	before, _ := h.Service.GetConfig(r.Context())
	cfg, warnings, err := h.Service.UpdateRatings(r.Context(), payload, actorID(r))
	if err != nil {
		h.failConfig(w, r, err)
		return
	}
	h.record(r, audit.ActionRatingsUpdated, "kpi_ratings", cfg.Version, before.Ratings, cfg.Ratings)
	api.SuccessWithMessage(w, map[string]any{"ratings": cfg.Ratings, "version": cfg.Version, "warnings": warnings},
		warningMessage("Rating scale saved", warnings), middleware.GetRequestID(r.Context()))
}

func (h *Handler) decodeConfig(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := shared.DecodeJSON(r, dst); err != nil {
		h.failDecode(w, r, err)
		return false
	}
	return true
}

func (h *Handler) failDecode(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case shared.IsBodyTooLarge(err):
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
	case errors.Is(err, kpi.ErrUnknownOperator):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", err.Error(),
			map[string]any{"warnings": []kpi.ConfigWarning{{Code: kpi.ConfigWarningUnknownOperator, Message: err.Error()}}}, requestID)
	case errors.Is(err, kpi.ErrMalformedRule):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", err.Error(),
			map[string]any{"warnings": []kpi.ConfigWarning{{Code: kpi.ConfigWarningMalformedCondition, Message: err.Error()}}}, requestID)
	default:
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
	}
}

func (h *Handler) failConfig(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var verr *kpi.ValidationError
	if errors.As(err, &verr) {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", verr.Error(), map[string]any{"warnings": verr.Warnings}, requestID)
		return
	}
	slog.Warn("kpi config update failed", "err", err)
	api.Fail(w, http.StatusInternalServerError, "config_update_failed", "failed to save KPI configuration", requestID)
}

type uploadPayload struct {
	Period   string           `json:"period"`
	FileName string           `json:"fileName"`
	Rows     []map[string]any `json:"rows"`
}

func (h *Handler) decodeUpload(w http.ResponseWriter, r *http.Request, raw []byte) (kpi.BatchRequest, bool) {
	requestID := middleware.GetRequestID(r.Context())
	var payload uploadPayload
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return kpi.BatchRequest{}, false
	}

	v := shared.NewValidator()
	if strings.TrimSpace(payload.Period) != "" {
		if _, err := kpi.ParsePeriod(payload.Period); err != nil {
			v.Add("period", "must be a recognizable month such as 2024-03")
		}
	}
	if h.MaxRows > 0 && len(payload.Rows) > h.MaxRows {
		v.Add("rows", fmt.Sprintf("must contain at most %d rows", h.MaxRows))
	}
	if v.Reject(w, requestID) {
		return kpi.BatchRequest{}, false
	}

	req := kpi.BatchRequest{Period: strings.TrimSpace(payload.Period), FileName: payload.FileName, Rows: make([]kpi.RawRow, len(payload.Rows))}
	for i, row := range payload.Rows {
		values := make(map[string]string, len(row))
		for column, value := range row {
			values[column] = cellText(value)
		}
		req.Rows[i] = kpi.RawRow{Index: i + 1, Values: values}
	}
	return req, true
}

// cellText flattens a spreadsheet cell as sent by the dashboard.
func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.failDecode(w, r, err)
		return nil, false
	}
	return raw, true
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeUpload(w, r, raw)
	if !ok {
		return
	}
	start := time.Now()
	result, err := h.Service.Preview(r.Context(), req)
	if err != nil {
		h.failBatch(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordPreview(result.Total, result.Rejected, time.Since(start))
	}
	api.SuccessWithMessage(w, result, batchMessage("Preview", result), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	raw, ok := h.readBody(w, r)
	if !ok {
		return
	}
	actor := actorID(r)
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(raw)
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), actor, commitEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used for a different upload", requestID)
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.SuccessWithMessage(w, stored, "Upload already committed", requestID)
			return
		}
	}

	req, ok := h.decodeUpload(w, r, raw)
	if !ok {
		return
	}
	start := time.Now()
	result, err := h.Service.Commit(r.Context(), req, actor)
	if err != nil {
		h.failBatch(w, r, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordCommit(result.Total, result.Rejected, result.AssignmentsCreated, result.NotificationsQueued, time.Since(start))
	}
	h.record(r, audit.ActionBatchCommitted, "kpi_batch", result.BatchID, nil, map[string]any{
		"batchKey":            result.BatchKey,
		"period":              result.Period,
		"total":               result.Total,
		"matched":             result.Matched,
		"assignmentsCreated":  result.AssignmentsCreated,
		"notificationsQueued": result.NotificationsQueued,
	})

	if idempotencyKey != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			slog.Warn("idempotency response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), actor, commitEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}

	message := fmt.Sprintf("Committed %d results: %d assignments created, %d already applied, %d notifications queued",
		len(result.Results), result.AssignmentsCreated, len(result.AlreadyApplied), result.NotificationsQueued)
	api.SuccessWithMessage(w, result, message, requestID)
}

func (h *Handler) failBatch(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, kpi.ErrBatchEmpty):
		api.Fail(w, http.StatusBadRequest, "batch_empty", "upload contains no rows", requestID)
	case errors.Is(err, kpi.ErrInvalidPeriod):
		api.Fail(w, http.StatusBadRequest, "invalid_period", err.Error(), requestID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusRequestTimeout, "batch_cancelled", "batch evaluation was cancelled", requestID)
	case errors.Is(err, kpi.ErrResolverFailed):
		slog.Warn("kpi identity resolution failed", "err", err)
		api.Fail(w, http.StatusBadGateway, "resolver_failed", "identity resolution failed", requestID)
	default:
		slog.Warn("kpi batch failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "batch_failed", "failed to process upload", requestID)
	}
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 100, 500)
	filter := kpi.ResultFilter{
		Period: strings.TrimSpace(r.URL.Query().Get("period")),
		Rating: strings.TrimSpace(r.URL.Query().Get("rating")),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	items, total, err := h.Service.ListResults(r.Context(), filter)
	if err != nil {
		slog.Warn("kpi results list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "results_list_failed", "failed to list results", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	query := r.URL.Query()
	v := shared.NewValidator()
	v.Enum("kind", query.Get("kind"), []string{kpi.AssignmentKindTraining, kpi.AssignmentKindAudit, kpi.AssignmentKindWarningLetter}, "must be training, audit or warning_letter")
	if v.Reject(w, requestID) {
		return
	}
	filter := kpi.AssignmentFilter{
		Period:             strings.TrimSpace(query.Get("period")),
		Kind:               strings.ToLower(strings.TrimSpace(query.Get("kind"))),
		EmployeeIdentifier: strings.TrimSpace(query.Get("employee")),
		Limit:              page.Limit,
		Offset:             page.Offset,
	}
	items, total, err := h.Service.ListAssignments(r.Context(), filter)
	if err != nil {
		slog.Warn("kpi assignments list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "assignments_list_failed", "failed to list assignments", requestID)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, requestID)
}

func (h *Handler) handleWarningLetter(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	v := shared.NewValidator()
	period, _ := v.Period("period", chi.URLParam(r, "period"))
	if v.Reject(w, requestID) {
		return
	}

	stored, err := h.Service.GetResult(r.Context(), employeeID, period)
	if errors.Is(err, kpi.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", requestID)
		return
	}
	if err != nil {
		slog.Warn("kpi result load failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "result_load_failed", "failed to load result", requestID)
		return
	}

	var buf bytes.Buffer
	err = letters.WriteWarningLetter(&buf, h.Company, stored.Result, h.Now())
	if errors.Is(err, kpi.ErrNoWarningLetter) {
		api.Fail(w, http.StatusConflict, "no_warning_letter", "result did not trigger a warning letter", requestID)
		return
	}
	if err != nil {
		slog.Warn("warning letter render failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "letter_failed", "failed to render warning letter", requestID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=warning-letter-%s-%s.pdf", safeFileName(employeeID), period))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("warning letter write failed", "err", err)
	}
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.Templates.Templates(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "templates_list_failed", "failed to list email templates", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := shared.DecodeJSON(r, &payload); err != nil {
		h.failDecode(w, r, err)
		return
	}
	v := shared.NewValidator()
	v.Required("subject", payload.Subject, "is required")
	v.Required("body", payload.Body, "is required")
	if v.Reject(w, requestID) {
		return
	}

	tmpl, err := h.Templates.UpdateTemplate(r.Context(), notifications.Template{
		Key:     chi.URLParam(r, "key"),
		Subject: payload.Subject,
		Body:    payload.Body,
	})
	if errors.Is(err, notifications.ErrTemplateInvalid) {
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
		return
	}
	if err != nil {
		slog.Warn("email template update failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "template_update_failed", "failed to update email template", requestID)
		return
	}
	h.record(r, audit.ActionTemplateUpdated, "email_template", tmpl.Key, nil, tmpl)
	api.SuccessWithMessage(w, tmpl, "Email template saved", requestID)
}

func (h *Handler) record(r *http.Request, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actorID(r), action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func actorID(r *http.Request) string {
	if user, ok := middleware.GetUser(r.Context()); ok {
		return user.UserID
	}
	return ""
}

func warningMessage(base string, warnings []kpi.ConfigWarning) string {
	if len(warnings) == 0 {
		return base
	}
	if len(warnings) == 1 {
		return base + " with 1 warning"
	}
	return fmt.Sprintf("%s with %d warnings", base, len(warnings))
}

func batchMessage(kind string, result kpi.BatchResult) string {
	return fmt.Sprintf("%s evaluated %d rows: %d matched, %d unmatched, %d rejected",
		kind, result.Total, result.Matched, result.Unmatched, result.Rejected)
}

func safeFileName(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, value)
}
