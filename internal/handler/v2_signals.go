package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"newswatch/internal/models"
	"newswatch/internal/query"
	"newswatch/internal/repository"
	"newswatch/internal/schedule"
	"newswatch/internal/service"
)

type V2SignalHandler struct {
	Repo  repository.Repository
	Stats *service.TriggerStatsService
}

func (h *V2SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/signals")
	group.POST("", h.createSignal)
	group.GET("", h.listSignals)
	group.GET("/:uuid", h.getSignal)
	group.PUT("/:uuid", h.updateSignal)
	group.POST("/:uuid/status", h.transitionStatus)
	group.GET("/:uuid/stats", h.signalStats)
}

type signalCreateRequest struct {
	Name               string          `json:"name"`
	SignalType         string          `json:"signal_type"`
	NotificationPolicy string          `json:"notification_policy"`
	SelectionPolicy    string          `json:"selection_policy"`
	Query              json.RawMessage `json:"query"`
	Schedule           json.RawMessage `json:"schedule"`
	ContactPointUUIDs  []string        `json:"contact_point_uuids"`
}

// @Summary Create a signal
// @Tags signals
// @Accept json
// @Success 200 {object} apiResponse
// @Router /api/v2/signals [post]
func (h *V2SignalHandler) createSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req signalCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item := &models.Signal{
		UUID:               uuid.NewString(),
		Name:               strings.TrimSpace(req.Name),
		Status:             models.SignalStatusDraft,
		SignalType:         strings.TrimSpace(req.SignalType),
		NotificationPolicy: defaultString(req.NotificationPolicy, models.NotificationPolicyScheduled),
		SelectionPolicy:    defaultString(req.SelectionPolicy, models.SelectionPolicyLatest),
		Query:              datatypes.JSON(req.Query),
		Schedule:           datatypes.JSON(req.Schedule),
	}
	if msg := h.applyContactPoints(c, item, req.ContactPointUUIDs); msg != "" {
		return
	}
	if err := validateSignal(item); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Repo.InsertSignal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *V2SignalHandler) listSignals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"name":              "name",
		"status":            "status",
		"created_at":        "created_at",
		"updated_at":        "updated_at",
		"last_triggered_at": "last_triggered_at",
	})
	if orderBy == "" {
		orderBy = "created_at"
	}
	params := repository.ListSignalsParams{
		Limit:              limit,
		Offset:             offset,
		Status:             strQueryPtr(c, "status"),
		SignalType:         strQueryPtr(c, "signal_type"),
		NotificationPolicy: strQueryPtr(c, "notification_policy"),
		Search:             strQueryPtr(c, "search"),
		OrderBy:            orderBy,
		Asc:                ascQuery(c),
	}
	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *V2SignalHandler) getSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	item, err := h.Repo.GetSignalByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	Ok(c, item, nil)
}

type signalUpdateRequest struct {
	Name               *string         `json:"name"`
	SignalType         *string         `json:"signal_type"`
	NotificationPolicy *string         `json:"notification_policy"`
	SelectionPolicy    *string         `json:"selection_policy"`
	Query              json.RawMessage `json:"query"`
	Schedule           json.RawMessage `json:"schedule"`
	ContactPointUUIDs  *[]string       `json:"contact_point_uuids"`
}

func (h *V2SignalHandler) updateSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	var req signalUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Repo.GetSignalByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	if item.Status == models.SignalStatusArchived {
		Error(c, http.StatusConflict, "archived signal is read-only", nil)
		return
	}
	if req.SignalType != nil && strings.TrimSpace(*req.SignalType) != item.SignalType {
		Error(c, http.StatusBadRequest, "signal type is immutable", nil)
		return
	}
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.NotificationPolicy != nil {
		item.NotificationPolicy = strings.TrimSpace(*req.NotificationPolicy)
	}
	if req.SelectionPolicy != nil {
		item.SelectionPolicy = strings.TrimSpace(*req.SelectionPolicy)
	}
	if len(req.Query) > 0 {
		item.Query = datatypes.JSON(req.Query)
	}
	if len(req.Schedule) > 0 {
		item.Schedule = datatypes.JSON(req.Schedule)
	}
	if req.ContactPointUUIDs != nil {
		if msg := h.applyContactPoints(c, item, *req.ContactPointUUIDs); msg != "" {
			return
		}
	}
	if err := validateSignal(item); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.Repo.UpdateSignal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

type statusTransitionRequest struct {
	Status string `json:"status"`
}

// Allowed lifecycle edges. Archival is reachable only through stopped so any
// in-flight dispatch settles first.
var allowedTransitions = map[string][]string{
	models.SignalStatusDraft:   {models.SignalStatusActive},
	models.SignalStatusActive:  {models.SignalStatusStopped},
	models.SignalStatusStopped: {models.SignalStatusActive, models.SignalStatusArchived},
}

func (h *V2SignalHandler) transitionStatus(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	var req statusTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	next := strings.ToLower(strings.TrimSpace(req.Status))
	item, err := h.Repo.GetSignalByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	if !transitionAllowed(item.Status, next) {
		Error(c, http.StatusConflict, "status transition not allowed", map[string]any{
			"from": item.Status,
			"to":   next,
		})
		return
	}
	item.Status = next
	if err := h.Repo.UpdateSignal(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

func (h *V2SignalHandler) signalStats(c *gin.Context) {
	if h.Repo == nil || h.Stats == nil {
		Error(c, http.StatusInternalServerError, "stats unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	item, err := h.Repo.GetSignalByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	days := intQuery(c, "days", 7)
	summary, err := h.Stats.Summarize(c.Request.Context(), item.UUID, days)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	daily, err := h.Stats.List(c.Request.Context(), repository.ListTriggerStatsParams{
		Limit:      days,
		SignalUUID: &item.UUID,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"summary": summary, "daily": daily}, nil)
}

// applyContactPoints resolves, dedupes, and stores the configured contact
// point references. It writes the HTTP error itself and returns its message
// when the references do not resolve.
func (h *V2SignalHandler) applyContactPoints(c *gin.Context, item *models.Signal, uuids []string) string {
	cleaned := make([]string, 0, len(uuids))
	seen := map[string]struct{}{}
	for _, id := range uuids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) > 0 {
		points, err := h.Repo.ListContactPointsByUUIDs(c.Request.Context(), cleaned)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return err.Error()
		}
		if len(points) != len(cleaned) {
			found := map[string]struct{}{}
			for _, p := range points {
				found[p.UUID] = struct{}{}
			}
			for _, id := range cleaned {
				if _, ok := found[id]; !ok {
					Error(c, http.StatusBadRequest, "unknown contact point "+id, nil)
					return "unknown contact point"
				}
			}
		}
	}
	raw, _ := json.Marshal(cleaned)
	item.ContactPointIDs = datatypes.JSON(raw)
	return ""
}

func validateSignal(item *models.Signal) error {
	if item.Name == "" {
		return errors.New("name required")
	}
	switch item.SignalType {
	case models.SignalTypeArticles, models.SignalTypeVolume:
	default:
		return errors.New("unknown signal type " + item.SignalType)
	}
	switch item.NotificationPolicy {
	case models.NotificationPolicyScheduled, models.NotificationPolicyImmediate:
	default:
		return errors.New("unknown notification policy " + item.NotificationPolicy)
	}
	switch item.SelectionPolicy {
	case models.SelectionPolicyLatest, models.SelectionPolicyMostRelevant, models.SelectionPolicyAISummary:
	default:
		return errors.New("unknown selection policy " + item.SelectionPolicy)
	}
	q, err := query.Parse(item.Query)
	if err != nil {
		return err
	}
	if err := query.Validate(q, item.SignalType); err != nil {
		return err
	}
	pol, err := schedule.Parse(item.Schedule)
	if err != nil {
		return err
	}
	return schedule.Validate(pol, item.NotificationPolicy)
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func defaultString(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
