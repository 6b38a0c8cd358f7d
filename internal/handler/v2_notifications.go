package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newswatch/internal/repository"
)

type V2NotificationHandler struct {
	Repo repository.Repository
}

func (h *V2NotificationHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/notifications")
	group.GET("", h.listNotifications)
	group.GET("/:uuid", h.getNotification)
}

// @Summary List issued notifications
// @Tags notifications
// @Param signal_uuid query string false "filter by signal"
// @Param settled query bool false "filter on settled dispatch"
// @Success 200 {object} apiResponse
// @Router /api/v2/notifications [get]
func (h *V2NotificationHandler) listNotifications(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	since, ok := timeQueryPtr(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	until, ok := timeQueryPtr(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"issued_at":  "issued_at",
		"created_at": "created_at",
	})
	if orderBy == "" {
		orderBy = "issued_at"
	}
	params := repository.ListNotificationsParams{
		Limit:      limit,
		Offset:     offset,
		SignalUUID: strQueryPtr(c, "signal_uuid"),
		Since:      since,
		Until:      until,
		Settled:    boolQueryPtr(c, "settled"),
		OrderBy:    orderBy,
		Asc:        ascQuery(c),
	}
	items, err := h.Repo.ListNotifications(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountNotifications(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *V2NotificationHandler) getNotification(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	item, err := h.Repo.GetNotificationByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "notification not found", nil)
		return
	}
	Ok(c, item, nil)
}
