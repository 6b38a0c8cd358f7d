package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newswatch/internal/repository"
	"newswatch/internal/service"
)

type V2StatsHandler struct {
	Stats *service.TriggerStatsService
}

func (h *V2StatsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/stats")
	group.GET("/overview", h.overview)
	group.GET("/daily", h.daily)
}

// overview totals trigger and delivery counters over a trailing window,
// across all signals or one picked with ?signal_uuid=.
func (h *V2StatsHandler) overview(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "stats unavailable", nil)
		return
	}
	signalUUID := ""
	if v := strQueryPtr(c, "signal_uuid"); v != nil {
		signalUUID = *v
	}
	days := intQuery(c, "days", 7)
	summary, err := h.Stats.Summarize(c.Request.Context(), signalUUID, days)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *V2StatsHandler) daily(c *gin.Context) {
	if h.Stats == nil {
		Error(c, http.StatusInternalServerError, "stats unavailable", nil)
		return
	}
	params := repository.ListTriggerStatsParams{
		Limit:      intQuery(c, "limit", 90),
		Offset:     intQuery(c, "offset", 0),
		SignalUUID: strQueryPtr(c, "signal_uuid"),
	}
	since, ok := timeQueryPtr(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	params.Since = since
	until, ok := timeQueryPtr(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	params.Until = until
	rows, err := h.Stats.List(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}
