package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"newswatch/internal/dispatch"
	"newswatch/internal/models"
	"newswatch/internal/repository"
	"newswatch/internal/service"
)

type V2ContactPointHandler struct {
	Repo repository.Repository
}

func (h *V2ContactPointHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/contact-points")
	group.POST("", h.createContactPoint)
	group.GET("", h.listContactPoints)
	group.GET("/:uuid", h.getContactPoint)
	group.PUT("/:uuid", h.updateContactPoint)
	group.DELETE("/:uuid", h.deleteContactPoint)
}

type contactPointCreateRequest struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Settings map[string]string `json:"settings"`
	Enabled  *bool             `json:"enabled"`
}

func (h *V2ContactPointHandler) createContactPoint(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req contactPointCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(c, http.StatusBadRequest, "name required", nil)
		return
	}
	pointType := strings.ToLower(strings.TrimSpace(req.Type))
	if req.Settings == nil {
		req.Settings = map[string]string{}
	}
	if err := dispatch.ValidateSettings(pointType, req.Settings); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	raw, err := json.Marshal(service.ProtectSettings(req.Settings))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid settings", nil)
		return
	}
	item := &models.ContactPoint{
		UUID:     uuid.NewString(),
		Name:     name,
		Type:     pointType,
		Settings: raw,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := h.Repo.InsertContactPoint(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, maskedContactPoint(*item), nil)
}

func (h *V2ContactPointHandler) listContactPoints(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"name":       "name",
		"type":       "type",
		"created_at": "created_at",
		"updated_at": "updated_at",
	})
	if orderBy == "" {
		orderBy = "created_at"
	}
	params := repository.ListContactPointsParams{
		Limit:   limit,
		Offset:  offset,
		Type:    strQueryPtr(c, "type"),
		Enabled: boolQueryPtr(c, "enabled"),
		OrderBy: orderBy,
		Asc:     ascQuery(c),
	}
	items, err := h.Repo.ListContactPoints(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountContactPoints(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	masked := make([]models.ContactPoint, 0, len(items))
	for _, item := range items {
		masked = append(masked, maskedContactPoint(item))
	}
	Ok(c, masked, paginationMeta(limit, offset, total))
}

func (h *V2ContactPointHandler) getContactPoint(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	item, err := h.Repo.GetContactPointByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "contact point not found", nil)
		return
	}
	Ok(c, maskedContactPoint(*item), nil)
}

type contactPointUpdateRequest struct {
	Name     *string           `json:"name"`
	Type     *string           `json:"type"`
	Settings map[string]string `json:"settings"`
	Enabled  *bool             `json:"enabled"`
}

func (h *V2ContactPointHandler) updateContactPoint(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	var req contactPointUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Repo.GetContactPointByUUID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "contact point not found", nil)
		return
	}
	if req.Type != nil && strings.ToLower(strings.TrimSpace(*req.Type)) != item.Type {
		Error(c, http.StatusBadRequest, "contact point type is immutable", nil)
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			Error(c, http.StatusBadRequest, "name required", nil)
			return
		}
		item.Name = name
	}
	if req.Settings != nil {
		merged, err := h.mergeSettings(item, req.Settings)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid settings", nil)
			return
		}
		item.Settings = raw
	}
	if req.Enabled != nil {
		item.Enabled = *req.Enabled
	}
	if err := h.Repo.UpdateContactPoint(c.Request.Context(), item); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, maskedContactPoint(*item), nil)
}

func (h *V2ContactPointHandler) deleteContactPoint(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uuidParam(c, "uuid")
	if id == "" {
		Error(c, http.StatusBadRequest, "uuid required", nil)
		return
	}
	n, err := h.Repo.DeleteContactPoint(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if n == 0 {
		Error(c, http.StatusNotFound, "contact point not found", nil)
		return
	}
	Ok(c, map[string]any{"deleted": n}, nil)
}

// mergeSettings builds the new stored settings from an update. A masked
// placeholder keeps the stored (still encrypted) value; everything else is
// validated in the clear and re-protected.
func (h *V2ContactPointHandler) mergeSettings(item *models.ContactPoint, incoming map[string]string) (map[string]string, error) {
	stored := map[string]string{}
	if len(item.Settings) > 0 {
		if err := json.Unmarshal(item.Settings, &stored); err != nil {
			return nil, errors.New("stored settings unreadable")
		}
	}
	merged := make(map[string]string, len(incoming))
	plain := make(map[string]string, len(incoming))
	for k, v := range incoming {
		if v == service.MaskedSettingValue {
			kept, ok := stored[k]
			if !ok {
				return nil, errors.New("masked value for unknown key " + k)
			}
			merged[k] = kept
			revealed, err := service.RevealSettingValue(kept)
			if err != nil {
				return nil, errors.New("stored value for " + k + " is unreadable, provide a new one")
			}
			plain[k] = revealed
			continue
		}
		merged[k] = v
		plain[k] = v
	}
	if err := dispatch.ValidateSettings(item.Type, plain); err != nil {
		return nil, err
	}
	return service.ProtectSettings(merged), nil
}

func maskedContactPoint(item models.ContactPoint) models.ContactPoint {
	var settings map[string]string
	if len(item.Settings) > 0 {
		if err := json.Unmarshal(item.Settings, &settings); err != nil {
			item.Settings = datatypes.JSON(`{}`)
			return item
		}
	}
	raw, err := json.Marshal(service.MaskSettings(settings))
	if err != nil {
		item.Settings = datatypes.JSON(`{}`)
		return item
	}
	item.Settings = raw
	return item
}
