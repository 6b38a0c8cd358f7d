package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"newswatch/internal/content"
	"newswatch/internal/metrics"
	"newswatch/internal/models"
	"newswatch/internal/repository"
)

// maxIngestBatch bounds one ingest request. The upstream pipeline chunks
// larger exports.
const maxIngestBatch = 1000

type V2ArticleHandler struct {
	Repo repository.Repository
	Hub  *content.Hub
}

func (h *V2ArticleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/articles")
	group.POST("", h.ingestArticles)
	group.GET("", h.listArticles)
}

type articleIngestItem struct {
	ExternalID     string    `json:"external_id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Source         string    `json:"source"`
	Country        string    `json:"country"`
	Language       string    `json:"language"`
	Category       string    `json:"category"`
	CompanyIDs     []string  `json:"company_ids"`
	Topics         []string  `json:"topics"`
	RelevanceScore *float64  `json:"relevance_score"`
	PublishedAt    time.Time `json:"published_at"`
}

type articleIngestRequest struct {
	Articles []articleIngestItem `json:"articles"`
}

// @Summary Ingest a batch of articles
// @Tags articles
// @Accept json
// @Success 200 {object} apiResponse
// @Router /api/v2/articles [post]
func (h *V2ArticleHandler) ingestArticles(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req articleIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if len(req.Articles) == 0 {
		Error(c, http.StatusBadRequest, "articles required", nil)
		return
	}
	if len(req.Articles) > maxIngestBatch {
		Error(c, http.StatusBadRequest, "batch too large", map[string]any{"max": maxIngestBatch})
		return
	}
	items := make([]models.Article, 0, len(req.Articles))
	for i, in := range req.Articles {
		item, err := articleFromIngest(in)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), map[string]any{"index": i})
			return
		}
		items = append(items, item)
	}
	n, err := h.Repo.UpsertArticles(c.Request.Context(), items)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	metrics.ArticlesIngested.Add(float64(len(items)))
	if h.Hub != nil {
		h.Hub.Publish(content.Event{
			Type:         content.EventArticlesChanged,
			ArticleCount: len(items),
		})
	}
	Ok(c, map[string]any{"accepted": len(items), "upserted": n}, nil)
}

func (h *V2ArticleHandler) listArticles(c *gin.Context) {
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
		"published_at": "published_at",
		"created_at":   "created_at",
	})
	if orderBy == "" {
		orderBy = "published_at"
	}
	params := repository.ListArticlesParams{
		Limit:    limit,
		Offset:   offset,
		Source:   strQueryPtr(c, "source"),
		Country:  strQueryPtr(c, "country"),
		Category: strQueryPtr(c, "category"),
		Since:    since,
		Until:    until,
		OrderBy:  orderBy,
		Asc:      ascQuery(c),
	}
	items, err := h.Repo.ListArticles(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountArticles(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func articleFromIngest(in articleIngestItem) (models.Article, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return models.Article{}, errors.New("external_id required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Article{}, errors.New("title required")
	}
	if in.PublishedAt.IsZero() {
		return models.Article{}, errors.New("published_at required")
	}
	companies, err := json.Marshal(emptyIfNil(in.CompanyIDs))
	if err != nil {
		return models.Article{}, err
	}
	topics, err := json.Marshal(emptyIfNil(in.Topics))
	if err != nil {
		return models.Article{}, err
	}
	return models.Article{
		ExternalID:     externalID,
		Title:          title,
		URL:            strings.TrimSpace(in.URL),
		Source:         strings.ToLower(strings.TrimSpace(in.Source)),
		Country:        strings.ToLower(strings.TrimSpace(in.Country)),
		Language:       strings.ToLower(strings.TrimSpace(in.Language)),
		Category:       strings.ToLower(strings.TrimSpace(in.Category)),
		CompanyIDs:     companies,
		Topics:         topics,
		RelevanceScore: in.RelevanceScore,
		PublishedAt:    in.PublishedAt.UTC(),
	}, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
