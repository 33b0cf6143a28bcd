package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tg-medinsights/internal/domain"
)

// TrackedKeywords is the product vocabulary the top-products report counts.
var TrackedKeywords = []string{
	"paracetamol", "amoxicillin", "ibuprofen", "antibiotics", "malaria",
	"fever", "cough", "cold", "pain", "vaccine", "covid", "cholera",
	"diabetes", "hypertension", "hiv", "tuberculosis", "mask", "sanitizer",
}

const topProductsCacheKey = "reports:top-products"

// Handlers exposes the read-only analytical endpoints.
type Handlers struct {
	repo     domain.InsightsRepo
	cache    domain.Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewHandlers creates the handler set. cache may be nil.
func NewHandlers(repo domain.InsightsRepo, cache domain.Cache, log zerolog.Logger) *Handlers {
	return &Handlers{repo: repo, cache: cache, cacheTTL: 5 * time.Minute, log: log}
}

// Register mounts the routes.
func (h *Handlers) Register(r chi.Router) {
	r.Get("/api/reports/top-products", h.topProducts)
	r.Get("/api/channels/{channel}/activity", h.channelActivity)
	r.Get("/api/search/messages", h.searchMessages)
	r.Get("/api/detections/{messageID}", h.detections)
}

func (h *Handlers) topProducts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10, 1, 100)

	cacheKey := topProductsCacheKey + ":" + strconv.Itoa(limit)
	if h.cache != nil {
		if cached, err := h.cache.Get(cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(cached)
			return
		}
	}

	results, err := h.repo.TopKeywords(r.Context(), TrackedKeywords, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("api: top products query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if results == nil {
		results = []domain.KeywordCount{}
	}

	payload, err := json.Marshal(results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(cacheKey, payload, h.cacheTTL); err != nil {
			h.log.Warn().Err(err).Msg("api: report cache write failed")
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (h *Handlers) channelActivity(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	activity, err := h.repo.ChannelActivity(r.Context(), channel)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Msg("api: channel activity query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(activity) == 0 {
		writeError(w, http.StatusNotFound, "channel '"+channel+"' not found")
		return
	}
	writeJSON(w, activity)
}

func (h *Handlers) searchMessages(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if len(query) < 2 {
		writeError(w, http.StatusBadRequest, "query must be at least 2 characters")
		return
	}
	limit := queryInt(r, "limit", 100, 1, 500)

	hits, err := h.repo.SearchMessages(r.Context(), query, limit)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("api: message search failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if hits == nil {
		hits = []domain.MessageHit{}
	}
	writeJSON(w, map[string]any{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})
}

func (h *Handlers) detections(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	records, err := h.repo.DetectionsForMessage(r.Context(), messageID)
	if err != nil {
		h.log.Error().Err(err).Str("message_id", messageID).Msg("api: detections query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no image detections found for message ID '"+messageID+"'")
		return
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]any{
			"message_id":            rec.MessageID,
			"source_message_id":     rec.SourceMessageID,
			"detected_object_class": rec.DetectedClass,
			"confidence_score":      rec.Confidence,
			"detection_timestamp":   rec.DetectedAt,
		})
	}
	writeJSON(w, out)
}

func queryInt(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return def
	}
	return value
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
