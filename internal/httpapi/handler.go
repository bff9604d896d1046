// Package httpapi exposes the polymorphic relation endpoints and a read-only
// content API over chi.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/rpattn/polyrel/internal/domain"
	"github.com/rpattn/polyrel/internal/polymorphic"
	"github.com/rpattn/polyrel/internal/repository"
)

const pluginPrefix = "/api/polymorphic-relation"

type Handler struct {
	service  *polymorphic.Service
	registry repository.ContentTypeRegistry
	logger   *log.Logger
}

func NewHandler(service *polymorphic.Service, registry repository.ContentTypeRegistry, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{service: service, registry: registry, logger: logger.WithPrefix("http")}
}

// Router mounts every endpoint behind the given middlewares.
func (h *Handler) Router(middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route(pluginPrefix, func(api chi.Router) {
		api.Get("/content-types", h.handleContentTypes)
		api.Get("/content-types/{contentType}/entities", h.handleEntities)
		api.Get("/content-types/{contentType}/entities/{id}", h.handleEntity)
		api.Get("/reverse-relations", h.handleReverseRelations)
		api.Post("/validate", h.handleValidate)
	})

	r.Get("/api/{pluralName}", h.handleCollection)
	r.Get("/api/{pluralName}/{documentId}", h.handleDocument)
	return r
}

func (h *Handler) handleContentTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.service.ContentTypes()})
}

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "contentType")
	query := r.URL.Query()
	page := parsePagination(query)

	entities, err := h.service.SearchEntities(r.Context(), contentType, strings.TrimSpace(query.Get("search")), page)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": entities,
		"meta": map[string]any{"pagination": page},
	})
}

func (h *Handler) handleEntity(w http.ResponseWriter, r *http.Request) {
	contentType := chi.URLParam(r, "contentType")
	id := chi.URLParam(r, "id")

	entity, err := h.service.FindOne(r.Context(), contentType, id, parsePopulate(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch entity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity})
}

func (h *Handler) handleReverseRelations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := domain.ReverseQuery{
		TargetModel:  strings.TrimSpace(query.Get("targetModel")),
		TargetField:  strings.TrimSpace(query.Get("targetField")),
		LookupType:   strings.TrimSpace(query.Get("lookupType")),
		LookupID:     strings.TrimSpace(query.Get("lookupId")),
		DisplayField: strings.TrimSpace(query.Get("displayField")),
	}
	if q.TargetModel == "" || q.TargetField == "" || q.LookupType == "" || q.LookupID == "" {
		writeError(w, http.StatusBadRequest, "Missing required query parameters: targetModel, targetField, lookupType, lookupId")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": h.service.FindReverse(r.Context(), q)})
}

type validatePayload struct {
	Value        any            `json:"value"`
	AllowedTypes []string       `json:"allowedTypes"`
	ContentType  string         `json:"contentType"`
	Data         map[string]any `json:"data"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload validatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	if payload.ContentType != "" {
		result, err := h.service.ValidateDocument(r.Context(), payload.ContentType, payload.Data)
		if err != nil {
			h.writeServiceError(w, err, "Failed to validate document")
			return
		}
		status := http.StatusOK
		if !result.IsValid {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]any{"data": result})
		return
	}

	if err := h.service.ValidatePointer(r.Context(), payload.Value, payload.AllowedTypes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"valid": true}})
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.registry.FindByPluralName(chi.URLParam(r, "pluralName"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	query := r.URL.Query()
	q := domain.Query{
		Filters:    parseFilters(query, ct),
		Populate:   parsePopulate(query),
		Pagination: parsePagination(query),
		Status:     strings.TrimSpace(query.Get("status")),
	}
	entities, err := h.service.FindMany(r.Context(), ct.UID, q)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": entities,
		"meta": map[string]any{"pagination": q.Pagination},
	})
}

func (h *Handler) handleDocument(w http.ResponseWriter, r *http.Request) {
	ct, ok := h.registry.FindByPluralName(chi.URLParam(r, "pluralName"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	entity, err := h.service.FindOne(r.Context(), ct.UID, chi.URLParam(r, "documentId"), parsePopulate(r.URL.Query()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entity, "meta": map[string]any{}})
}

// writeServiceError maps sentinel errors to 404 and everything else to 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrUnknownContentType), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(message, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", message, err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"data": nil,
		"error": map[string]any{
			"status":  status,
			"name":    http.StatusText(status),
			"message": message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
