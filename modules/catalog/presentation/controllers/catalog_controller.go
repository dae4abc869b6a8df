package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
	"github.com/agrovault/trialbase/modules/catalog/services"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/composables"
	"github.com/agrovault/trialbase/pkg/httpapi"
)

type searchParams struct {
	Query     string `form:"q"`
	SpeciesID int64  `form:"species_id"`
}

type CatalogController struct {
	app        application.Application
	resolver   *services.ResolverService
	sites      *services.SiteService
	species    *services.SpeciesService
	citations  *services.CitationService
	cultivars  *services.CultivarService
	treatments *services.TreatmentService
	basePath   string
}

func NewCatalogController(app application.Application) application.Controller {
	return &CatalogController{
		app:        app,
		resolver:   app.Service(services.ResolverService{}).(*services.ResolverService),
		sites:      app.Service(services.SiteService{}).(*services.SiteService),
		species:    app.Service(services.SpeciesService{}).(*services.SpeciesService),
		citations:  app.Service(services.CitationService{}).(*services.CitationService),
		cultivars:  app.Service(services.CultivarService{}).(*services.CultivarService),
		treatments: app.Service(services.TreatmentService{}).(*services.TreatmentService),
		basePath:   "/catalog",
	}
}

func (c *CatalogController) Key() string {
	return c.basePath
}

func (c *CatalogController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/{kind}", c.Search).Methods(http.MethodGet)
	router.HandleFunc("/{kind}", c.Create).Methods(http.MethodPost)
}

// Search resolves ?q= against one catalog and returns ranked candidates.
// The confirm screen uses it to offer alternatives for ambiguous cells.
// Cultivar searches accept an optional species_id to narrow the scope.
func (c *CatalogController) Search(w http.ResponseWriter, r *http.Request) {
	kind := resolve.Kind(mux.Vars(r)["kind"])
	if !kind.IsValid() {
		httpapi.WriteError(w, http.StatusNotFound, "CATALOG_UNKNOWN_KIND", "unknown catalog kind", nil)
		return
	}

	params, err := composables.UseQuery(&searchParams{}, r)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_QUERY", "invalid query parameters", nil)
		return
	}
	q := strings.TrimSpace(params.Query)
	if kind == resolve.KindCultivar && params.SpeciesID != 0 {
		if params.SpeciesID < 0 {
			httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_SPECIES", "species_id must be a positive integer", nil)
			return
		}
		c.searchCultivarsScoped(w, r, params.SpeciesID, q)
		return
	}

	resolution, err := c.resolver.Resolve(r.Context(), kind, q)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "CATALOG_INTERNAL", "internal error", nil)
		return
	}

	candidates := make([]map[string]any, 0, len(resolution.Candidates))
	for _, cand := range resolution.Candidates {
		candidates = append(candidates, map[string]any{
			"id":    cand.ID,
			"label": cand.Label,
			"score": cand.Score,
		})
	}
	body := map[string]any{
		"kind":       string(kind),
		"query":      q,
		"status":     string(resolution.Status),
		"candidates": candidates,
	}
	if resolution.Match != nil {
		body["id"] = resolution.Match.ID
	}
	httpapi.WriteJSON(w, http.StatusOK, body)
}

// Create adds a catalog entity directly. The wizard's "create new"
// directives go through the committer instead; this endpoint serves
// standalone catalog management.
func (c *CatalogController) Create(w http.ResponseWriter, r *http.Request) {
	kind := resolve.Kind(mux.Vars(r)["kind"])
	if !kind.IsValid() {
		httpapi.WriteError(w, http.StatusNotFound, "CATALOG_UNKNOWN_KIND", "unknown catalog kind", nil)
		return
	}

	switch kind {
	case resolve.KindSite:
		c.createSite(w, r)
	case resolve.KindSpecies:
		c.createSpecies(w, r)
	case resolve.KindCitation:
		c.createCitation(w, r)
	case resolve.KindCultivar:
		c.createCultivar(w, r)
	case resolve.KindTreatment:
		c.createTreatment(w, r)
	}
}

func (c *CatalogController) createSite(w http.ResponseWriter, r *http.Request) {
	var dto site.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, errs)
		return
	}
	entity, err := dto.ToEntity()
	if err != nil {
		httpapi.WriteError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", err.Error(), nil)
		return
	}
	created, err := c.sites.Create(r.Context(), entity)
	if err != nil {
		writeCreateError(w, err, site.ErrAlreadyExists)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"name":       created.Name(),
		"created_at": created.CreatedAt(),
	})
}

func (c *CatalogController) createSpecies(w http.ResponseWriter, r *http.Request) {
	var dto species.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, errs)
		return
	}
	created, err := c.species.Create(r.Context(), dto.ToEntity())
	if err != nil {
		writeCreateError(w, err, species.ErrAlreadyExists)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":              created.ID(),
		"scientific_name": created.ScientificName(),
		"created_at":      created.CreatedAt(),
	})
}

func (c *CatalogController) createCitation(w http.ResponseWriter, r *http.Request) {
	var dto citation.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, errs)
		return
	}
	created, err := c.citations.Create(r.Context(), dto.ToEntity())
	if err != nil {
		writeCreateError(w, err, citation.ErrAlreadyExists)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"label":      created.Label(),
		"created_at": created.CreatedAt(),
	})
}

func (c *CatalogController) createCultivar(w http.ResponseWriter, r *http.Request) {
	var dto cultivar.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, errs)
		return
	}
	created, err := c.cultivars.Create(r.Context(), dto.ToEntity())
	if err != nil {
		writeCreateError(w, err, cultivar.ErrAlreadyExists)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"species_id": created.SpeciesID(),
		"name":       created.Name(),
		"created_at": created.CreatedAt(),
	})
}

func (c *CatalogController) createTreatment(w http.ResponseWriter, r *http.Request) {
	var dto treatment.CreateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "CATALOG_INVALID_JSON", "invalid json", nil)
		return
	}
	if errs, ok := dto.Ok(r.Context()); !ok {
		writeValidationError(w, errs)
		return
	}
	created, err := c.treatments.Create(r.Context(), dto.ToEntity())
	if err != nil {
		writeCreateError(w, err, treatment.ErrAlreadyExists)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":         created.ID(),
		"name":       created.Name(),
		"control":    created.Control(),
		"created_at": created.CreatedAt(),
	})
}

func (c *CatalogController) searchCultivarsScoped(w http.ResponseWriter, r *http.Request, speciesID int64, q string) {
	found, err := c.cultivars.Search(r.Context(), speciesID, q, 10)
	if err != nil {
		httpapi.WriteError(w, http.StatusInternalServerError, "CATALOG_INTERNAL", "internal error", nil)
		return
	}
	candidates := make([]map[string]any, 0, len(found))
	for _, cv := range found {
		candidates = append(candidates, map[string]any{
			"id":    cv.ID(),
			"label": cv.Name(),
		})
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"kind":       string(resolve.KindCultivar),
		"query":      q,
		"species_id": speciesID,
		"candidates": candidates,
	})
}

func writeValidationError(w http.ResponseWriter, errs map[string]string) {
	fields := make(map[string]any, len(errs))
	for k, v := range errs {
		fields[k] = v
	}
	httpapi.WriteError(w, http.StatusUnprocessableEntity, "CATALOG_VALIDATION_FAILED", "validation failed", fields)
}

func writeCreateError(w http.ResponseWriter, err, duplicate error) {
	if errors.Is(err, duplicate) {
		httpapi.WriteError(w, http.StatusConflict, "CATALOG_DUPLICATE", duplicate.Error(), nil)
		return
	}
	httpapi.WriteError(w, http.StatusInternalServerError, "CATALOG_INTERNAL", "internal error", nil)
}
