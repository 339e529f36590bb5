package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopsight/shopsight-server/internal/analytics"
	"github.com/shopsight/shopsight-server/internal/catalog"
	"github.com/shopsight/shopsight-server/internal/domain"
	apperrors "github.com/shopsight/shopsight-server/internal/errors"
	"github.com/shopsight/shopsight-server/internal/http/response"
	"github.com/shopsight/shopsight-server/internal/query"
	"github.com/shopsight/shopsight-server/internal/util"
)

const (
	defaultPage    = 1
	defaultPerPage = 50
)

// CatalogListResponse contains the known catalog slugs.
type CatalogListResponse struct {
	Catalogs []string `json:"catalogs"`
}

// CrawlListResponse contains the crawl history of one product URL,
// newest first.
type CrawlListResponse struct {
	Crawls []domain.Crawl `json:"crawls"`
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status   string `json:"status"`
	Engine   string `json:"engine"`
	Catalogs int    `json:"catalogs"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	slugs, err := s.backend.List()
	if err != nil {
		s.logger.Error("Health check failed", "error", err)
		response.JSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Engine: s.backend.Engine(),
		}, s.logger)
		return
	}

	response.JSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Engine:   s.backend.Engine(),
		Catalogs: len(slugs),
	}, s.logger)
}

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Refresh(r.Context()); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	slugs := s.registry.Slugs()
	if slugs == nil {
		slugs = []string{}
	}
	response.JSON(w, http.StatusOK, CatalogListResponse{Catalogs: slugs}, s.logger)
}

// acquire leases the requested catalog's current generation. The path
// parameter is normalized first, so /api/Ann_Taylor/... finds the
// ann-taylor catalog. On error it writes the response and returns nil.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request) *catalog.Lease {
	lease, err := s.registry.Acquire(util.NormalizeCatalogSlug(chi.URLParam(r, "catalog")))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return nil
	}
	return lease
}

// pagination reads page and per_page query parameters, applying the
// defaults when absent. Range validation happens in the query engine.
func pagination(r *http.Request) (page, perPage int, err error) {
	page, err = intParam(r, "page", defaultPage)
	if err != nil {
		return 0, 0, err
	}
	perPage, err = intParam(r, "per_page", defaultPerPage)
	if err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidArgumentf("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	result, err := query.New(lease.Gen).List(page, perPage)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	result, err := query.New(lease.Gen).Search(r.Context(), r.URL.Query().Get("query"), page, perPage)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pagination(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	result, err := query.New(lease.Gen).Filter(r.URL.Query().Get("filter_string"), page, perPage)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	product, err := query.New(lease.Gen).Get(chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, presentProduct(product), s.logger)
}

func (s *Server) handleGetProductData(w http.ResponseWriter, r *http.Request) {
	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	product, err := query.New(lease.Gen).Get(chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, product, s.logger)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	result, err := analytics.ComputeBasic(lease.Gen.Store)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleAdvancedAnalytics(w http.ResponseWriter, r *http.Request) {
	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	result, err := analytics.ComputeAdvanced(lease.Gen.Store)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.JSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleCrawls(w http.ResponseWriter, r *http.Request) {
	productURL := r.URL.Query().Get("product_url")
	if productURL == "" {
		response.HandleError(w, apperrors.InvalidArgument("product_url query parameter is required"), s.logger)
		return
	}

	lease := s.acquire(w, r)
	if lease == nil {
		return
	}
	defer lease.Release()

	crawls, err := lease.Gen.Store.CrawlsByProductURL(productURL)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if crawls == nil {
		crawls = []domain.Crawl{}
	}
	response.JSON(w, http.StatusOK, CrawlListResponse{Crawls: crawls}, s.logger)
}
