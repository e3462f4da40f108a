package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cosyhq/regcheck/internal/core/domain"
	"github.com/cosyhq/regcheck/internal/core/ports"
	"github.com/cosyhq/regcheck/internal/observability/metrics"
)

const defaultLogLimit = 50

type Router struct {
	checker  ports.ComplianceChecker
	logStore ports.CheckLogStore
	service  string
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(checker ports.ComplianceChecker, logStore ports.CheckLogStore, service string, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		checker:  checker,
		logStore: logStore,
		service:  service,
		metrics:  m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/compliance/check", rt.check)
	mux.HandleFunc("/v1/logs", rt.listLogs)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkRequest struct {
	Market string `json:"market"`
	Text   string `json:"text"`
	Domain string `json:"domain"`
}

func (rt *Router) check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Market) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "market is required"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	checkDomain := strings.ToLower(strings.TrimSpace(req.Domain))
	if !domain.IsCheckableDomain(checkDomain) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "domain must be labeling or ingredients"})
		return
	}

	start := time.Now()
	switch checkDomain {
	case domain.DomainLabeling:
		result, err := rt.checker.CheckLabeling(r.Context(), req.Market, req.Text)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		rt.recordCheck(req.Market, checkDomain, string(result.OverallRisk), len(result.Findings), start)
		writeJSON(w, http.StatusOK, result)
	case domain.DomainIngredients:
		result, err := rt.checker.CheckIngredients(r.Context(), req.Market, req.Text)
		if err != nil {
			rt.writeError(w, err)
			return
		}
		rt.recordCheck(req.Market, checkDomain, string(result.OverallRisk), len(result.Details), start)
		writeJSON(w, http.StatusOK, result)
	}
}

func (rt *Router) listLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records, err := rt.logStore.ListRecent(r.Context(), limit)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": records})
}

func (rt *Router) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func (rt *Router) recordCheck(market, checkDomain, risk string, items int, start time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordCheck(rt.service, market, checkDomain, risk, items, time.Since(start))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
