package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/salewatch-cli/internal/accuracy"
	"github.com/sells-group/salewatch-cli/internal/model"
	"github.com/sells-group/salewatch-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read/mutate HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		api := &apiServer{
			store:    st,
			accuracy: accuracy.NewService(st, cfg.Accuracy),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	store    store.Store
	accuracy *accuracy.Service
}

func (a *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/brands", a.handleListBrands)
		r.Get("/brands/{id}/windows", a.handleBrandWindows)
		r.Get("/brands/{id}/predictions", a.handleBrandPredictions)
		r.Get("/brands/{id}/accuracy", a.handleBrandAccuracy)
		r.Get("/predictions/upcoming", a.handleUpcoming)
		r.Get("/accuracy/overall", a.handleOverall)
		r.Get("/suggestions", a.handleSuggestions)
		r.Post("/outcomes/{prediction_id}/override", a.handleOverride)
		r.Post("/suggestions/{id}/resolve", a.handleResolve)
	})
	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) handleListBrands(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	brands, err := a.store.ListBrands(r.Context(), activeOnly)
	if err != nil {
		serverError(w, "list brands", err)
		return
	}
	writeJSON(w, http.StatusOK, brands)
}

func (a *apiServer) handleBrandWindows(w http.ResponseWriter, r *http.Request) {
	brand, ok := a.brand(w, r)
	if !ok {
		return
	}
	windows, err := a.store.ListWindows(r.Context(), brand.ID)
	if err != nil {
		serverError(w, "list windows", err)
		return
	}
	writeJSON(w, http.StatusOK, windows)
}

func (a *apiServer) handleBrandPredictions(w http.ResponseWriter, r *http.Request) {
	brand, ok := a.brand(w, r)
	if !ok {
		return
	}
	year := time.Now().UTC().Year() + 1
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = y
	}
	preds, err := a.store.ListPredictionsForYear(r.Context(), brand.ID, year)
	if err != nil {
		serverError(w, "list predictions", err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (a *apiServer) handleBrandAccuracy(w http.ResponseWriter, r *http.Request) {
	brand, ok := a.brand(w, r)
	if !ok {
		return
	}
	stats, err := a.store.GetBrandStats(r.Context(), brand.ID)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no accuracy stats for brand")
		return
	}
	if err != nil {
		serverError(w, "get brand stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *apiServer) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = d
	}
	preds, err := a.store.ListUpcomingPredictions(r.Context(), time.Now().UTC(), days)
	if err != nil {
		serverError(w, "list upcoming", err)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (a *apiServer) handleOverall(w http.ResponseWriter, r *http.Request) {
	overall, err := a.accuracy.Overall(r.Context())
	if err != nil {
		serverError(w, "overall stats", err)
		return
	}
	writeJSON(w, http.StatusOK, overall)
}

func (a *apiServer) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	status := model.SuggestionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.SuggestionPending
	}
	switch status {
	case model.SuggestionPending, model.SuggestionApproved, model.SuggestionDismissed:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	suggestions, err := a.store.ListSuggestions(r.Context(), status)
	if err != nil {
		serverError(w, "list suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (a *apiServer) handleOverride(w http.ResponseWriter, r *http.Request) {
	predictionID := chi.URLParam(r, "prediction_id")

	var req struct {
		Result string `json:"result"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result := model.Result(req.Result)
	switch result {
	case model.ResultHit, model.ResultMiss, model.ResultPartial:
	default:
		writeError(w, http.StatusBadRequest, "result must be hit, miss, or partial")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	if _, err := a.store.GetPrediction(r.Context(), predictionID); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "prediction not found")
			return
		}
		serverError(w, "get prediction", err)
		return
	}

	outcome, err := a.store.OverrideOutcome(r.Context(), predictionID, result, req.Reason)
	if err != nil {
		serverError(w, "override outcome", err)
		return
	}

	zap.L().Info("outcome overridden",
		zap.String("prediction_id", predictionID),
		zap.String("result", req.Result),
	)
	writeJSON(w, http.StatusOK, outcome)
}

func (a *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := model.SuggestionStatus(req.Status)
	switch status {
	case model.SuggestionApproved, model.SuggestionDismissed:
	default:
		writeError(w, http.StatusBadRequest, "status must be approved or dismissed")
		return
	}

	suggestion, err := a.store.ResolveSuggestion(r.Context(), id, status)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no pending suggestion with that id")
		return
	}
	if err != nil {
		serverError(w, "resolve suggestion", err)
		return
	}

	zap.L().Info("suggestion resolved",
		zap.String("id", id),
		zap.String("status", req.Status),
	)
	writeJSON(w, http.StatusOK, suggestion)
}

// brand resolves the {id} path parameter as an ID or slug, writing the error
// response itself when the brand does not exist.
func (a *apiServer) brand(w http.ResponseWriter, r *http.Request) (*model.Brand, bool) {
	idOrSlug := chi.URLParam(r, "id")
	brand, err := a.store.GetBrand(r.Context(), idOrSlug)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "brand not found")
		return nil, false
	}
	if err != nil {
		serverError(w, "get brand", err)
		return nil, false
	}
	return brand, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, action string, err error) {
	zap.L().Error(action+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
