package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/mapper"
	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/profile"
	"github.com/naqeebali-shamsi/intellifill/internal/reprocess"
	"github.com/naqeebali-shamsi/intellifill/internal/store"
	"github.com/naqeebali-shamsi/intellifill/internal/templates"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pipeline HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownServer(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// drainTimeout bounds how long in-flight requests get to finish on shutdown.
const drainTimeout = 10 * time.Second

// shutdownServer drains the server on a fresh context; the signal context is
// already cancelled by the time shutdown starts.
func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown", zap.Error(err))
	}
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents/{id}/reprocess", handleReprocess(env))
		r.Post("/reprocess/batch", handleReprocessBatch(env))

		r.Route("/profiles/{userID}", func(r chi.Router) {
			r.Get("/", handleProfileGet(env))
			r.Post("/refresh", handleProfileRefresh(env))
			r.Delete("/", handleProfileDelete(env))
			r.Post("/fields", handleProfileAddField(env))
		})

		r.Post("/map", handleMap(env))
		r.Post("/templates/match", handleTemplateMatch(env))
		r.Post("/templates/detect", handleFormTypeDetect(env))
	})

	return r
}

func handleReprocess(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, err := env.Reprocess.Request(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, attempt)
	}
}

func handleReprocessBatch(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentIDs []string `json:"document_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
			return
		}
		outcomes, err := env.Reprocess.RequestBatch(r.Context(), req.DocumentIDs)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errBody(eris.Cause(err).Error()))
			return
		}
		writeJSON(w, http.StatusOK, outcomes)
	}
}

func handleProfileGet(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := env.Profiles.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleProfileRefresh(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := env.Profiles.Refresh(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleProfileDelete(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env.Profiles.Delete(chi.URLParam(r, "userID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleProfileAddField(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Key   string `json:"key"`
			Type  string `json:"type"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
			return
		}
		p, err := env.Profiles.AddManualValue(r.Context(), chi.URLParam(r, "userID"),
			req.Key, model.FieldType(req.Type), req.Value)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleMap(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			DocumentID string                      `json:"document_id"`
			FormID     string                      `json:"form_id"`
			FormFields []model.FormFieldDescriptor `json:"form_fields"`
			Save       bool                        `json:"save"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
			return
		}

		fields, err := env.Store.FieldsForDocument(r.Context(), req.DocumentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		mappings, err := env.Mapper.Map(req.FormFields, mapper.CandidatesFromFields(fields))
		if err != nil {
			writeErr(w, err)
			return
		}
		if req.Save && req.FormID != "" {
			if err := env.Store.SaveMappings(r.Context(), req.DocumentID, req.FormID, mappings); err != nil {
				writeErr(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, mappings)
	}
}

func handleTemplateMatch(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID string   `json:"user_id"`
			Fields []string `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
			return
		}
		tmpls, err := env.Store.ListVisibleTemplates(r.Context(), req.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}
		matches, err := env.Matcher.Match(req.Fields, tmpls)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func handleFormTypeDetect(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Fields []string `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
			return
		}
		match, err := env.Matcher.DetectFormType(req.Fields, env.FormTypes)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

// writeErr maps pipeline errors onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	var ve *mapper.ValidationError
	switch {
	case errors.Is(err, reprocess.ErrAlreadyProcessing),
		errors.Is(err, profile.ErrAggregationConflict):
		writeJSON(w, http.StatusConflict, errBody(eris.Cause(err).Error()))
	case errors.Is(err, reprocess.ErrAttemptLimitExceeded):
		writeJSON(w, http.StatusUnprocessableEntity, errBody(eris.Cause(err).Error()))
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody("not found"))
	case errors.As(err, &ve), errors.Is(err, templates.ErrNoFields):
		writeJSON(w, http.StatusBadRequest, errBody(eris.Cause(err).Error()))
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
