package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/extract"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/scheduler"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/task"
)

var servePort int

// maxUploadBytes bounds a single multipart submission.
const maxUploadBytes = 64 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for petition generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.scheduler, env.registry, env.extractor),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface: case submission, status polling,
// and per-document retrieval.
func newRouter(sched *scheduler.Scheduler, registry task.Registry, extractor *extract.Extractor) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/cases", func(w http.ResponseWriter, req *http.Request) {
		input, err := decodeCaseRequest(req, extractor)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if input.Case.FullName == "" || input.Case.CaseType == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "case.full_name and case.case_type are required"})
			return
		}

		caseID, err := sched.Start(req.Context(), input)
		if err != nil {
			if errors.Is(err, task.ErrDuplicate) {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "case already exists"})
				return
			}
			zap.L().Error("case submission failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"case_id": caseID,
			"status":  "accepted",
		})
	})

	r.Get("/cases/{caseID}", func(w http.ResponseWriter, req *http.Request) {
		t, err := registry.Get(req.Context(), chi.URLParam(req, "caseID"))
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
				return
			}
			zap.L().Error("status lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	r.Get("/cases/{caseID}/documents/{seq}", func(w http.ResponseWriter, req *http.Request) {
		t, err := registry.Get(req.Context(), chi.URLParam(req, "caseID"))
		if err != nil {
			if errors.Is(err, task.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
				return
			}
			zap.L().Error("document lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if t.Status != model.TaskStatusCompleted {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "documents not ready"})
			return
		}

		seq, err := strconv.Atoi(chi.URLParam(req, "seq"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sequence number"})
			return
		}
		for _, d := range t.Documents {
			if d.Seq != seq {
				continue
			}
			if req.URL.Query().Get("format") == "text" {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				_, _ = io.WriteString(w, d.Content)
				return
			}
			writeJSON(w, http.StatusOK, d)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such document"})
	})

	return r
}

// decodeCaseRequest accepts either a plain JSON GenerationInput or a
// multipart form with a "case" JSON field plus evidence file parts
// under "files". Uploaded files are extracted before the run starts.
func decodeCaseRequest(req *http.Request, extractor *extract.Extractor) (model.GenerationInput, error) {
	var input model.GenerationInput

	if !strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			return input, eris.New("invalid request body")
		}
		return input, nil
	}

	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		return input, eris.New("invalid multipart body")
	}

	caseField := req.FormValue("case")
	if caseField == "" {
		return input, eris.New("multipart field 'case' is required")
	}
	if err := json.Unmarshal([]byte(caseField), &input); err != nil {
		return input, eris.New("invalid 'case' JSON")
	}

	if req.MultipartForm == nil || len(req.MultipartForm.File["files"]) == 0 {
		return input, nil
	}

	contents := make(map[string][]byte)
	for _, header := range req.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			return input, eris.Errorf("open upload %s", header.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return input, eris.Errorf("read upload %s", header.Filename)
		}
		contents[header.Filename] = data
	}

	extracted, failed := extractor.ExtractAll(req.Context(), contents)
	if len(failed) > 0 {
		zap.L().Warn("some uploads could not be extracted", zap.Strings("files", failed))
	}
	for _, f := range extracted {
		input.Files = append(input.Files, model.UploadedFile{
			Filename:      f.Filename,
			Kind:          string(f.Kind),
			ExtractedText: f.ExtractedText,
			WordCount:     f.WordCount,
			PageCount:     f.PageCount,
		})
	}
	return input, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
