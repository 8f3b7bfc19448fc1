// Package server exposes the detection and purification engine over HTTP.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Praveen-2107/blackforge-ai/internal/assistant"
	"github.com/Praveen-2107/blackforge-ai/internal/metrics"
	"github.com/Praveen-2107/blackforge-ai/internal/store"
	"github.com/Praveen-2107/blackforge-ai/pkg/analysis"
	"github.com/Praveen-2107/blackforge-ai/pkg/dataset"
	"github.com/Praveen-2107/blackforge-ai/pkg/detectors"
	"github.com/Praveen-2107/blackforge-ai/pkg/purify"
	"github.com/Praveen-2107/blackforge-ai/pkg/viz"
)

const maxUploadBytes = 256 << 20

// Server wires the engine, purifier, store, and assistant behind HTTP.
type Server struct {
	engine      *analysis.Engine
	purifier    *purify.Purifier
	store       *store.Store
	assistant   *assistant.Assistant
	uploadDir   string
	purifiedDir string
	logger      *zap.Logger
}

// New creates a Server. assistant may be nil (feature disabled).
func New(
	engine *analysis.Engine,
	purifier *purify.Purifier,
	st *store.Store,
	ai *assistant.Assistant,
	uploadDir, purifiedDir string,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:      engine,
		purifier:    purifier,
		store:       st,
		assistant:   ai,
		uploadDir:   uploadDir,
		purifiedDir: purifiedDir,
		logger:      logger,
	}
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Get("/", s.handleListDatasets)
		})
		r.Route("/detection", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
		})
		r.Route("/purification", func(r chi.Router) {
			r.Post("/sanitize", s.handleSanitize)
			r.Get("/download/{id}", s.handleDownload)
		})
		r.Route("/audit", func(r chi.Router) {
			r.Get("/logs", s.handleAuditLogs)
			r.Post("/log", s.handleLogAction)
		})
		r.Route("/assistant", func(r chi.Router) {
			r.Post("/chat", s.handleChat)
			r.Post("/report", s.handleReport)
			r.Get("/status", s.handleAssistantStatus)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := "healthy"
	if err := s.store.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"service": "blackforge-ai",
		"checks":  checks,
	})
}

// handleUpload stores an uploaded dataset and returns its metadata.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "create upload dir: "+err.Error())
		return
	}

	name := filepath.Base(header.Filename)
	path := filepath.Join(s.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save upload: "+err.Error())
		return
	}
	defer dst.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(dst, hasher), file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "write upload: "+err.Error())
		return
	}

	id := uuid.NewString()
	s.logger.Info("dataset uploaded",
		zap.String("id", id), zap.String("name", name), zap.Int64("size", size))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"dataset": map[string]any{
			"id":           id,
			"name":         name,
			"file_path":    path,
			"dataset_kind": inferKind(name),
			"file_size":    size,
			"file_hash":    hex.EncodeToString(hasher.Sum(nil)),
			"tags":         parseTags(r.FormValue("tags")),
		},
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, "read upload dir: "+err.Error())
		return
	}

	datasets := []map[string]any{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		datasets = append(datasets, map[string]any{
			"name":         e.Name(),
			"file_path":    filepath.Join(s.uploadDir, e.Name()),
			"dataset_kind": inferKind(e.Name()),
			"file_size":    info.Size(),
			"uploaded_at":  info.ModTime().UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

type analyzeRequest struct {
	DatasetID   string   `json:"dataset_id"`
	FilePath    string   `json:"file_path"`
	DatasetKind string   `json:"dataset_kind"`
	Methods     []string `json:"methods"`
}

// handleAnalyze runs detection over an uploaded dataset and records the
// verdict in the audit log.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if req.DatasetKind != "" && req.DatasetKind != string(purify.KindTabular) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported dataset kind %q for HTTP analysis", req.DatasetKind))
		return
	}

	methods, err := parseMethods(req.Methods)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tab, err := dataset.LoadCSV(req.FilePath)
	if err != nil {
		metrics.DetectionRunsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadRequest, "load dataset: "+err.Error())
		return
	}

	start := time.Now()
	verdict, results, err := s.engine.Run(r.Context(), tab.Samples, tab.Labels, methods)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DetectionRunsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusBadRequest, "detection failed: "+err.Error())
		return
	}
	metrics.DetectionRunsTotal.WithLabelValues("success").Inc()
	metrics.SuspiciousSamples.Observe(float64(len(verdict.SuspiciousIndices)) / float64(tab.Samples.Rows()))

	projection, err := viz.Project(tab.Samples, nil, verdict.SuspiciousIndices)
	if err != nil {
		s.logger.Warn("visualization projection failed", zap.Error(err))
	}

	analysisID := uuid.NewString()
	byMethod := make(map[string]detectors.Result, len(results))
	for _, res := range results {
		byMethod[string(res.Method)] = res
	}

	s.writeAudit(r.Context(), store.AuditEntry{
		ID:              uuid.NewString(),
		DatasetID:       req.DatasetID,
		DetectionMethod: joinMethods(verdict.Methods),
		Action:          "DETECTION_RUN",
		ThreatScore:     verdict.ThreatScore,
		ThreatGrade:     verdict.Grade,
	}, map[string]any{
		"analysis_id":       analysisID,
		"poison_type":       verdict.PoisonType,
		"poison_confidence": verdict.Confidence,
		"suspicious_count":  len(verdict.SuspiciousIndices),
		"file_path":         req.FilePath,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"analysis_id":               analysisID,
		"poison_detected":           verdict.Detected(),
		"poison_confidence":         verdict.Confidence,
		"poison_type":               verdict.PoisonType,
		"estimated_accuracy_impact": verdict.AccuracyImpact,
		"suspicious_sample_count":   len(verdict.SuspiciousIndices),
		"suspicious_indices":        verdict.SuspiciousIndices,
		"threat_score":              verdict.ThreatScore,
		"threat_grade":              verdict.Grade,
		"results":                   byMethod,
		"visualization":             projection,
	})
}

type sanitizeRequest struct {
	DatasetID         string  `json:"dataset_id"`
	AnalysisID        string  `json:"analysis_id"`
	FilePath          string  `json:"file_path"`
	DatasetKind       string  `json:"dataset_kind"`
	SuspiciousIndices []int   `json:"suspicious_indices"`
	AccuracyBefore    float64 `json:"accuracy_before"`
	AccuracyAfter     float64 `json:"accuracy_after"`
}

// handleSanitize purifies a dataset and persists the outcome so downloads
// survive restarts.
func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	var req sanitizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}

	kind := purify.Kind(req.DatasetKind)
	if kind == "" {
		kind = purify.KindTabular
	}

	purificationID := uuid.NewString()
	dest := filepath.Join(s.purifiedDir, purificationID+"_purified.csv")
	if kind == purify.KindImageFolder {
		dest = filepath.Join(s.purifiedDir, purificationID+"_purified")
	}

	outcome, err := s.purifier.Purify(req.FilePath, dest, req.SuspiciousIndices, kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "purification failed: "+err.Error())
		return
	}
	metrics.PurificationsTotal.WithLabelValues(string(kind), string(outcome.Mode)).Inc()

	record := store.PurificationRecord{
		ID:             purificationID,
		AnalysisID:     req.AnalysisID,
		DatasetID:      req.DatasetID,
		CleanPath:      outcome.CleanPath,
		Removed:        outcome.Removed,
		AccuracyBefore: req.AccuracyBefore,
		AccuracyAfter:  req.AccuracyAfter,
		IntegrityScore: outcome.IntegrityScore,
	}
	if err := s.store.InsertPurification(r.Context(), record); err != nil {
		s.logger.Error("persist purification record", zap.Error(err))
	}

	s.writeAudit(r.Context(), store.AuditEntry{
		ID:                uuid.NewString(),
		DatasetID:         req.DatasetID,
		DetectionMethod:   "purification",
		Action:            "PURIFICATION",
		ThreatGrade:       "A",
		MitigationApplied: true,
	}, map[string]any{
		"purification_id":          purificationID,
		"poisoned_samples_removed": outcome.Removed,
		"data_integrity_score":     outcome.IntegrityScore,
		"clean_dataset_path":       outcome.CleanPath,
		"mode":                     outcome.Mode,
		"degraded":                 outcome.Degraded,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"purification_id":          purificationID,
		"clean_dataset_path":       outcome.CleanPath,
		"poisoned_samples_removed": outcome.Removed,
		"data_integrity_score":     outcome.IntegrityScore,
		"mode":                     outcome.Mode,
		"degraded":                 outcome.Degraded,
		"accuracy_before":          req.AccuracyBefore,
		"accuracy_after":           req.AccuracyAfter,
	})
}

// handleDownload serves a purified artifact, falling back to a disk scan
// when the database row is missing.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cleanPath := ""
	record, err := s.store.GetPurification(r.Context(), id)
	switch {
	case err == nil:
		cleanPath = record.CleanPath
	case errors.Is(err, store.ErrNotFound):
		matches, _ := filepath.Glob(filepath.Join(s.purifiedDir, id+"*"))
		if len(matches) == 0 {
			writeError(w, http.StatusNotFound,
				fmt.Sprintf("purified dataset not found for id %q", id))
			return
		}
		cleanPath = matches[0]
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := os.Stat(cleanPath); err != nil {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("purified file recorded but missing from disk: %s", cleanPath))
		return
	}

	name := "purified_dataset_" + shortID(id) + filepath.Ext(cleanPath)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if strings.EqualFold(filepath.Ext(cleanPath), ".csv") {
		w.Header().Set("Content-Type", "text/csv")
	}
	http.ServeFile(w, r, cleanPath)
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	entries, err := s.store.ListAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logs := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, map[string]any{
			"id":                 e.ID,
			"dataset_id":         e.DatasetID,
			"model_id":           e.ModelID,
			"detection_method":   e.DetectionMethod,
			"action":             e.Action,
			"threat_score":       e.ThreatScore,
			"threat_grade":       e.ThreatGrade,
			"mitigation_applied": e.MitigationApplied,
			"details":            e.DetailsMap(),
			"timestamp":          e.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "total": len(logs)})
}

func (s *Server) handleLogAction(w http.ResponseWriter, r *http.Request) {
	var entry struct {
		store.AuditEntry
		Details map[string]any `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if entry.DetectionMethod == "" || entry.Action == "" {
		writeError(w, http.StatusBadRequest, "detection_method and action are required")
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	s.writeAudit(r.Context(), entry.AuditEntry, entry.Details)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "log_id": entry.ID})
}

type chatRequest struct {
	Message string                     `json:"message"`
	History []assistant.Message        `json:"history"`
	Context *assistant.AnalysisContext `json:"context"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.assistant.Chat(r.Context(), req.Message, req.History, req.Context)
	if err != nil {
		metrics.AssistantRequestsTotal.WithLabelValues("chat", "error").Inc()
		writeAssistantError(w, err)
		return
	}
	metrics.AssistantRequestsTotal.WithLabelValues("chat", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context assistant.AnalysisContext `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := s.assistant.Report(r.Context(), req.Context)
	if err != nil {
		metrics.AssistantRequestsTotal.WithLabelValues("report", "error").Inc()
		writeAssistantError(w, err)
		return
	}
	metrics.AssistantRequestsTotal.WithLabelValues("report", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (s *Server) handleAssistantStatus(w http.ResponseWriter, r *http.Request) {
	if !s.assistant.Enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	err := s.assistant.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":   true,
		"reachable": err == nil,
	})
}

// writeAudit persists an audit entry, logging rather than failing the
// request on storage errors.
func (s *Server) writeAudit(ctx context.Context, e store.AuditEntry, details map[string]any) {
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			e.Details = string(raw)
		}
	}
	if err := s.store.InsertAudit(ctx, e); err != nil {
		s.logger.Error("write audit entry", zap.Error(err))
	}
}

func parseMethods(names []string) ([]detectors.Method, error) {
	var methods []detectors.Method
	for _, name := range names {
		switch strings.ToLower(name) {
		case "spectral", string(detectors.MethodSpectral):
			methods = append(methods, detectors.MethodSpectral)
		case "cluster", "activation", string(detectors.MethodCluster):
			methods = append(methods, detectors.MethodCluster)
		case "influence", string(detectors.MethodInfluence):
			methods = append(methods, detectors.MethodInfluence)
		default:
			return nil, fmt.Errorf("unknown detection method %q", name)
		}
	}
	return methods, nil
}

func joinMethods(methods []detectors.Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

func inferKind(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return string(purify.KindTabular)
	case strings.HasSuffix(name, ".zip"), strings.HasSuffix(name, ".tar.gz"):
		return string(purify.KindImageFolder)
	case strings.HasSuffix(name, ".pcap"), strings.HasSuffix(name, ".pcapng"):
		return "network_capture"
	case strings.HasSuffix(name, ".txt"):
		return "text"
	default:
		return "unknown"
	}
}

func parseTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeAssistantError(w http.ResponseWriter, err error) {
	if errors.Is(err, assistant.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
