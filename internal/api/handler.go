package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	store   domain.ObjectStore
	storage domain.StorageConfig
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus,
	store domain.ObjectStore, storage domain.StorageConfig, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		store:   store,
		storage: storage,
		version: version,
	}
}

// IngestRequest is the request body for POST /ingest. It announces a file
// already present in the incoming container.
type IngestRequest struct {
	FileName string `json:"file_name"`
	Source   string `json:"source_type,omitempty"`
}

// IngestResponse is the response for ingestion requests.
type IngestResponse struct {
	FileName string            `json:"file_name"`
	Source   domain.SourceType `json:"source_type"`
	Status   string            `json:"status"`
}

// Ingest handles POST /ingest: publishes a file-arrived event for a CSV
// object that already exists in the incoming container.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.FileName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file_name is required",
		})
		return
	}

	source := domain.SourceType(req.Source)
	if source == "" {
		source = ingest.DetectSourceType(req.FileName)
	}

	if err := h.publishFileArrived(r, req.FileName, source); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue file for processing",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		FileName: req.FileName,
		Source:   source,
		Status:   domain.StatusProcessing,
	})
}

// UploadFile handles PUT /files/{name}: stores the request body as a CSV
// object in the incoming container and queues it for processing.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "name")
	if fileName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file name is required",
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body is empty",
		})
		return
	}

	if err := h.store.Write(r.Context(), h.storage.IncomingContainer, fileName, body); err != nil {
		slog.Error("failed to store uploaded file", "file", fileName, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store file",
		})
		return
	}

	source := ingest.DetectSourceType(fileName)
	if err := h.publishFileArrived(r, fileName, source); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue file for processing",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, IngestResponse{
		FileName: fileName,
		Source:   source,
		Status:   domain.StatusProcessing,
	})
}

func (h *Handler) publishFileArrived(r *http.Request, fileName string, source domain.SourceType) error {
	payload, err := json.Marshal(domain.FileArrivedEvent{
		FileName: fileName,
		Source:   source,
	})
	if err != nil {
		return err
	}

	if err := h.bus.Publish(r.Context(), domain.TopicFileArrived, payload); err != nil {
		slog.Error("failed to publish file-arrived event",
			"file", fileName,
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		return err
	}

	slog.Info("file queued for processing",
		"file", fileName,
		"source", source,
	)
	return nil
}

// GetFileSummary handles GET /files/{name}/summary.
func (h *Handler) GetFileSummary(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "name")
	if fileName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "file name is required",
		})
		return
	}

	meta, err := h.repo.GetFileMetadata(r.Context(), fileName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "file not found",
			})
			return
		}
		slog.Error("failed to get file metadata", "file", fileName, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load file metadata",
		})
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

// ListAlerts handles GET /alerts?account=ACC1&limit=50.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "account query parameter is required",
		})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	alerts, err := h.repo.ListAlertsByAccount(r.Context(), account, limit)
	if err != nil {
		slog.Error("failed to list alerts", "account", account, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// GetTransaction handles GET /transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "id")
	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	row, err := h.repo.GetTransaction(r.Context(), txID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, row)
}

// GetAccountProfile handles GET /accounts/{number}.
func (h *Handler) GetAccountProfile(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "number")
	if accountNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "account number is required",
		})
		return
	}

	doc, err := h.repo.GetAccountProfile(r.Context(), accountNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "account not found",
			})
			return
		}
		slog.Error("failed to get account profile", "account", accountNumber, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load account profile",
		})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetCustomerProfile handles GET /customers/{id}.
func (h *Handler) GetCustomerProfile(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	doc, err := h.repo.GetCustomerProfile(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "customer not found",
			})
			return
		}
		slog.Error("failed to get customer profile", "customer", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load customer profile",
		})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check bus health
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
