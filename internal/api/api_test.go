package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/storage"
)

// stubRepo is a minimal in-memory Repository for handler tests.
type stubRepo struct {
	mu       sync.Mutex
	alerts   map[string][]*domain.Alert
	metadata map[string]*domain.FileMetadata
	rows     map[string]domain.CleanedRow
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		alerts:   make(map[string][]*domain.Alert),
		metadata: make(map[string]*domain.FileMetadata),
		rows:     make(map[string]domain.CleanedRow),
	}
}

func (r *stubRepo) UpsertTransaction(_ context.Context, _ domain.SourceType, row domain.CleanedRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.TransactionID()] = row
	return nil
}

func (r *stubRepo) GetTransaction(_ context.Context, txID string) (domain.CleanedRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[txID]; ok {
		return row, nil
	}
	return nil, domain.ErrNotFound
}

func (r *stubRepo) UpsertAccountProfile(context.Context, *domain.AccountDocument) error { return nil }

func (r *stubRepo) GetAccountProfile(context.Context, string) (*domain.AccountDocument, error) {
	return nil, domain.ErrNotFound
}

func (r *stubRepo) UpsertCustomerProfile(context.Context, *domain.CustomerDocument) error { return nil }

func (r *stubRepo) GetCustomerProfile(context.Context, string) (*domain.CustomerDocument, error) {
	return nil, domain.ErrNotFound
}

func (r *stubRepo) UpsertAlert(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.AccountNumber] = append(r.alerts[alert.AccountNumber], alert)
	return nil
}

func (r *stubRepo) ListAlertsByAccount(_ context.Context, account string, limit int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alerts := r.alerts[account]
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

func (r *stubRepo) SaveFileMetadata(_ context.Context, meta *domain.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[meta.FileName] = meta
	return nil
}

func (r *stubRepo) GetFileMetadata(_ context.Context, name string) (*domain.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if meta, ok := r.metadata[name]; ok {
		return meta, nil
	}
	return nil, domain.ErrNotFound
}

func (r *stubRepo) Ping(context.Context) error { return nil }
func (r *stubRepo) Close() error               { return nil }

// createTestServer wires a server with a stub repo, channel bus, local store.
func createTestServer(t *testing.T) (*Server, *stubRepo, *bus.ChannelBus, domain.ObjectStore) {
	t.Helper()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	repo := newStubRepo()
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	storageCfg := domain.StorageConfig{
		Type:                "local",
		IncomingContainer:   "incoming",
		MetadataContainer:   "metadata",
		QuarantineContainer: "quarantine",
	}

	return NewServer(cfg, repo, nil, eventBus, store, storageCfg, "test-v1"), repo, eventBus, store
}

func TestIngestEndpoint(t *testing.T) {
	server, _, eventBus, _ := createTestServer(t)

	t.Run("QueuesFileForProcessing", func(t *testing.T) {
		var gotEvent domain.FileArrivedEvent
		received := make(chan struct{}, 1)

		eventBus.Subscribe(context.Background(), domain.TopicFileArrived, func(ctx context.Context, msg *domain.Message) error {
			json.Unmarshal(msg.Payload, &gotEvent)
			received <- struct{}{}
			return nil
		})
		time.Sleep(10 * time.Millisecond)

		body, _ := json.Marshal(IngestRequest{FileName: "atm_jan.csv"})
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp IngestResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Source != domain.SourceATM {
			t.Errorf("expected detected source ATM, got %s", resp.Source)
		}

		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("file-arrived event not published")
		}
		if gotEvent.FileName != "atm_jan.csv" {
			t.Errorf("event file = %q", gotEvent.FileName)
		}
	})

	t.Run("MissingFileName", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		body, _ := json.Marshal(IngestRequest{FileName: "upi_feb.csv"})
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestUploadFileEndpoint(t *testing.T) {
	server, _, _, store := createTestServer(t)

	t.Run("StoresAndQueues", func(t *testing.T) {
		csv := "TransactionID,Amount,Timestamp\nTXN001,500,01-02-2024 10:00\n"
		req := httptest.NewRequest(http.MethodPut, "/files/upi_mar.csv", bytes.NewBufferString(csv))

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		stored, err := store.Read(context.Background(), "incoming", "upi_mar.csv")
		if err != nil {
			t.Fatalf("uploaded object missing: %v", err)
		}
		if string(stored) != csv {
			t.Errorf("stored content mismatch: %q", stored)
		}
	})

	t.Run("EmptyBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/files/upi_apr.csv", bytes.NewBuffer(nil))

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestFileSummaryEndpoint(t *testing.T) {
	server, repo, _, _ := createTestServer(t)

	repo.SaveFileMetadata(context.Background(), &domain.FileMetadata{
		FileName:   "atm_jan.csv",
		Source:     domain.SourceATM,
		Status:     domain.StatusCompleted,
		RowsParsed: 10,
		Valid:      9,
	})

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/atm_jan.csv/summary", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var meta domain.FileMetadata
		if err := json.Unmarshal(rr.Body.Bytes(), &meta); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if meta.Status != domain.StatusCompleted || meta.RowsParsed != 10 {
			t.Errorf("unexpected metadata: %+v", meta)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/missing.csv/summary", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestAlertsEndpoint(t *testing.T) {
	server, repo, _, _ := createTestServer(t)

	repo.UpsertAlert(context.Background(), &domain.Alert{
		ID:            "ALERT_HIGHVALUE_TXN001",
		Type:          domain.AlertHighValue,
		Reason:        "High value transaction detected: Amount 75000",
		AccountNumber: "ACC1",
	})

	t.Run("ListByAccount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/alerts?account=ACC1", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Account string          `json:"account"`
			Alerts  []*domain.Alert `json:"alerts"`
			Count   int             `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 || resp.Alerts[0].Type != domain.AlertHighValue {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("RequiresAccount", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/alerts", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("RejectsBadLimit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/alerts?account=ACC1&limit=abc", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestTransactionEndpoint(t *testing.T) {
	server, repo, _, _ := createTestServer(t)

	repo.UpsertTransaction(context.Background(), domain.SourceATM, domain.CleanedRow{
		domain.FieldTransactionID: "TXN001",
		domain.FieldAmount:        500.0,
	})

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/TXN001", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/transactions/nope", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _, _ := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
