package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/chococrunch/pipeline/config"
	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/chococrunch/pipeline/internal/infrastructure/cache"
	"github.com/chococrunch/pipeline/internal/infrastructure/snapshot"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeRunner records triggered runs. A run stays active until release is closed.
type fakeRunner struct {
	mu      sync.Mutex
	running bool
	runs    int
	release chan struct{}
	done    chan struct{}
}

func (f *fakeRunner) Start(ctx context.Context, done func(domain.RunReport, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return domain.ErrRunInProgress
	}
	f.running = true
	f.runs++

	go func() {
		if f.release != nil {
			<-f.release
		}
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		done(domain.RunReport{RunID: "triggered"}, nil)
		if f.done != nil {
			close(f.done)
		}
	}()
	return nil
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:8501"},
		},
	}
}

func engineeredFixture() domain.EngineeredDataset {
	record := func(code, brand string, size domain.BrandSize, risk domain.RiskLevel) domain.EngineeredRecord {
		return domain.EngineeredRecord{
			ProductRecord: domain.ProductRecord{
				ProductCode: code,
				ProductName: "Chocolate " + code,
				Brand:       brand,
				Nutrients:   domain.Nutrients{EnergyKcal: domain.Float64(530), Sugars: domain.Float64(45)},
			},
			CalorieCategory: domain.CategoryHigh,
			SugarCategory:   domain.CategoryHigh,
			HealthRiskScore: risk,
			BrandSize:       size,
		}
	}
	return domain.EngineeredDataset{Records: []domain.EngineeredRecord{
		record("001", "Lindt", domain.BrandMajor, domain.RiskHigh),
		record("002", "Lindt", domain.BrandMajor, domain.RiskModerate),
		record("003", "Milka", domain.BrandMedium, domain.RiskHigh),
		record("004", "", domain.BrandMinor, domain.RiskLow),
	}}
}

type testServer struct {
	router *gin.Engine
	store  *snapshot.Store
	cache  *cache.MemoryCache
	runner *fakeRunner
}

func setupTestServer(t *testing.T, seed bool) *testServer {
	t.Helper()

	store := snapshot.NewStore(t.TempDir())
	if seed {
		require.NoError(t, store.WriteEngineered(engineeredFixture()))
		require.NoError(t, store.WriteReport(domain.RunReport{RunID: "run-1", StepsCompleted: domain.Stages, SuccessRate: 1}))
	}

	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { memCache.Close() })

	runner := &fakeRunner{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("chococrunch_runs_total 0\n"))
	})

	handler := NewHandler(store, runner, memCache, time.Minute, nil)
	return &testServer{
		router: SetupRouter(testConfig(), handler, metrics, nil),
		store:  store,
		cache:  memCache,
		runner: runner,
	}
}

func (s *testServer) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealthCheckEndpoint(t *testing.T) {
	s := setupTestServer(t, false)

	w := s.do(http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "chococrunch", response["service"])
	assert.Equal(t, false, response["pipelineActive"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t, false)

	w := s.do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chococrunch_runs_total")
}

func TestListProducts(t *testing.T) {
	s := setupTestServer(t, true)

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantCount int
		wantCodes []string
	}{
		{"all", "", 4, 4, []string{"001", "002", "003", "004"}},
		{"brand size", "?brand_size=Major", 2, 2, []string{"001", "002"}},
		{"brand size lowercase", "?brand_size=medium", 1, 1, []string{"003"}},
		{"health risk short form", "?health_risk=high", 2, 2, []string{"001", "003"}},
		{"health risk label", "?health_risk=Low%20Risk", 1, 1, []string{"004"}},
		{"combined", "?brand_size=Major&health_risk=High", 1, 1, []string{"001"}},
		{"limit", "?limit=3", 4, 3, []string{"001", "002", "003"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/v1/products"+tt.query)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp ProductsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Equal(t, tt.wantCount, resp.Count)

			codes := make([]string, len(resp.Products))
			for i, p := range resp.Products {
				codes[i] = p.ProductCode
			}
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestListProducts_InvalidParameters(t *testing.T) {
	s := setupTestServer(t, true)

	for _, query := range []string{"?brand_size=Huge", "?health_risk=extreme", "?limit=0", "?limit=abc", "?limit=5000"} {
		t.Run(query, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/v1/products"+query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestListProducts_NoSnapshot(t *testing.T) {
	s := setupTestServer(t, false)

	w := s.do(http.MethodGet, "/api/v1/products")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "run the pipeline first")
}

func TestListProducts_Cached(t *testing.T) {
	s := setupTestServer(t, true)

	first := s.do(http.MethodGet, "/api/v1/products?brand_size=Major")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := s.do(http.MethodGet, "/api/v1/products?brand_size=Major")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// a new run scopes the cache afresh
	require.NoError(t, s.store.WriteReport(domain.RunReport{RunID: "run-2"}))
	third := s.do(http.MethodGet, "/api/v1/products?brand_size=Major")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
}

func TestGetProduct(t *testing.T) {
	s := setupTestServer(t, true)

	w := s.do(http.MethodGet, "/api/v1/products/003")
	require.Equal(t, http.StatusOK, w.Code)

	var record domain.EngineeredRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "Milka", record.Brand)
	assert.Equal(t, domain.BrandMedium, record.BrandSize)
	assert.Equal(t, 530.0, *record.Nutrients.EnergyKcal)

	missing := s.do(http.MethodGet, "/api/v1/products/999")
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestGetReport(t *testing.T) {
	t.Run("returns last report", func(t *testing.T) {
		s := setupTestServer(t, true)

		w := s.do(http.MethodGet, "/api/v1/report")
		require.Equal(t, http.StatusOK, w.Code)

		var report domain.RunReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, "run-1", report.RunID)
		assert.True(t, report.Succeeded())
	})

	t.Run("not found before first run", func(t *testing.T) {
		s := setupTestServer(t, false)
		assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/report").Code)
	})
}

func TestTriggerRun(t *testing.T) {
	t.Run("starts a run", func(t *testing.T) {
		s := setupTestServer(t, false)
		s.runner.done = make(chan struct{})

		w := s.do(http.MethodPost, "/api/v1/pipeline/run")

		assert.Equal(t, http.StatusAccepted, w.Code)
		select {
		case <-s.runner.done:
		case <-time.After(time.Second):
			t.Fatal("run was not started")
		}
	})

	t.Run("conflict while running", func(t *testing.T) {
		s := setupTestServer(t, false)
		s.runner.running = true

		w := s.do(http.MethodPost, "/api/v1/pipeline/run")

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, 0, s.runner.runCount())
	})

	t.Run("simultaneous requests start one run", func(t *testing.T) {
		s := setupTestServer(t, false)
		s.runner.release = make(chan struct{})
		defer close(s.runner.release)

		const requests = 8
		codes := make(chan int, requests)
		var wg sync.WaitGroup
		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				codes <- s.do(http.MethodPost, "/api/v1/pipeline/run").Code
			}()
		}
		wg.Wait()
		close(codes)

		counts := make(map[int]int)
		for code := range codes {
			counts[code]++
		}
		assert.Equal(t, 1, counts[http.StatusAccepted])
		assert.Equal(t, requests-1, counts[http.StatusConflict])
		assert.Equal(t, 1, s.runner.runCount())
	})

	t.Run("disabled without runner", func(t *testing.T) {
		handler := NewHandler(snapshot.NewStore(t.TempDir()), nil, nil, 0, nil)
		router := SetupRouter(testConfig(), handler, nil, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/run", nil))

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := setupTestServer(t, false)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v2/products").Code)
}
