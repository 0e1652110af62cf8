package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/application/services"
	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/domain/ledger"
	"github.com/bimakw/collective-ledger/internal/testutil"
)

type testEnv struct {
	router      chi.Router
	txRepo      *testutil.MockTransactionRepository
	tokenRepo   *testutil.MockTokenRepository
	collectives *testutil.MockCollectiveRepository
}

func fixedNow() time.Time { return testutil.DefaultTestTime }

// setupHandlerTest wires every API handler over in-memory mocks, with the
// clock pinned to January 2024 and CHT quoted at 0.5 USD on the fixture day.
func setupHandlerTest() *testEnv {
	env := &testEnv{
		txRepo:      testutil.NewMockTransactionRepository(),
		tokenRepo:   testutil.NewMockTokenRepository(),
		collectives: testutil.NewMockCollectiveRepository(),
	}
	env.collectives.AddCollective(testutil.CreateTestCollective())

	rates := ledger.NewRateTable()
	rates.Add("CHT", "USD", map[string]float64{"20240115": 0.5})

	logger := zap.NewNop()
	cacheCfg := config.CacheConfig{TTL: time.Minute, GracePeriod: time.Hour}
	transactions := services.NewTransactionService(env.txRepo, env.collectives, nil, cacheCfg, logger)

	txHandler := NewTransactionHandler(transactions, logger)
	txHandler.now = fixedNow
	statsHandler := NewStatsHandler(services.NewStatsService(transactions, env.collectives, rates, logger), logger)
	statsHandler.now = fixedNow
	lbHandler := NewLeaderboardHandler(services.NewLeaderboardService(transactions, env.collectives, rates, logger), logger)
	lbHandler.now = fixedNow
	tokenHandler := NewTokenHandler(services.NewTokenService(env.tokenRepo, env.collectives, logger), logger)

	r := chi.NewRouter()
	txHandler.RegisterRoutes(r)
	statsHandler.RegisterRoutes(r)
	lbHandler.RegisterRoutes(r)
	tokenHandler.RegisterRoutes(r)
	env.router = r

	return env
}

// seedActivity stores 10 cUSD from Alice, 4 CHT from Bob, 3 cUSD paid to
// Charlie and one internal transfer, all on the fixture day.
func seedActivity(repo *testutil.MockTransactionRepository) {
	cht := testutil.CreateTestToken(
		testutil.TokenWithAddress(testutil.CHTAddress),
		testutil.TokenWithSymbol("CHT"),
		testutil.TokenWithDecimals(6),
	)

	repo.AddTransactions(
		testutil.CreateTestTransaction(testutil.WithTxHash("0x01"), testutil.WithLogIndex(1),
			testutil.WithValue("10000000000000000000")),
		testutil.CreateTestTransaction(testutil.WithTxHash("0x02"), testutil.WithLogIndex(2),
			testutil.WithFrom(testutil.BobAddress), testutil.WithToken(cht), testutil.WithValue("4000000")),
		testutil.CreateTestTransaction(testutil.WithTxHash("0x03"), testutil.WithLogIndex(3),
			testutil.WithFrom(testutil.TreasuryAddr), testutil.WithTo(testutil.CharlieAddr), testutil.WithValue("3000000000000000000")),
		testutil.CreateTestTransaction(testutil.WithTxHash("0x04"), testutil.WithLogIndex(4),
			testutil.WithFrom(testutil.TreasuryAddr), testutil.WithTo(testutil.SavingsAddr)),
	)
}

func (env *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec, &body)
	return body["error"]
}
