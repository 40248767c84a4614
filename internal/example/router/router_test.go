package router

import (
	"github.com/Avi18971911/augur-go/internal/example/repository"
	"github.com/Avi18971911/augur-go/internal/example/service"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/augur/augurtest"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/integrations/captureconsole"
	"github.com/Avi18971911/augur-go/pkg/integrations/httpserver"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func setup(t *testing.T) (*augurtest.Harness, http.Handler) {
	t.Helper()
	consoleCapture := captureconsole.New(captureconsole.Options{
		Levels: []string{captureconsole.LevelWarn, captureconsole.LevelError},
	})
	harness := augurtest.NewHarness(t, augur.Options{
		EnableTracing:    true,
		TracesSampleRate: 1,
		Integrations:     []augur.Integration{consoleCapture},
	})
	logger := logrus.New()
	logger.Out = io.Discard
	logger.Level = logrus.DebugLevel
	logger.AddHook(consoleCapture.LogrusHook(harness.Ctx))

	accountService := service.CreateNewAccountServiceImpl(repository.CreateNewFakeAccountRepository(), zap.NewNop())
	return harness, CreateRouter(accountService, httpserver.New(httpserver.Options{}), logger)
}

func login(harness *augurtest.Harness, handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/accounts/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(harness.Ctx))
	return rec
}

func TestCreateRouter(t *testing.T) {
	t.Run("A successful login is traced down to the repository", func(t *testing.T) {
		harness, handler := setup(t)

		rec := login(harness, handler, `{"username":"Bob","password":"Barker"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"availableBalance":"123.23"`)
		assert.Contains(t, rec.Body.String(), `"pendingBalance":"0.00"`)
		assert.Empty(t, harness.Transport.Events(transport.EventKind))

		transactions := harness.Flush(t, transport.TransactionKind)
		assert.Len(t, transactions, 1)
		transaction := transactions[0].Event
		assert.Equal(t, "POST /accounts/login", transaction.Transaction)
		assert.Len(t, transaction.Spans, 2)
		ops := []string{transaction.Spans[0].Op, transaction.Spans[1].Op}
		assert.ElementsMatch(t, []string{"function", "db.query"}, ops)
		assert.Equal(t, "Bob", transaction.User.Username)
	})

	t.Run("Invalid credentials are reported as a console warning on the request scope", func(t *testing.T) {
		harness, handler := setup(t)

		rec := login(harness, handler, `{"username":"Bob","password":"wrong"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		events := harness.Flush(t, transport.EventKind)
		assert.Len(t, events, 1)
		event := events[0].Event
		assert.Equal(t, "Invalid credentials for login request with username: Bob", event.Message)
		assert.Equal(t, model.WarningLevel, event.Level)
		assert.Equal(t, "console", event.Logger)
		assert.Equal(t, "POST /accounts/login", event.Transaction)
		assert.Equal(t, http.MethodPost, event.Request.Method)
		assert.Equal(t, "auth", event.Breadcrumbs[0].Category)

		transactions := harness.Transport.Events(transport.TransactionKind)
		assert.Len(t, transactions, 1)
		tc, _ := transactions[0].Event.TraceContext()
		assert.Equal(t, string(model.Unauthorized), tc.Status)
	})

	t.Run("Malformed bodies are rejected", func(t *testing.T) {
		harness, handler := setup(t)
		rec := login(harness, handler, `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		events := harness.Flush(t, transport.EventKind)
		assert.Len(t, events, 1)
		assert.True(t, strings.HasPrefix(events[0].Event.Message, "Error encountered when decoding request body "))
	})

	t.Run("Unknown users are invalid credentials too", func(t *testing.T) {
		harness, handler := setup(t)
		rec := login(harness, handler, `{"username":"Mallory","password":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
