package router

import (
	"github.com/Avi18971911/augur-go/internal/example/handler"
	"github.com/Avi18971911/augur-go/internal/example/service"
	"github.com/Avi18971911/augur-go/pkg/integrations/httpserver"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"net/http"
)

// CreateRouter routes the account API. Every matched request runs inside its own isolation
// scope and http.server transaction.
func CreateRouter(
	accountService service.AccountService,
	middleware *httpserver.Handler,
	logger *logrus.Logger,
) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Middleware)
	r.Handle("/accounts/login", handler.AccountLoginHandler(accountService, logger)).Methods(http.MethodPost)
	return r
}
