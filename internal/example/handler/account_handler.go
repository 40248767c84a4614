package handler

import (
	"encoding/json"
	"errors"
	"github.com/Avi18971911/augur-go/internal/example/service"
	"github.com/Avi18971911/augur-go/internal/example/service/model"
	"github.com/sirupsen/logrus"
	"io"
	"net/http"
)

// AccountLoginHandler logs in a user with the provided username and password. Failures are
// logged with the request context so that the console capture hook reports them on the
// request's scope.
func AccountLoginHandler(
	s service.AccountService,
	logger *logrus.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.WithContext(r.Context())
		log.Debugf("Login request received with URL %s and method %s", r.URL.Path, r.Method)

		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				log.Errorf("Error encountered when closing request body %v", err)
			}
		}(r.Body)

		var req AccountLoginRequestDTO
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.WithError(err).Warn("Error encountered when decoding request body")
			HttpError(w, "Invalid request payload", http.StatusBadRequest, log)
			return
		}

		accountDetails, err := s.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, model.ErrInvalidCredentials) {
				log.Warnf("Invalid credentials for login request with username: %s", req.Username)
				HttpError(w, "Invalid credentials", http.StatusUnauthorized, log)
				return
			}
			log.WithError(err).Error("Error encountered during login")
			HttpError(w, "Error encountered during login", http.StatusInternalServerError, log)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(accountDetailsToDTO(accountDetails))
		if err != nil {
			log.WithError(err).Error("Error encountered during JSON Encoding of Response")
			HttpError(
				w,
				"Error encountered during JSON Encoding of Response",
				http.StatusInternalServerError,
				log,
			)
			return
		}
		log.Debugf("Login request successful with username: %s", req.Username)
	}
}
