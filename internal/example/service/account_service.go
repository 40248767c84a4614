package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/augur-go/internal/example/repository"
	"github.com/Avi18971911/augur-go/internal/example/service/model"
	"github.com/Avi18971911/augur-go/pkg/augur"
	eventModel "github.com/Avi18971911/augur-go/pkg/event/model"
	"go.uber.org/zap"
	"time"
)

const loginTimeout = 5 * time.Second

type AccountService interface {
	Login(ctx context.Context, username string, password string) (*model.AccountDetailsOutput, error)
}

type AccountServiceImpl struct {
	ar     repository.AccountRepository
	logger *zap.Logger
}

func CreateNewAccountServiceImpl(
	ar repository.AccountRepository,
	logger *zap.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		ar:     ar,
		logger: logger,
	}
}

// Login checks the credentials and identifies the user on the request's isolation scope, so
// that later events of the request carry them.
func (a *AccountServiceImpl) Login(
	ctx context.Context,
	username string,
	password string,
) (*model.AccountDetailsOutput, error) {
	var accountDetails *model.AccountDetailsOutput
	err := augur.StartSpan(ctx, augur.SpanOptions{Name: "login", Op: "function"}, func(ctx context.Context, _ *augur.Span) error {
		a.logger.Info("Login request received", zap.String("username", username))
		getCtx, cancel := context.WithTimeout(ctx, loginTimeout)
		defer cancel()

		augur.AddBreadcrumb(ctx, &eventModel.Breadcrumb{
			Category: "auth",
			Message:  "Looking up account",
			Data:     map[string]interface{}{"username": username},
		})
		details, err := a.ar.GetAccountDetailsFromUsername(getCtx, username)
		if err != nil {
			if errors.Is(err, model.ErrNoMatchingUsername) {
				return model.ErrInvalidCredentials
			}
			return fmt.Errorf("unable to login with error: %w", err)
		}
		if details.Password != password {
			return model.ErrInvalidCredentials
		}
		augur.SetUser(ctx, eventModel.User{ID: details.Id, Username: details.Username})
		accountDetails = details
		return nil
	})
	if err != nil {
		a.logger.Error("Login failed", zap.String("username", username), zap.Error(err))
		return nil, err
	}
	a.logger.Info("Login successful", zap.String("username", username))
	return accountDetails, nil
}
