package repository

import (
	"context"
	"github.com/Avi18971911/augur-go/internal/example/service/model"
)

type AccountRepository interface {
	GetAccountDetailsFromUsername(ctx context.Context, username string) (*model.AccountDetailsOutput, error)
}
