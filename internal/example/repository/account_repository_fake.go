package repository

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/internal/example/service/model"
	"github.com/Avi18971911/augur-go/pkg/augur"
	eventModel "github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/shopspring/decimal"
	"time"
)

const (
	opQuery     = "db.query"
	systemFake  = "fake"
	collection  = "accounts"
	ollyAccount = "ollyAccountId1"
	hildaAccount = "hildaAccountId1"
)

var bobAccount = &model.AccountDetailsOutput{
	Id:       "bobAccountId",
	Username: "Bob",
	Password: "Barker",
	Person: model.Person{
		FirstName: "Bob",
		LastName:  "Barker",
	},
	BankAccounts: []model.BankAccount{
		{
			Id:               "bobAccountId1",
			AccountNumber:    "123-12345-1",
			AccountType:      model.Savings,
			AvailableBalance: decimal.RequireFromString("123.23"),
			PendingBalance:   decimal.Zero,
		},
	},
	KnownBankAccounts: []model.KnownBankAccount{
		{
			Id:            ollyAccount,
			AccountNumber: "123-12345-0",
			AccountHolder: "Olly OxenFree",
			AccountType:   model.Checking,
		},
		{
			Id:            hildaAccount,
			AccountNumber: "123-12345-2",
			AccountHolder: "Hilda Hill",
			AccountType:   model.Savings,
		},
	},
	CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

// FakeAccountRepository serves accounts from memory. Every lookup is traced as a db.query span.
type FakeAccountRepository struct {
	accounts map[string]*model.AccountDetailsOutput
}

func CreateNewFakeAccountRepository() *FakeAccountRepository {
	return &FakeAccountRepository{
		accounts: map[string]*model.AccountDetailsOutput{bobAccount.Username: bobAccount},
	}
}

func (ar *FakeAccountRepository) GetAccountDetailsFromUsername(
	ctx context.Context,
	username string,
) (*model.AccountDetailsOutput, error) {
	var result *model.AccountDetailsOutput
	err := augur.StartSpan(ctx, augur.SpanOptions{
		Name: fmt.Sprintf("find %s by username", collection),
		Op:   opQuery,
		Kind: augur.KindClient,
		Attributes: map[string]any{
			"db.system":          systemFake,
			"db.collection.name": collection,
		},
	}, func(ctx context.Context, span *augur.Span) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		account, ok := ar.accounts[username]
		if !ok {
			span.SetStatus(eventModel.NotFound)
			return model.ErrNoMatchingUsername
		}
		result = account
		return nil
	})
	return result, err
}
