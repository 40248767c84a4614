package model

import (
	"errors"
	"github.com/shopspring/decimal"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoMatchingUsername = errors.New("no account with the given username")
)

type BankAccountType string

const (
	Savings  BankAccountType = "savings"
	Checking BankAccountType = "checking"
)

type AccountDetailsOutput struct {
	Id                string
	Username          string
	Password          string
	Person            Person
	BankAccounts      []BankAccount
	KnownBankAccounts []KnownBankAccount
	CreatedAt         time.Time
}

type Person struct {
	FirstName string
	LastName  string
}

type BankAccount struct {
	Id               string
	AccountNumber    string
	AccountType      BankAccountType
	AvailableBalance decimal.Decimal
	PendingBalance   decimal.Decimal
}

type KnownBankAccount struct {
	Id            string
	AccountNumber string
	AccountHolder string
	AccountType   BankAccountType
}
