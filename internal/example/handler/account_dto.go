package handler

import "time"

// AccountLoginRequestDTO represents the login credentials for an account
type AccountLoginRequestDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountDetailsResponseDTO represents the details of an account belonging to a customer
type AccountDetailsResponseDTO struct {
	Id                string                `json:"id"`
	Username          string                `json:"username"`
	Person            PersonDTO             `json:"person"`
	BankAccounts      []BankAccountDTO      `json:"bankAccounts"`
	KnownBankAccounts []KnownBankAccountDTO `json:"knownBankAccounts"`
	CreatedAt         time.Time             `json:"createdAt"`
}

// BankAccountDTO represents a bank account. Balances are valid to two decimal places.
type BankAccountDTO struct {
	Id               string `json:"id"`
	AccountNumber    string `json:"accountNumber"`
	AccountType      string `json:"accountType"`
	AvailableBalance string `json:"availableBalance"`
	PendingBalance   string `json:"pendingBalance"`
}

type KnownBankAccountDTO struct {
	Id            string `json:"id"`
	AccountNumber string `json:"accountNumber"`
	AccountHolder string `json:"accountHolder"`
	AccountType   string `json:"accountType"`
}

type PersonDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
