package handler

import (
	"github.com/Avi18971911/augur-go/internal/example/service/model"
)

func accountDetailsToDTO(tx *model.AccountDetailsOutput) AccountDetailsResponseDTO {
	return AccountDetailsResponseDTO{
		Id:       tx.Id,
		Username: tx.Username,
		Person: PersonDTO{
			FirstName: tx.Person.FirstName,
			LastName:  tx.Person.LastName,
		},
		BankAccounts:      accountsToDTO(tx.BankAccounts),
		KnownBankAccounts: knownAccountToDTO(tx.KnownBankAccounts),
		CreatedAt:         tx.CreatedAt,
	}
}

func knownAccountToDTO(tx []model.KnownBankAccount) []KnownBankAccountDTO {
	knownAccountDTOList := make([]KnownBankAccountDTO, len(tx))
	for i, element := range tx {
		knownAccountDTOList[i] = KnownBankAccountDTO{
			Id:            element.Id,
			AccountNumber: element.AccountNumber,
			AccountHolder: element.AccountHolder,
			AccountType:   string(element.AccountType),
		}
	}
	return knownAccountDTOList
}

func accountsToDTO(tx []model.BankAccount) []BankAccountDTO {
	accountDTOList := make([]BankAccountDTO, len(tx))
	for i, element := range tx {
		accountDTOList[i] = BankAccountDTO{
			Id:               element.Id,
			AccountNumber:    element.AccountNumber,
			AccountType:      string(element.AccountType),
			PendingBalance:   element.PendingBalance.StringFixed(2),
			AvailableBalance: element.AvailableBalance.StringFixed(2),
		}
	}
	return accountDTOList
}
