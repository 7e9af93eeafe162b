package engine

import (
	"fmt"

	"flash-trader/internal/identity"
)

// Purpose tags a value movement for the transfer service.
type Purpose string

const (
	PurposeReward       Purpose = "reward"
	PurposeLotteryBonus Purpose = "lottery_bonus"
	PurposeFlashLoan    Purpose = "flash_loan"
	PurposeBurn         Purpose = "burn"
)

// Transfer is a request for the value-transfer service. The engine computes
// amounts only; it never touches token balances.
type Transfer struct {
	Destination identity.Pubkey `json:"destination"`
	Amount      uint64          `json:"amount"`
	Purpose     Purpose         `json:"purpose"`
}

// FlashLoan builds the pool-to-borrower transfer. Same-transaction repayment is
// the borrower's execution environment's concern and is not checked here.
func FlashLoan(borrower identity.Pubkey, amount uint64) (Transfer, error) {
	if amount == 0 {
		return Transfer{}, fmt.Errorf("flash loan to %s: %w", borrower, ErrZeroAmount)
	}
	return Transfer{Destination: borrower, Amount: amount, Purpose: PurposeFlashLoan}, nil
}

// BuybackBurn builds a burn of amount out of vault.
func BuybackBurn(vault identity.Pubkey, amount uint64) (Transfer, error) {
	if amount == 0 {
		return Transfer{}, fmt.Errorf("burn from %s: %w", vault, ErrZeroAmount)
	}
	return Transfer{Destination: vault, Amount: amount, Purpose: PurposeBurn}, nil
}
