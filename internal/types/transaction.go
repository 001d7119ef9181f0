package types

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrSelfTransfer   = errors.New("sender and receiver must differ")
)

type Transaction struct {
	SenderID   int
	ReceiverID int
	Amount     float64
}

func NewTransaction(senderID, receiverID int, amount float64) Transaction {
	return Transaction{SenderID: senderID, ReceiverID: receiverID, Amount: amount}
}

// Validate enforces the creation-time rules. The ledger does not call it;
// it only refuses amounts it cannot apply.
func (tx Transaction) Validate() error {
	if tx.Amount < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeAmount, tx.Amount)
	}
	if tx.SenderID == tx.ReceiverID {
		return fmt.Errorf("%w: %d", ErrSelfTransfer, tx.SenderID)
	}
	return nil
}

func (tx Transaction) String() string {
	return "Transaction from Node " + strconv.Itoa(tx.SenderID) +
		" to Node " + strconv.Itoa(tx.ReceiverID) +
		" of amount " + strconv.FormatFloat(tx.Amount, 'g', -1, 64)
}
