package chain

import (
	"encoding/hex"
	"slices"
	"strconv"

	"bftledger/internal/types"

	"golang.org/x/crypto/blake2b"
)

const GenesisPreviousHash = "0"

type Block struct {
	Index        int
	PreviousHash string
	Transactions []types.Transaction
	Hash         string
}

func NewBlock(index int, previousHash string, txs []types.Transaction) Block {
	b := Block{
		Index:        index,
		PreviousHash: previousHash,
		Transactions: slices.Clone(txs),
	}
	b.Hash = b.CalculateHash()
	return b
}

func Genesis() Block {
	return NewBlock(0, GenesisPreviousHash, nil)
}

// CalculateHash is a blake2b-256 content address over the index, the
// previous hash and every transaction in order.
func (b Block) CalculateHash() string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strconv.Itoa(b.Index)))
	h.Write([]byte(b.PreviousHash))
	for _, tx := range b.Transactions {
		h.Write([]byte(tx.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
