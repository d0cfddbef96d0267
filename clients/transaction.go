package clients

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// PreparedCall is the part of a prepared payment transaction the wallet resubmits.
// Nonce and fees are chosen by the wallet at send time.
type PreparedCall struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// The checkout API serializes payment transactions unsigned, so the signature
// fields may be absent.
type preparedLegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address `rlp:"nil"`
	Value    *big.Int
	Data     []byte
	V        *big.Int `rlp:"optional"`
	R        *big.Int `rlp:"optional"`
	S        *big.Int `rlp:"optional"`
}

type preparedAccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList gethtypes.AccessList
	V          *big.Int `rlp:"optional"`
	R          *big.Int `rlp:"optional"`
	S          *big.Int `rlp:"optional"`
}

type preparedDynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *common.Address `rlp:"nil"`
	Value      *big.Int
	Data       []byte
	AccessList gethtypes.AccessList
	V          *big.Int `rlp:"optional"`
	R          *big.Int `rlp:"optional"`
	S          *big.Int `rlp:"optional"`
}

// DecodePreparedTransaction decodes a 0x-prefixed serialized transaction,
// signed or unsigned, legacy or typed (EIP-2930, EIP-1559).
func DecodePreparedTransaction(serialized string) (*PreparedCall, error) {
	raw, err := hexutil.Decode(serialized)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hex: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty transaction")
	}

	var (
		to    *common.Address
		value *big.Int
		data  []byte
	)

	switch {
	case raw[0] >= 0xc0:
		var tx preparedLegacyTx
		if err := rlp.DecodeBytes(raw, &tx); err != nil {
			return nil, fmt.Errorf("invalid legacy transaction: %w", err)
		}
		to, value, data = tx.To, tx.Value, tx.Data
	case raw[0] == gethtypes.AccessListTxType:
		var tx preparedAccessListTx
		if err := rlp.DecodeBytes(raw[1:], &tx); err != nil {
			return nil, fmt.Errorf("invalid access list transaction: %w", err)
		}
		to, value, data = tx.To, tx.Value, tx.Data
	case raw[0] == gethtypes.DynamicFeeTxType:
		var tx preparedDynamicFeeTx
		if err := rlp.DecodeBytes(raw[1:], &tx); err != nil {
			return nil, fmt.Errorf("invalid dynamic fee transaction: %w", err)
		}
		to, value, data = tx.To, tx.Value, tx.Data
	default:
		return nil, fmt.Errorf("unsupported transaction type 0x%02x", raw[0])
	}

	if to == nil {
		return nil, errors.New("payment transaction has no recipient")
	}
	if value == nil {
		value = new(big.Int)
	}

	return &PreparedCall{To: *to, Value: value, Data: data}, nil
}
