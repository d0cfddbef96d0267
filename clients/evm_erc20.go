package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20BalanceABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [
      { "name": "account", "type": "address" }
    ],
    "outputs": [
      { "name": "", "type": "uint256" }
    ]
  }
]
`

var _ BalanceReader = (*ERC20Reader)(nil)

// ERC20Reader reads ERC20 token balances through eth_call.
type ERC20Reader struct {
	caller ethereum.ContractCaller
	abi    abi.ABI
}

func NewERC20Reader(caller ethereum.ContractCaller) (*ERC20Reader, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &ERC20Reader{caller: caller, abi: parsed}, nil
}

// BalanceOf returns owner's balance of token in the token's smallest unit.
func (e *ERC20Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := e.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	out, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	values, err := e.abi.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf result length %d", len(values))
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}
