package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	_ Wallet        = (*EVMWallet)(nil)
	_ BalanceReader = (*EVMWallet)(nil)
)

// Backend is the subset of an Ethereum RPC client the wallet needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ChainIDReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.PendingStateReader
	ethereum.TransactionSender
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// EVMWallet signs and submits EIP-1559 transactions from a single private key.
type EVMWallet struct {
	backend    Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	signer     gethtypes.Signer
	erc20      *ERC20Reader
}

// InitWallet dials rpcURL and returns a wallet for privateKeyHex on chainID.
func InitWallet(ctx context.Context, privateKeyHex, rpcURL string, chainID *big.Int) (*EVMWallet, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	w, err := NewEVMWallet(ctx, client, privateKeyHex, chainID)
	if err != nil {
		client.Close()
		return nil, err
	}
	return w, nil
}

// NewEVMWallet creates a wallet on an existing backend. The backend must report chainID.
func NewEVMWallet(ctx context.Context, backend Backend, privateKeyHex string, chainID *big.Int) (*EVMWallet, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	remoteID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	if chainID == nil || remoteID.Cmp(chainID) != 0 {
		return nil, fmt.Errorf("chain id mismatch: rpc reports %v, expected %v", remoteID, chainID)
	}

	erc20, err := NewERC20Reader(backend)
	if err != nil {
		return nil, err
	}

	return &EVMWallet{
		backend:    backend,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    new(big.Int).Set(chainID),
		signer:     gethtypes.LatestSignerForChainID(chainID),
		erc20:      erc20,
	}, nil
}

func (w *EVMWallet) Address() common.Address {
	return w.address
}

func (w *EVMWallet) ChainID() *big.Int {
	return new(big.Int).Set(w.chainID)
}

// SendTransaction signs a dynamic fee transaction calling to with value and data,
// submits it, and returns its hash without waiting for inclusion.
func (w *EVMWallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	tipCap, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}

	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}

	// feeCap = tip + 2*baseFee, so the tx survives a few base fee increases
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	signed, err := gethtypes.SignTx(tx, w.signer, w.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return signed.Hash(), nil
}

// BalanceOf implements BalanceReader on the wallet's backend.
func (w *EVMWallet) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return w.erc20.BalanceOf(ctx, token, owner)
}

// Close closes the RPC connection if the backend holds one.
func (w *EVMWallet) Close() {
	if c, ok := w.backend.(interface{ Close() }); ok {
		c.Close()
	}
}
