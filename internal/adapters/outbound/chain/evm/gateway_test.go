//go:build !integration

package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	valueobjects "invoicewallet/internal/domain/value_objects"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	testFactory = "0x00000000000000000000000000000000000000fa"
	testTxID    = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type fakeBackend struct {
	bind.ContractBackend
	receipt    *types.Receipt
	receiptErr error
	chainID    *big.Int
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return b.receipt, b.receiptErr
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return b.chainID, nil
}

func newTestGateway(t *testing.T, backend *fakeBackend) *Gateway {
	t.Helper()

	gateway, err := NewGateway(Config{
		Networks: []NetworkConfig{{Network: "sepolia", WalletFactory: testFactory}},
	}, map[string]Backend{"SEPOLIA": backend}, nil)
	if err != nil {
		t.Fatalf("expected gateway, got %v", err)
	}
	return gateway
}

func TestTransactionStatusFromReceipt(t *testing.T) {
	testCases := []struct {
		name     string
		backend  *fakeBackend
		expected valueobjects.TransactionStatus
	}{
		{
			name:     "missing receipt is pending",
			backend:  &fakeBackend{receiptErr: ethereum.NotFound},
			expected: valueobjects.TransactionStatusPending,
		},
		{
			name:     "status one is successful",
			backend:  &fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}},
			expected: valueobjects.TransactionStatusSuccessful,
		},
		{
			name:     "status zero is failed",
			backend:  &fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}},
			expected: valueobjects.TransactionStatusFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway := newTestGateway(t, tc.backend)
			status, appErr := gateway.TransactionStatus(context.Background(), "SEPOLIA", testTxID, time.Now())
			if appErr != nil {
				t.Fatalf("expected status, got %+v", appErr)
			}
			if status != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, status)
			}
		})
	}
}

func TestTransactionStatusMapsRPCErrorToUnavailable(t *testing.T) {
	gateway := newTestGateway(t, &fakeBackend{receiptErr: errors.New("connection refused")})

	_, appErr := gateway.TransactionStatus(context.Background(), "SEPOLIA", testTxID, time.Now())
	if appErr == nil || appErr.Code != "chain_unavailable" {
		t.Fatalf("expected chain_unavailable, got %+v", appErr)
	}
}

func TestGatewayRejectsUnknownNetwork(t *testing.T) {
	gateway := newTestGateway(t, &fakeBackend{})

	_, appErr := gateway.Implementation(context.Background(), "MAINNET")
	if appErr == nil || appErr.Code != "network_not_configured" {
		t.Fatalf("expected network_not_configured, got %+v", appErr)
	}
}

func TestHoldingCallsRequireHoldingWallet(t *testing.T) {
	gateway := newTestGateway(t, &fakeBackend{})

	_, appErr := gateway.IsPaid(context.Background(), "SEPOLIA", testTxID)
	if appErr == nil || appErr.Code != "holding_wallet_not_configured" {
		t.Fatalf("expected holding_wallet_not_configured, got %+v", appErr)
	}
}

func TestTransactRequiresSigner(t *testing.T) {
	gateway := newTestGateway(t, &fakeBackend{chainID: big.NewInt(11155111)})

	_, appErr := gateway.SweepMulti(
		context.Background(),
		"SEPOLIA",
		[]string{valueobjects.NativeToken},
		[]string{"0x2222222222222222222222222222222222222222"},
	)
	if appErr == nil || appErr.Code != "chain_signer_missing" {
		t.Fatalf("expected chain_signer_missing, got %+v", appErr)
	}
}

func TestTokenMetadataForNativeToken(t *testing.T) {
	gateway := newTestGateway(t, &fakeBackend{})

	metadata, appErr := gateway.TokenMetadata(context.Background(), "SEPOLIA", valueobjects.NativeToken)
	if appErr != nil {
		t.Fatalf("expected metadata, got %+v", appErr)
	}
	if metadata.Symbol != "ETH" || metadata.Decimals != 18 {
		t.Fatalf("expected ETH/18, got %s/%d", metadata.Symbol, metadata.Decimals)
	}
}

func TestDecodeWalletBalancesDropsZeroBalances(t *testing.T) {
	wallet := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")
	tokenA := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	empty := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	encoded, err := walletFactoryABI.Methods["filterWithBalance"].Outputs.Pack([]walletBalanceRow{
		{Wallet: wallet, Tokens: []common.Address{tokenA, tokenB}, Balances: []*big.Int{big.NewInt(500), big.NewInt(0)}},
		{Wallet: empty, Tokens: []common.Address{tokenA}, Balances: []*big.Int{big.NewInt(0)}},
	})
	if err != nil {
		t.Fatalf("failed to pack fixture: %v", err)
	}
	out, err := walletFactoryABI.Unpack("filterWithBalance", encoded)
	if err != nil {
		t.Fatalf("failed to unpack fixture: %v", err)
	}

	balances, err := decodeWalletBalances(out)
	if err != nil {
		t.Fatalf("expected decode success, got %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected one wallet with balance, got %d", len(balances))
	}
	if balances[0].Address != strings.ToLower(wallet.Hex()) {
		t.Fatalf("expected lower-case wallet address, got %s", balances[0].Address)
	}
	if len(balances[0].Tokens) != 1 || balances[0].Balances[0] != "500" {
		t.Fatalf("expected only the funded token, got %v %v", balances[0].Tokens, balances[0].Balances)
	}
}

func TestDecodeWalletBalancesRejectsUnexpectedShape(t *testing.T) {
	if _, err := decodeWalletBalances([]any{"nope"}); err == nil {
		t.Fatalf("expected error for unexpected shape")
	}
}
