package evm

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultRPCTimeout = 15 * time.Second

type NetworkConfig struct {
	Network        string
	RPCURL         string
	WalletFactory  string
	HoldingWallet  string
	NativeSymbol   string
	NativeDecimals int
}

type Config struct {
	Networks   []NetworkConfig
	Signer     *ecdsa.PrivateKey
	RPCTimeout time.Duration
}

// Backend is the subset of ethclient.Client the gateway needs.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type networkClient struct {
	config  NetworkConfig
	backend Backend
	factory *bind.BoundContract
	holding *bind.BoundContract

	// submitMu serializes submissions so pending nonces are not reused.
	submitMu sync.Mutex
	chainMu  sync.Mutex
	chainID  *big.Int
}

type Gateway struct {
	networks   map[string]*networkClient
	signer     *ecdsa.PrivateKey
	rpcTimeout time.Duration
	metadata   sync.Map
	closers    []func()
	logger     *log.Logger
}

var _ portsout.ChainGateway = (*Gateway)(nil)

// Dial opens one RPC client per configured network.
func Dial(ctx context.Context, cfg Config, logger *log.Logger) (*Gateway, error) {
	backends := map[string]Backend{}
	closers := []func(){}
	for _, networkConfig := range cfg.Networks {
		network := strings.ToUpper(strings.TrimSpace(networkConfig.Network))
		client, err := ethclient.DialContext(ctx, networkConfig.RPCURL)
		if err != nil {
			for _, closeClient := range closers {
				closeClient()
			}
			return nil, fmt.Errorf("dial rpc for network %s: %w", network, err)
		}
		backends[network] = client
		closers = append(closers, client.Close)
	}

	gateway, err := NewGateway(cfg, backends, logger)
	if err != nil {
		for _, closeClient := range closers {
			closeClient()
		}
		return nil, err
	}
	gateway.closers = closers
	return gateway, nil
}

func NewGateway(cfg Config, backends map[string]Backend, logger *log.Logger) (*Gateway, error) {
	rpcTimeout := cfg.RPCTimeout
	if rpcTimeout <= 0 {
		rpcTimeout = defaultRPCTimeout
	}

	networks := map[string]*networkClient{}
	for _, networkConfig := range cfg.Networks {
		network := strings.ToUpper(strings.TrimSpace(networkConfig.Network))
		backend, exists := backends[network]
		if !exists || backend == nil {
			return nil, fmt.Errorf("no rpc backend for network %s", network)
		}
		if !common.IsHexAddress(networkConfig.WalletFactory) {
			return nil, fmt.Errorf("wallet factory address is invalid for network %s", network)
		}
		if networkConfig.NativeSymbol == "" {
			networkConfig.NativeSymbol = "ETH"
		}
		if networkConfig.NativeDecimals <= 0 {
			networkConfig.NativeDecimals = 18
		}

		client := &networkClient{
			config:  networkConfig,
			backend: backend,
			factory: bind.NewBoundContract(
				common.HexToAddress(networkConfig.WalletFactory),
				walletFactoryABI,
				backend,
				backend,
				backend,
			),
		}
		if common.IsHexAddress(networkConfig.HoldingWallet) {
			client.holding = bind.NewBoundContract(
				common.HexToAddress(networkConfig.HoldingWallet),
				holdingWalletABI,
				backend,
				backend,
				backend,
			)
		}
		networks[network] = client
	}

	return &Gateway{
		networks:   networks,
		signer:     cfg.Signer,
		rpcTimeout: rpcTimeout,
		logger:     logger,
	}, nil
}

func (g *Gateway) Close() {
	for _, closeClient := range g.closers {
		closeClient()
	}
}

func (g *Gateway) Implementation(ctx context.Context, network string) (string, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return "", appErr
	}

	out, appErr := g.call(ctx, client, client.factory, "implementation")
	if appErr != nil {
		return "", appErr
	}
	return addressString(out[0].(common.Address)), nil
}

func (g *Gateway) CounterfactualAddress(
	ctx context.Context,
	network string,
	implementation string,
	salt string,
) (string, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return "", appErr
	}
	implementationAddress, appErr := toAddress("implementation", implementation)
	if appErr != nil {
		return "", appErr
	}
	saltHash, appErr := toHash("salt", salt)
	if appErr != nil {
		return "", appErr
	}

	out, appErr := g.call(ctx, client, client.factory, "getAddress", implementationAddress, saltHash)
	if appErr != nil {
		return "", appErr
	}
	return addressString(out[0].(common.Address)), nil
}

func (g *Gateway) FilterWithBalance(
	ctx context.Context,
	network string,
	tokens []string,
	addresses []string,
) ([]dto.WalletBalance, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return nil, appErr
	}
	tokenAddresses, appErr := toAddresses("tokens", tokens)
	if appErr != nil {
		return nil, appErr
	}
	walletAddresses, appErr := toAddresses("addresses", addresses)
	if appErr != nil {
		return nil, appErr
	}

	out, appErr := g.call(ctx, client, client.factory, "filterWithBalance", tokenAddresses, walletAddresses)
	if appErr != nil {
		return nil, appErr
	}
	balances, err := decodeWalletBalances(out)
	if err != nil {
		return nil, apperrors.NewUnavailable(
			"chain_unavailable",
			"failed to decode wallet balances",
			map[string]any{"error": err.Error(), "network": client.config.Network},
		)
	}
	return balances, nil
}

func (g *Gateway) NeedsDeploy(ctx context.Context, network string, addresses []string) ([]bool, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return nil, appErr
	}
	walletAddresses, appErr := toAddresses("addresses", addresses)
	if appErr != nil {
		return nil, appErr
	}

	out, appErr := g.call(ctx, client, client.factory, "needsDeploy", walletAddresses)
	if appErr != nil {
		return nil, appErr
	}
	flags, ok := out[0].([]bool)
	if !ok {
		return nil, apperrors.NewUnavailable(
			"chain_unavailable",
			"unexpected needsDeploy result",
			map[string]any{"network": client.config.Network},
		)
	}
	return flags, nil
}

func (g *Gateway) MultiDeploy(ctx context.Context, network string, salts []string) (string, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return "", appErr
	}
	hashes := make([][32]byte, 0, len(salts))
	for _, salt := range salts {
		hash, appErr := toHash("salts", salt)
		if appErr != nil {
			return "", appErr
		}
		hashes = append(hashes, hash)
	}

	return g.transact(ctx, client, client.factory, "multiDeploy", hashes)
}

func (g *Gateway) SweepMulti(
	ctx context.Context,
	network string,
	tokens []string,
	addresses []string,
) (string, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return "", appErr
	}
	tokenAddresses, appErr := toAddresses("tokens", tokens)
	if appErr != nil {
		return "", appErr
	}
	walletAddresses, appErr := toAddresses("addresses", addresses)
	if appErr != nil {
		return "", appErr
	}

	return g.transact(ctx, client, client.factory, "sweepMulti", tokenAddresses, walletAddresses)
}

func (g *Gateway) IsPaid(ctx context.Context, network string, payID string) (bool, *apperrors.AppError) {
	client, appErr := g.holdingNetwork(network)
	if appErr != nil {
		return false, appErr
	}
	payHash, appErr := toHash("pay_id", payID)
	if appErr != nil {
		return false, appErr
	}

	out, appErr := g.call(ctx, client, client.holding, "isPaid", payHash)
	if appErr != nil {
		return false, appErr
	}
	return out[0].(bool), nil
}

func (g *Gateway) PayNative(
	ctx context.Context,
	network string,
	payID string,
	recipient string,
	amountRaw string,
) (string, *apperrors.AppError) {
	client, appErr := g.holdingNetwork(network)
	if appErr != nil {
		return "", appErr
	}
	payHash, recipientAddress, amount, appErr := payArguments(payID, recipient, amountRaw)
	if appErr != nil {
		return "", appErr
	}

	return g.transact(ctx, client, client.holding, "payETH", recipientAddress, amount, payHash)
}

func (g *Gateway) PayToken(
	ctx context.Context,
	network string,
	token string,
	payID string,
	recipient string,
	amountRaw string,
) (string, *apperrors.AppError) {
	client, appErr := g.holdingNetwork(network)
	if appErr != nil {
		return "", appErr
	}
	tokenAddress, appErr := toAddress("token", token)
	if appErr != nil {
		return "", appErr
	}
	payHash, recipientAddress, amount, appErr := payArguments(payID, recipient, amountRaw)
	if appErr != nil {
		return "", appErr
	}

	return g.transact(ctx, client, client.holding, "pay", tokenAddress, recipientAddress, amount, payHash)
}

func (g *Gateway) Available(ctx context.Context, network string, token string) (string, *apperrors.AppError) {
	client, appErr := g.holdingNetwork(network)
	if appErr != nil {
		return "", appErr
	}
	tokenAddress, appErr := toAddress("token", token)
	if appErr != nil {
		return "", appErr
	}

	out, appErr := g.call(ctx, client, client.holding, "available", tokenAddress)
	if appErr != nil {
		return "", appErr
	}
	return out[0].(*big.Int).String(), nil
}

// TransactionStatus reads the receipt. A missing receipt means the transaction is still pending;
// the caller owns the deadline.
func (g *Gateway) TransactionStatus(
	ctx context.Context,
	network string,
	txID string,
	_ time.Time,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return "", appErr
	}
	txHash, appErr := toHash("tx_id", txID)
	if appErr != nil {
		return "", appErr
	}

	callCtx, cancel := context.WithTimeout(ctx, g.rpcTimeout)
	defer cancel()

	receipt, err := client.backend.TransactionReceipt(callCtx, txHash)
	if stderrors.Is(err, ethereum.NotFound) {
		return valueobjects.TransactionStatusPending, nil
	}
	if err != nil {
		return "", chainError(client.config.Network, "eth_getTransactionReceipt", err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return valueobjects.TransactionStatusSuccessful, nil
	}
	return valueobjects.TransactionStatusFailed, nil
}

func (g *Gateway) TokenMetadata(ctx context.Context, network string, token string) (dto.TokenMetadata, *apperrors.AppError) {
	client, appErr := g.network(network)
	if appErr != nil {
		return dto.TokenMetadata{}, appErr
	}
	if valueobjects.IsNativeToken(token) {
		return dto.TokenMetadata{
			Symbol:   client.config.NativeSymbol,
			Decimals: client.config.NativeDecimals,
		}, nil
	}
	tokenAddress, appErr := toAddress("token", token)
	if appErr != nil {
		return dto.TokenMetadata{}, appErr
	}

	cacheKey := client.config.Network + ":" + addressString(tokenAddress)
	if cached, exists := g.metadata.Load(cacheKey); exists {
		return cached.(dto.TokenMetadata), nil
	}

	erc20 := bind.NewBoundContract(tokenAddress, erc20MetadataABI, client.backend, client.backend, client.backend)
	symbolOut, appErr := g.call(ctx, client, erc20, "symbol")
	if appErr != nil {
		return dto.TokenMetadata{}, appErr
	}
	decimalsOut, appErr := g.call(ctx, client, erc20, "decimals")
	if appErr != nil {
		return dto.TokenMetadata{}, appErr
	}

	metadata := dto.TokenMetadata{
		Symbol:   symbolOut[0].(string),
		Decimals: int(decimalsOut[0].(uint8)),
	}
	g.metadata.Store(cacheKey, metadata)
	return metadata, nil
}

func (g *Gateway) network(raw string) (*networkClient, *apperrors.AppError) {
	network := strings.ToUpper(strings.TrimSpace(raw))
	client, exists := g.networks[network]
	if !exists {
		return nil, apperrors.NewNotFound(
			"network_not_configured",
			"network is not configured",
			map[string]any{"network": network},
		)
	}
	return client, nil
}

func (g *Gateway) holdingNetwork(raw string) (*networkClient, *apperrors.AppError) {
	client, appErr := g.network(raw)
	if appErr != nil {
		return nil, appErr
	}
	if client.holding == nil {
		return nil, apperrors.NewNotFound(
			"holding_wallet_not_configured",
			"holding wallet is not configured for network",
			map[string]any{"network": client.config.Network},
		)
	}
	return client, nil
}

func (g *Gateway) call(
	ctx context.Context,
	client *networkClient,
	contract *bind.BoundContract,
	method string,
	args ...any,
) ([]any, *apperrors.AppError) {
	callCtx, cancel := context.WithTimeout(ctx, g.rpcTimeout)
	defer cancel()

	var out []any
	if err := contract.Call(&bind.CallOpts{Context: callCtx}, &out, method, args...); err != nil {
		return nil, chainError(client.config.Network, method, err)
	}
	if len(out) == 0 {
		return nil, chainError(client.config.Network, method, stderrors.New("empty result"))
	}
	return out, nil
}

func (g *Gateway) transact(
	ctx context.Context,
	client *networkClient,
	contract *bind.BoundContract,
	method string,
	args ...any,
) (string, *apperrors.AppError) {
	if g.signer == nil {
		return "", apperrors.NewInternal(
			"chain_signer_missing",
			"a signer is required to submit transactions",
			map[string]any{"network": client.config.Network, "method": method},
		)
	}

	client.submitMu.Lock()
	defer client.submitMu.Unlock()

	chainID, appErr := g.chainID(ctx, client)
	if appErr != nil {
		return "", appErr
	}
	opts, err := bind.NewKeyedTransactorWithChainID(g.signer, chainID)
	if err != nil {
		return "", apperrors.NewInternal(
			"chain_signer_invalid",
			"failed to build transactor",
			map[string]any{"error": err.Error(), "network": client.config.Network},
		)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.rpcTimeout)
	defer cancel()
	opts.Context = callCtx

	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		g.logf("transaction submission failed network=%s method=%s error=%v", client.config.Network, method, err)
		return "", chainError(client.config.Network, method, err)
	}

	txID := tx.Hash().Hex()
	g.logf("transaction submitted network=%s method=%s tx_id=%s nonce=%d", client.config.Network, method, txID, tx.Nonce())
	return txID, nil
}

func (g *Gateway) chainID(ctx context.Context, client *networkClient) (*big.Int, *apperrors.AppError) {
	client.chainMu.Lock()
	defer client.chainMu.Unlock()

	if client.chainID != nil {
		return client.chainID, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.rpcTimeout)
	defer cancel()

	chainID, err := client.backend.ChainID(callCtx)
	if err != nil {
		return nil, chainError(client.config.Network, "eth_chainId", err)
	}
	client.chainID = chainID
	return chainID, nil
}

func (g *Gateway) logf(format string, args ...any) {
	if g.logger == nil {
		return
	}
	g.logger.Printf(format, args...)
}

func decodeWalletBalances(out []any) ([]dto.WalletBalance, error) {
	if len(out) == 0 {
		return nil, stderrors.New("empty result")
	}
	converted, ok := abiConvertRows(out[0])
	if !ok {
		return nil, fmt.Errorf("unexpected filterWithBalance result %T", out[0])
	}

	balances := make([]dto.WalletBalance, 0, len(converted))
	for _, row := range converted {
		if len(row.Tokens) != len(row.Balances) {
			return nil, fmt.Errorf("wallet %s has %d tokens and %d balances", row.Wallet.Hex(), len(row.Tokens), len(row.Balances))
		}
		balance := dto.WalletBalance{
			Address:  addressString(row.Wallet),
			Tokens:   []string{},
			Balances: []string{},
		}
		for index, token := range row.Tokens {
			amount := row.Balances[index]
			if amount == nil || amount.Sign() <= 0 {
				continue
			}
			balance.Tokens = append(balance.Tokens, addressString(token))
			balance.Balances = append(balance.Balances, amount.String())
		}
		if len(balance.Tokens) == 0 {
			continue
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func payArguments(payID, recipient, amountRaw string) ([32]byte, common.Address, *big.Int, *apperrors.AppError) {
	payHash, appErr := toHash("pay_id", payID)
	if appErr != nil {
		return [32]byte{}, common.Address{}, nil, appErr
	}
	recipientAddress, appErr := toAddress("recipient", recipient)
	if appErr != nil {
		return [32]byte{}, common.Address{}, nil, appErr
	}
	amount, appErr := valueobjects.ParseAmountRaw(amountRaw)
	if appErr != nil {
		return [32]byte{}, common.Address{}, nil, appErr
	}
	return payHash, recipientAddress, amount, nil
}

func toAddress(field, raw string) (common.Address, *apperrors.AppError) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, apperrors.NewValidation(
			"invalid_request",
			field+" must be a 20-byte hex address",
			map[string]any{"field": field},
		)
	}
	return common.HexToAddress(trimmed), nil
}

func toAddresses(field string, raw []string) ([]common.Address, *apperrors.AppError) {
	out := make([]common.Address, 0, len(raw))
	for _, value := range raw {
		address, appErr := toAddress(field, value)
		if appErr != nil {
			return nil, appErr
		}
		out = append(out, address)
	}
	return out, nil
}

func toHash(field, raw string) ([32]byte, *apperrors.AppError) {
	normalized, appErr := valueobjects.NormalizeBytes32(field, raw)
	if appErr != nil {
		return [32]byte{}, appErr
	}
	return common.HexToHash(normalized), nil
}

func addressString(address common.Address) string {
	return strings.ToLower(address.Hex())
}

func chainError(network, method string, err error) *apperrors.AppError {
	return apperrors.NewUnavailable(
		"chain_unavailable",
		"chain call failed",
		map[string]any{"error": err.Error(), "method": method, "network": network},
	)
}
