package devtest

import (
	"context"
	"encoding/binary"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

const (
	defaultFactory        = "0x00000000000000000000000000000000000f4c70"
	defaultImplementation = "0x0000000000000000000000000000000000001e71"
	defaultNativeSymbol   = "ETH"
	defaultTokenSymbol    = "TKN"
	defaultDecimals       = 18
)

type Config struct {
	Networks       []string
	Factory        string
	Implementation string
	// Native is the native asset per network; missing entries fall back to ETH/18.
	Native         map[string]dto.TokenMetadata
	Tokens         map[string]dto.TokenMetadata
}

type networkState struct {
	native   dto.TokenMetadata
	balances map[string]map[string]*big.Int
	deployed map[string]bool
	paid     map[string]bool
	holding  map[string]*big.Int
}

// Gateway simulates the wallet factory and holding wallet in memory. Every submitted
// transaction is mined immediately; a transaction whose contract call would revert is
// recorded as failed.
type Gateway struct {
	mu             sync.Mutex
	factory        []byte
	implementation string
	tokens         map[string]dto.TokenMetadata
	networks       map[string]*networkState
	statuses       map[string]valueobjects.TransactionStatus
	sequence       uint64
	logger         *log.Logger
}

var _ portsout.ChainGateway = (*Gateway)(nil)

func NewGateway(cfg Config, logger *log.Logger) *Gateway {
	factory := strings.ToLower(strings.TrimSpace(cfg.Factory))
	if factory == "" {
		factory = defaultFactory
	}
	factoryBytes, _ := decodeHex(factory)
	implementation := strings.ToLower(strings.TrimSpace(cfg.Implementation))
	if implementation == "" {
		implementation = defaultImplementation
	}
	tokens := map[string]dto.TokenMetadata{}
	for token, metadata := range cfg.Tokens {
		tokens[strings.ToLower(strings.TrimSpace(token))] = metadata
	}

	native := map[string]dto.TokenMetadata{}
	for network, metadata := range cfg.Native {
		native[strings.ToUpper(strings.TrimSpace(network))] = metadata
	}
	networks := map[string]*networkState{}
	for _, network := range cfg.Networks {
		name := strings.ToUpper(strings.TrimSpace(network))
		networks[name] = newNetworkState(native[name])
	}

	return &Gateway{
		factory:        factoryBytes,
		implementation: implementation,
		tokens:         tokens,
		networks:       networks,
		statuses:       map[string]valueobjects.TransactionStatus{},
		logger:         logger,
	}
}

func newNetworkState(native dto.TokenMetadata) *networkState {
	native.Symbol = strings.TrimSpace(native.Symbol)
	if native.Symbol == "" {
		native.Symbol = defaultNativeSymbol
	}
	if native.Decimals <= 0 {
		native.Decimals = defaultDecimals
	}
	return &networkState{
		native:   native,
		balances: map[string]map[string]*big.Int{},
		deployed: map[string]bool{},
		paid:     map[string]bool{},
		holding:  map[string]*big.Int{},
	}
}

// Fund credits a deposit wallet, as a customer transfer would.
func (g *Gateway) Fund(network string, address string, token string, amountRaw string) *apperrors.AppError {
	amount, appErr := valueobjects.ParseAmountRaw(amountRaw)
	if appErr != nil {
		return appErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return appErr
	}
	wallet := strings.ToLower(address)
	if state.balances[wallet] == nil {
		state.balances[wallet] = map[string]*big.Int{}
	}
	addTo(state.balances[wallet], strings.ToLower(token), amount)
	return nil
}

// Deposit credits the holding wallet directly.
func (g *Gateway) Deposit(network string, token string, amountRaw string) *apperrors.AppError {
	amount, appErr := valueobjects.ParseAmountRaw(amountRaw)
	if appErr != nil {
		return appErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return appErr
	}
	addTo(state.holding, strings.ToLower(token), amount)
	return nil
}

func (g *Gateway) Implementation(_ context.Context, network string) (string, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, appErr := g.state(network); appErr != nil {
		return "", appErr
	}
	return g.implementation, nil
}

func (g *Gateway) CounterfactualAddress(
	_ context.Context,
	network string,
	implementation string,
	salt string,
) (string, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, appErr := g.state(network); appErr != nil {
		return "", appErr
	}
	return g.addressFor(implementation, salt)
}

func (g *Gateway) FilterWithBalance(
	_ context.Context,
	network string,
	tokens []string,
	addresses []string,
) ([]dto.WalletBalance, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return nil, appErr
	}

	out := []dto.WalletBalance{}
	for _, address := range addresses {
		wallet := strings.ToLower(address)
		row := dto.WalletBalance{Address: wallet, Tokens: []string{}, Balances: []string{}}
		for _, token := range tokens {
			amount := state.balances[wallet][strings.ToLower(token)]
			if amount == nil || amount.Sign() <= 0 {
				continue
			}
			row.Tokens = append(row.Tokens, strings.ToLower(token))
			row.Balances = append(row.Balances, amount.String())
		}
		if len(row.Tokens) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (g *Gateway) NeedsDeploy(_ context.Context, network string, addresses []string) ([]bool, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return nil, appErr
	}
	out := make([]bool, 0, len(addresses))
	for _, address := range addresses {
		out = append(out, !state.deployed[strings.ToLower(address)])
	}
	return out, nil
}

func (g *Gateway) MultiDeploy(_ context.Context, network string, salts []string) (string, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return "", appErr
	}
	addresses := make([]string, 0, len(salts))
	for _, salt := range salts {
		address, appErr := g.addressFor(g.implementation, salt)
		if appErr != nil {
			return "", appErr
		}
		addresses = append(addresses, address)
	}

	for _, address := range addresses {
		state.deployed[address] = true
	}
	return g.mine(network, "multiDeploy", valueobjects.TransactionStatusSuccessful), nil
}

// SweepMulti reverts when any wallet is still undeployed, as the contract would.
func (g *Gateway) SweepMulti(
	_ context.Context,
	network string,
	tokens []string,
	addresses []string,
) (string, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return "", appErr
	}
	for _, address := range addresses {
		if !state.deployed[strings.ToLower(address)] {
			return g.mine(network, "sweepMulti", valueobjects.TransactionStatusFailed), nil
		}
	}

	for _, address := range addresses {
		wallet := strings.ToLower(address)
		for _, token := range tokens {
			key := strings.ToLower(token)
			amount := state.balances[wallet][key]
			if amount == nil || amount.Sign() <= 0 {
				continue
			}
			addTo(state.holding, key, amount)
			delete(state.balances[wallet], key)
		}
	}
	return g.mine(network, "sweepMulti", valueobjects.TransactionStatusSuccessful), nil
}

func (g *Gateway) IsPaid(_ context.Context, network string, payID string) (bool, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return false, appErr
	}
	return state.paid[strings.ToLower(payID)], nil
}

func (g *Gateway) PayNative(
	ctx context.Context,
	network string,
	payID string,
	recipient string,
	amountRaw string,
) (string, *apperrors.AppError) {
	return g.pay(ctx, network, valueobjects.NativeToken, payID, recipient, amountRaw)
}

func (g *Gateway) PayToken(
	ctx context.Context,
	network string,
	token string,
	payID string,
	recipient string,
	amountRaw string,
) (string, *apperrors.AppError) {
	return g.pay(ctx, network, token, payID, recipient, amountRaw)
}

func (g *Gateway) Available(_ context.Context, network string, token string) (string, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return "", appErr
	}
	amount := state.holding[strings.ToLower(token)]
	if amount == nil {
		return "0", nil
	}
	return amount.String(), nil
}

// TransactionStatus treats unknown transactions as pending, like a missing receipt.
func (g *Gateway) TransactionStatus(
	_ context.Context,
	network string,
	txID string,
	_ time.Time,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, appErr := g.state(network); appErr != nil {
		return "", appErr
	}
	status, exists := g.statuses[strings.ToLower(txID)]
	if !exists {
		return valueobjects.TransactionStatusPending, nil
	}
	return status, nil
}

func (g *Gateway) TokenMetadata(_ context.Context, network string, token string) (dto.TokenMetadata, *apperrors.AppError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return dto.TokenMetadata{}, appErr
	}
	if valueobjects.IsNativeToken(token) {
		return state.native, nil
	}
	if metadata, exists := g.tokens[strings.ToLower(token)]; exists {
		return metadata, nil
	}
	return dto.TokenMetadata{Symbol: defaultTokenSymbol, Decimals: defaultDecimals}, nil
}

func (g *Gateway) pay(
	_ context.Context,
	network string,
	token string,
	payID string,
	recipient string,
	amountRaw string,
) (string, *apperrors.AppError) {
	amount, appErr := valueobjects.ParseAmountRaw(amountRaw)
	if appErr != nil {
		return "", appErr
	}
	if _, appErr := valueobjects.NormalizeEVMAddress("recipient", recipient); appErr != nil {
		return "", appErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	state, appErr := g.state(network)
	if appErr != nil {
		return "", appErr
	}
	key := strings.ToLower(payID)
	available := state.holding[strings.ToLower(token)]
	if state.paid[key] || available == nil || available.Cmp(amount) < 0 {
		return g.mine(network, "pay", valueobjects.TransactionStatusFailed), nil
	}

	available.Sub(available, amount)
	state.paid[key] = true
	return g.mine(network, "pay", valueobjects.TransactionStatusSuccessful), nil
}

func (g *Gateway) state(network string) (*networkState, *apperrors.AppError) {
	normalized := strings.ToUpper(strings.TrimSpace(network))
	state, exists := g.networks[normalized]
	if !exists {
		return nil, apperrors.NewNotFound(
			"network_not_configured",
			"network is not configured",
			map[string]any{"network": normalized},
		)
	}
	return state, nil
}

func (g *Gateway) addressFor(implementation string, salt string) (string, *apperrors.AppError) {
	implementationBytes, ok := decodeHex(implementation)
	if !ok || len(implementationBytes) != 20 {
		return "", apperrors.NewValidation(
			"invalid_request",
			"implementation must be a 20-byte hex address",
			map[string]any{"field": "implementation"},
		)
	}
	normalizedSalt, appErr := valueobjects.NormalizeBytes32("salt", salt)
	if appErr != nil {
		return "", appErr
	}
	saltBytes, _ := decodeHex(normalizedSalt)

	return encodeHex(create2Address(g.factory, saltBytes, keccak256(cloneInitCode(implementationBytes)))), nil
}

// mine must be called with g.mu held.
func (g *Gateway) mine(network string, method string, status valueobjects.TransactionStatus) string {
	g.sequence++
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, g.sequence)
	txID := encodeHex(keccak256([]byte(strings.ToUpper(network)), []byte(method), seed))
	g.statuses[txID] = status

	if g.logger != nil {
		g.logger.Printf("devtest transaction mined network=%s method=%s tx_id=%s status=%s", network, method, txID, status)
	}
	return txID
}

func addTo(balances map[string]*big.Int, token string, amount *big.Int) {
	current := balances[token]
	if current == nil {
		current = new(big.Int)
		balances[token] = current
	}
	current.Add(current, amount)
}
