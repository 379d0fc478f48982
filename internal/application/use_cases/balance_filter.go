package use_cases

import (
	"context"
	stderrors "errors"

	"invoicewallet/internal/application/dto"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBalanceChunkSize   = 200
	DefaultBalanceConcurrency = 4
)

// balanceFilter issues one FilterWithBalance call per address chunk and waits for all
// of them before returning, so callers never act on a partial view.
type balanceFilter struct {
	factory     portsout.WalletFactoryGateway
	chunkSize   int
	concurrency int
}

func newBalanceFilter(factory portsout.WalletFactoryGateway, chunkSize int, concurrency int) balanceFilter {
	if chunkSize <= 0 {
		chunkSize = DefaultBalanceChunkSize
	}
	if concurrency <= 0 {
		concurrency = DefaultBalanceConcurrency
	}
	return balanceFilter{factory: factory, chunkSize: chunkSize, concurrency: concurrency}
}

// byAddress returns the nonzero balances keyed by lower-case wallet address. When
// tokens is empty the distinct invoice tokens are queried.
func (f balanceFilter) byAddress(
	ctx context.Context,
	network string,
	invoices []entities.Invoice,
	tokens []string,
) (map[string]dto.WalletBalance, *apperrors.AppError) {
	out := map[string]dto.WalletBalance{}
	if len(invoices) == 0 {
		return out, nil
	}

	addresses := invoiceAddresses(invoices)
	if len(tokens) == 0 {
		tokens = invoiceTokens(invoices)
	}

	chunks := chunkStrings(addresses, f.chunkSize)
	results := make([][]dto.WalletBalance, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)
	for index, chunk := range chunks {
		group.Go(func() error {
			balances, appErr := f.factory.FilterWithBalance(groupCtx, network, tokens, chunk)
			if appErr != nil {
				return appErr
			}
			results[index] = balances
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		var appErr *apperrors.AppError
		if stderrors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.NewUnavailable(
			"chain_unavailable",
			"balance query failed",
			map[string]any{"network": network, "error": err.Error()},
		)
	}

	for _, balances := range results {
		for _, balance := range balances {
			if len(balance.Tokens) == 0 {
				continue
			}
			address, appErr := valueobjects.NormalizeEVMAddress("wallet_address", balance.Address)
			if appErr != nil {
				continue
			}
			out[address] = balance
		}
	}
	return out, nil
}

// tokenBalance returns the nonzero balance of token held by the wallet, if any.
func tokenBalance(balance dto.WalletBalance, token string) (string, bool) {
	for index, candidate := range balance.Tokens {
		if index >= len(balance.Balances) {
			break
		}
		normalized, appErr := valueobjects.NormalizeToken(candidate)
		if appErr != nil || normalized != token {
			continue
		}
		amount, appErr := valueobjects.ParseAmountRaw(balance.Balances[index])
		if appErr != nil || amount.Sign() == 0 {
			return "", false
		}
		return amount.String(), true
	}
	return "", false
}

func invoiceAddresses(invoices []entities.Invoice) []string {
	out := make([]string, 0, len(invoices))
	seen := make(map[string]struct{}, len(invoices))
	for _, invoice := range invoices {
		address := invoice.Wallet.Address
		if _, exists := seen[address]; exists || address == "" {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	return out
}

func invoiceTokens(invoices []entities.Invoice) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, invoice := range invoices {
		token := invoice.Wallet.Token()
		if _, exists := seen[token]; exists || token == "" {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func chunkStrings(values []string, size int) [][]string {
	if len(values) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
