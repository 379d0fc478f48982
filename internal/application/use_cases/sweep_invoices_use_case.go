package use_cases

import (
	"context"
	"sort"
	"strings"

	"invoicewallet/internal/application/dto"
	portsin "invoicewallet/internal/application/ports/in"
	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

type SweepInvoicesOptions struct {
	// NetworkTokens lists, per network, tokens swept from every wallet in addition to
	// the invoice tokens and the native asset.
	NetworkTokens      map[string][]string
	BalanceChunkSize   int
	BalanceConcurrency int
}

type sweepInvoicesUseCase struct {
	ledger        portsout.InvoiceLedger
	factory       portsout.WalletFactoryGateway
	transactions  portsout.SettlementTransactionLog
	tracker       *TransactionTracker
	balances      balanceFilter
	clock         Clock
	networkTokens map[string][]string
}

func NewSweepInvoicesUseCase(
	ledger portsout.InvoiceLedger,
	factory portsout.WalletFactoryGateway,
	transactions portsout.SettlementTransactionLog,
	tracker *TransactionTracker,
	clock Clock,
	options SweepInvoicesOptions,
) portsin.SweepInvoicesUseCase {
	if clock == nil {
		clock = NewSystemClock()
	}
	networkTokens := make(map[string][]string, len(options.NetworkTokens))
	for network, tokens := range options.NetworkTokens {
		networkTokens[strings.ToUpper(strings.TrimSpace(network))] = append([]string(nil), tokens...)
	}
	return &sweepInvoicesUseCase{
		ledger:        ledger,
		factory:       factory,
		transactions:  transactions,
		tracker:       tracker,
		balances:      newBalanceFilter(factory, options.BalanceChunkSize, options.BalanceConcurrency),
		clock:         clock,
		networkTokens: networkTokens,
	}
}

func (u *sweepInvoicesUseCase) GetInvoicesForSweep(
	ctx context.Context,
	command dto.SweepInvoicesCommand,
) (dto.InvoicesForSweepOutput, *apperrors.AppError) {
	if appErr := u.requireDependencies(false); appErr != nil {
		return dto.InvoicesForSweepOutput{}, appErr
	}
	network, appErr := valueobjects.NormalizeNetwork(command.Network)
	if appErr != nil {
		return dto.InvoicesForSweepOutput{}, appErr
	}
	if appErr := validateWindow(command.From, command.To); appErr != nil {
		return dto.InvoicesForSweepOutput{}, appErr
	}

	invoices, tokens, appErr := u.selectForSweep(ctx, network, command)
	if appErr != nil {
		return dto.InvoicesForSweepOutput{}, appErr
	}
	return dto.InvoicesForSweepOutput{Network: network, Invoices: invoices, Tokens: tokens}, nil
}

func (u *sweepInvoicesUseCase) Sweep(
	ctx context.Context,
	command dto.SweepInvoicesCommand,
) (dto.SweepInvoicesOutput, *apperrors.AppError) {
	if appErr := u.requireDependencies(true); appErr != nil {
		return dto.SweepInvoicesOutput{}, appErr
	}
	network, appErr := valueobjects.NormalizeNetwork(command.Network)
	if appErr != nil {
		return dto.SweepInvoicesOutput{}, appErr
	}
	if appErr := validateWindow(command.From, command.To); appErr != nil {
		return dto.SweepInvoicesOutput{}, appErr
	}

	output := dto.SweepInvoicesOutput{Network: network}
	resumed, appErr := u.resumePending(ctx, network)
	output.Resumed = resumed
	if appErr != nil {
		return output, appErr
	}

	invoices, tokens, appErr := u.selectForSweep(ctx, network, command)
	if appErr != nil {
		return output, appErr
	}
	output.Candidates = len(invoices)
	if len(invoices) == 0 {
		return output, nil
	}

	batch, appErr := u.buildBatch(ctx, network, invoices, tokens)
	if appErr != nil {
		return output, appErr
	}

	if len(batch.NeedsDeploy) > 0 {
		deployTxID, appErr := u.factory.MultiDeploy(ctx, network, batch.NeedsDeploySalts)
		if appErr != nil {
			return output, appErr
		}
		output.DeployTxID = deployTxID
		if _, appErr := u.recordAndTrack(ctx, dto.SettlementTransaction{
			TxID:      deployTxID,
			Network:   network,
			Kind:      dto.SettlementTransactionKindDeploy,
			Addresses: batch.NeedsDeploy,
		}); appErr != nil {
			return output, appErr
		}
		output.Deployed = len(batch.NeedsDeploy)
	}

	sweepTxID, appErr := u.factory.SweepMulti(ctx, network, batch.Tokens, batch.Addresses)
	if appErr != nil {
		return output, appErr
	}
	output.SweepTxID = sweepTxID
	if _, appErr := u.recordAndTrack(ctx, dto.SettlementTransaction{
		TxID:      sweepTxID,
		Network:   network,
		Kind:      dto.SettlementTransactionKindSweep,
		Addresses: batch.Addresses,
		Tokens:    batch.Tokens,
	}); appErr != nil {
		return output, appErr
	}

	swept, appErr := u.ledger.AppendSweepTx(ctx, batch.Addresses, sweepTxID)
	if appErr != nil {
		return output, appErr
	}
	output.Swept = swept
	return output, nil
}

// BulkSweepPaidWallets submits a sweep for explicit, already deployed wallets and logs
// it as submitted. The tx id reaches the invoices only once a later Sweep resumes the
// transaction and sees it succeed.
func (u *sweepInvoicesUseCase) BulkSweepPaidWallets(
	ctx context.Context,
	command dto.BulkSweepCommand,
) (dto.BulkSweepOutput, *apperrors.AppError) {
	if appErr := u.requireDependencies(false); appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	if u.transactions == nil {
		return dto.BulkSweepOutput{}, apperrors.NewInternal(
			"settlement_transaction_log_missing",
			"settlement transaction log is required",
			nil,
		)
	}
	network, appErr := valueobjects.NormalizeNetwork(command.Network)
	if appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	wallets, appErr := valueobjects.NormalizeEVMAddresses("wallets", command.Wallets)
	if appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	if len(wallets) == 0 {
		return dto.BulkSweepOutput{}, apperrors.NewValidation(
			"invalid_request",
			"at least one wallet is required",
			map[string]any{"field": "wallets"},
		)
	}
	tokens, appErr := valueobjects.NormalizeEVMAddresses("tokens", command.Tokens)
	if appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	if len(tokens) == 0 {
		tokens = u.sweepTokens(network, nil)
	}

	needsDeploy, appErr := u.factory.NeedsDeploy(ctx, network, wallets)
	if appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	undeployed := make([]string, 0)
	for index, wallet := range wallets {
		if index >= len(needsDeploy) || needsDeploy[index] {
			undeployed = append(undeployed, wallet)
		}
	}
	if len(undeployed) > 0 {
		return dto.BulkSweepOutput{}, apperrors.NewValidation(
			"wallets_not_deployed",
			"bulk sweep only accepts deployed wallets",
			map[string]any{"network": network, "wallets": undeployed},
		)
	}

	txID, appErr := u.factory.SweepMulti(ctx, network, tokens, wallets)
	if appErr != nil {
		return dto.BulkSweepOutput{}, appErr
	}
	if appErr := u.transactions.RecordSubmitted(ctx, dto.SettlementTransaction{
		TxID:        txID,
		Network:     network,
		Kind:        dto.SettlementTransactionKindSweep,
		Status:      valueobjects.TransactionStatusSubmitted,
		Addresses:   wallets,
		Tokens:      tokens,
		SubmittedAt: u.clock.NowUTC(),
		UpdatedAt:   u.clock.NowUTC(),
	}); appErr != nil {
		return dto.BulkSweepOutput{Network: network, TxID: txID}, appErr
	}
	return dto.BulkSweepOutput{Network: network, TxID: txID, Wallets: len(wallets)}, nil
}

// resumePending drives transactions left in flight by an earlier run to a terminal
// state. Terminal failures are already recorded in the log and do not block this run.
func (u *sweepInvoicesUseCase) resumePending(ctx context.Context, network string) (int, *apperrors.AppError) {
	pending, appErr := u.transactions.ListPending(ctx, network, []dto.SettlementTransactionKind{
		dto.SettlementTransactionKindDeploy,
		dto.SettlementTransactionKindSweep,
	})
	if appErr != nil {
		return 0, appErr
	}

	resumed := 0
	for _, transaction := range pending {
		status, trackErr := u.tracker.Track(ctx, dto.TrackTransactionCommand{
			Network:     network,
			TxID:        transaction.TxID,
			SubmittedAt: transaction.SubmittedAt,
		})
		if trackErr != nil && !status.IsTerminal() {
			return resumed, trackErr
		}
		resumed++
		if status != valueobjects.TransactionStatusSuccessful {
			continue
		}
		if transaction.Kind == dto.SettlementTransactionKindSweep && len(transaction.Addresses) > 0 {
			if _, appErr := u.ledger.AppendSweepTx(ctx, transaction.Addresses, transaction.TxID); appErr != nil {
				return resumed, appErr
			}
		}
	}
	return resumed, nil
}

func (u *sweepInvoicesUseCase) selectForSweep(
	ctx context.Context,
	network string,
	command dto.SweepInvoicesCommand,
) ([]entities.Invoice, []string, *apperrors.AppError) {
	settled, appErr := u.ledger.FindByTimeRange(ctx, dto.InvoiceRangeFilter{
		Network:     network,
		Disposition: dto.InvoiceDispositionSettled,
		From:        command.From.UTC(),
		To:          command.To.UTC(),
	})
	if appErr != nil {
		return nil, nil, appErr
	}
	settled = dedupeInvoices(settled)
	tokens := u.sweepTokens(network, settled)
	if len(settled) == 0 {
		return []entities.Invoice{}, tokens, nil
	}

	balances, appErr := u.balances.byAddress(ctx, network, settled, tokens)
	if appErr != nil {
		return nil, nil, appErr
	}

	withBalance := make([]entities.Invoice, 0, len(settled))
	for _, invoice := range settled {
		if _, exists := balances[invoice.Wallet.Address]; exists {
			withBalance = append(withBalance, invoice)
		}
	}
	return withBalance, tokens, nil
}

func (u *sweepInvoicesUseCase) buildBatch(
	ctx context.Context,
	network string,
	invoices []entities.Invoice,
	tokens []string,
) (dto.DeployAndSweepBatch, *apperrors.AppError) {
	batch := dto.DeployAndSweepBatch{
		Network:   network,
		Tokens:    tokens,
		Addresses: invoiceAddresses(invoices),
	}
	saltByAddress := make(map[string]string, len(invoices))
	for _, invoice := range invoices {
		if _, exists := saltByAddress[invoice.Wallet.Address]; !exists {
			saltByAddress[invoice.Wallet.Address] = invoice.Wallet.Salt
		}
	}

	needsDeploy, appErr := u.factory.NeedsDeploy(ctx, network, batch.Addresses)
	if appErr != nil {
		return dto.DeployAndSweepBatch{}, appErr
	}
	if len(needsDeploy) != len(batch.Addresses) {
		return dto.DeployAndSweepBatch{}, apperrors.NewInternal(
			"needs_deploy_length_mismatch",
			"needs deploy result does not match the queried addresses",
			map[string]any{"network": network, "addresses": len(batch.Addresses), "results": len(needsDeploy)},
		)
	}
	for index, address := range batch.Addresses {
		if needsDeploy[index] {
			batch.NeedsDeploy = append(batch.NeedsDeploy, address)
			batch.NeedsDeploySalts = append(batch.NeedsDeploySalts, saltByAddress[address])
			continue
		}
		batch.AlreadyDeployed = append(batch.AlreadyDeployed, address)
	}
	return batch, nil
}

func (u *sweepInvoicesUseCase) recordAndTrack(
	ctx context.Context,
	transaction dto.SettlementTransaction,
) (valueobjects.TransactionStatus, *apperrors.AppError) {
	now := u.clock.NowUTC()
	transaction.Status = valueobjects.TransactionStatusSubmitted
	transaction.SubmittedAt = now
	transaction.UpdatedAt = now
	if appErr := u.transactions.RecordSubmitted(ctx, transaction); appErr != nil {
		return valueobjects.TransactionStatusSubmitted, appErr
	}
	return u.tracker.Track(ctx, dto.TrackTransactionCommand{
		Network:     transaction.Network,
		TxID:        transaction.TxID,
		SubmittedAt: now,
	})
}

// sweepTokens is the configured token list, the invoice tokens and the native asset,
// deduplicated and sorted.
func (u *sweepInvoicesUseCase) sweepTokens(network string, invoices []entities.Invoice) []string {
	seen := map[string]struct{}{valueobjects.NativeToken: {}}
	for _, raw := range u.networkTokens[network] {
		if token, appErr := valueobjects.NormalizeToken(raw); appErr == nil {
			seen[token] = struct{}{}
		}
	}
	for _, token := range invoiceTokens(invoices) {
		seen[token] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func (u *sweepInvoicesUseCase) requireDependencies(tracking bool) *apperrors.AppError {
	if u.ledger == nil {
		return apperrors.NewInternal("invoice_ledger_missing", "invoice ledger is required", nil)
	}
	if u.factory == nil {
		return apperrors.NewInternal("wallet_factory_gateway_missing", "wallet factory gateway is required", nil)
	}
	if tracking && (u.transactions == nil || u.tracker == nil) {
		return apperrors.NewInternal(
			"settlement_tracking_missing",
			"settlement transaction log and tracker are required",
			nil,
		)
	}
	return nil
}

func dedupeInvoices(invoices []entities.Invoice) []entities.Invoice {
	out := make([]entities.Invoice, 0, len(invoices))
	seen := make(map[string]struct{}, len(invoices))
	for _, invoice := range invoices {
		if _, exists := seen[invoice.InvoiceID]; exists {
			continue
		}
		seen[invoice.InvoiceID] = struct{}{}
		out = append(out, invoice)
	}
	return out
}
