package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"invoicewallet/internal/application/dto"
)

func registerCommands(parser *flags.Parser, application *app) {
	commands := []struct {
		name        string
		short       string
		long        string
		implementer any
	}{
		{"new-invoice", "Create an invoice with a fresh deposit wallet", "", &newInvoiceCommand{app: application}},
		{"list", "List invoices created in a window (both ends inclusive)", "", &listCommand{app: application}},
		{"get", "Show invoices by id", "", &getCommand{app: application}},
		{"update-item", "Replace the opaque item stored on an invoice", "", &updateItemCommand{app: application}},
		{"check-payments", "Record payments and mark paid invoices without timing any out", "", &checkPaymentsCommand{app: application}},
		{"update-payments", "Record payments, mark paid invoices and time out expired ones", "", &updatePaymentsCommand{app: application}},
		{"for-sweep", "Show paid or timed-out invoices whose wallets still hold funds", "", &forSweepCommand{app: application}},
		{"sweep", "Deploy missing wallets and sweep a window into the holding wallet", "", &sweepCommand{app: application}},
		{"bulk-sweep", "Sweep explicit wallets without deploying", "", &bulkSweepCommand{app: application}},
		{"pay", "Pay out of the holding wallet once per pay id", "", &payCommand{app: application}},
		{"is-paid", "Check the holding wallet pay-id registry", "", &isPaidCommand{app: application}},
		{"liquidity", "Show the holding wallet balance for a currency", "", &liquidityCommand{app: application}},
		{"settle-payout", "Drive an invoice payout to completion, resubmitting failed attempts", "", &settlePayoutCommand{app: application}},
	}
	for _, command := range commands {
		long := command.long
		if long == "" {
			long = command.short
		}
		if _, err := parser.AddCommand(command.name, command.short, long, command.implementer); err != nil {
			panic(fmt.Sprintf("register command %s: %v", command.name, err))
		}
	}
}

type newInvoiceCommand struct {
	app *app

	Network string `long:"network" required:"true" description:"network name, for example ETHEREUM"`
	Token   string `long:"token" description:"token address; defaults to the native asset sentinel" default:"0x0000000000000000000000000000000000000001"`
	Amount  string `long:"amount" required:"true" description:"amount in base units"`
	Item    string `long:"item" description:"opaque JSON stored with the invoice"`
}

func (c *newInvoiceCommand) Execute(_ []string) error {
	item, err := jsonItem(c.Item)
	if err != nil {
		return err
	}
	container, err := c.app.use()
	if err != nil {
		return err
	}
	invoice, appErr := container.CreateInvoiceUseCase.Execute(c.app.ctx, dto.CreateInvoiceCommand{
		Network:   c.Network,
		Token:     c.Token,
		AmountRaw: c.Amount,
		Item:      item,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(invoice)
}

type listCommand struct {
	app *app
	window
}

func (c *listCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	from, to := c.bounds(time.Now())
	invoices, appErr := container.InvoiceQueriesUseCase.GetInvoices(c.app.ctx, dto.GetInvoicesQuery{From: from, To: to})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(invoices)
}

type getCommand struct {
	app *app

	Args struct {
		IDs []string `positional-arg-name:"invoice-id" required:"1"`
	} `positional-args:"yes"`
}

func (c *getCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	if len(c.Args.IDs) == 1 {
		invoice, appErr := container.InvoiceQueriesUseCase.GetInvoiceByID(c.app.ctx, c.Args.IDs[0])
		if appErr != nil {
			return commandError(appErr)
		}
		return c.app.print(invoice)
	}
	invoices, appErr := container.InvoiceQueriesUseCase.GetInvoicesByID(c.app.ctx, c.Args.IDs)
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(invoices)
}

type updateItemCommand struct {
	app *app

	InvoiceID string `long:"id" required:"true" description:"invoice id"`
	Item      string `long:"item" required:"true" description:"replacement JSON item"`
}

func (c *updateItemCommand) Execute(_ []string) error {
	item, err := jsonItem(c.Item)
	if err != nil {
		return err
	}
	container, err := c.app.use()
	if err != nil {
		return err
	}
	invoice, appErr := container.InvoiceQueriesUseCase.UpdateInvoiceItem(c.app.ctx, dto.UpdateInvoiceItemCommand{
		InvoiceID: c.InvoiceID,
		Item:      item,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(invoice)
}

type networkWindow struct {
	Network string `long:"network" required:"true" description:"network name"`
	window
}

type checkPaymentsCommand struct {
	app *app
	networkWindow
}

func (c *checkPaymentsCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	from, to := c.bounds(time.Now())
	output, appErr := container.ReconcileInvoicesUseCase.CheckPayments(c.app.ctx, dto.ReconcileInvoicesCommand{
		Network: c.Network,
		From:    from,
		To:      to,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type updatePaymentsCommand struct {
	app *app
	networkWindow
}

func (c *updatePaymentsCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	from, to := c.bounds(time.Now())
	output, appErr := container.ReconcileInvoicesUseCase.CheckAndUpdatePayments(c.app.ctx, dto.ReconcileInvoicesCommand{
		Network: c.Network,
		From:    from,
		To:      to,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type forSweepCommand struct {
	app *app
	networkWindow
}

func (c *forSweepCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	from, to := c.bounds(time.Now())
	output, appErr := container.SweepInvoicesUseCase.GetInvoicesForSweep(c.app.ctx, dto.SweepInvoicesCommand{
		Network: c.Network,
		From:    from,
		To:      to,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type sweepCommand struct {
	app *app
	networkWindow
}

func (c *sweepCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	from, to := c.bounds(time.Now())
	output, appErr := container.SweepInvoicesUseCase.Sweep(c.app.ctx, dto.SweepInvoicesCommand{
		Network: c.Network,
		From:    from,
		To:      to,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type bulkSweepCommand struct {
	app *app

	Network string   `long:"network" required:"true" description:"network name"`
	Wallets []string `long:"wallet" required:"true" description:"deployed wallet address (repeatable)"`
	Tokens  []string `long:"token" description:"token to sweep (repeatable); the native asset is always included"`
}

func (c *bulkSweepCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	output, appErr := container.SweepInvoicesUseCase.BulkSweepPaidWallets(c.app.ctx, dto.BulkSweepCommand{
		Network: c.Network,
		Wallets: c.Wallets,
		Tokens:  c.Tokens,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type payCommand struct {
	app *app

	Currency  string `long:"currency" required:"true" description:"NETWORK:token, a non-address token pays the native asset"`
	PayID     string `long:"pay-id" required:"true" description:"bytes32 pay id"`
	Recipient string `long:"recipient" required:"true" description:"recipient address"`
	Amount    string `long:"amount" required:"true" description:"amount in base units"`
}

func (c *payCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	output, appErr := container.DirectPaymentUseCase.Pay(c.app.ctx, dto.PayCommand{
		Currency:  c.Currency,
		PayID:     c.PayID,
		Recipient: c.Recipient,
		AmountRaw: c.Amount,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type isPaidCommand struct {
	app *app

	Network string `long:"network" required:"true" description:"network name"`
	PayID   string `long:"pay-id" required:"true" description:"bytes32 pay id"`
}

func (c *isPaidCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	paid, appErr := container.DirectPaymentUseCase.IsPaid(c.app.ctx, c.Network, c.PayID)
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(map[string]any{
		"network": strings.ToUpper(strings.TrimSpace(c.Network)),
		"payId":   c.PayID,
		"paid":    paid,
	})
}

type liquidityCommand struct {
	app *app

	Currency string `long:"currency" required:"true" description:"NETWORK:token"`
}

func (c *liquidityCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	output, appErr := container.DirectPaymentUseCase.Liquidity(c.app.ctx, c.Currency)
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

type settlePayoutCommand struct {
	app *app

	InvoiceID string `long:"invoice-id" required:"true" description:"invoice whose payout is settled; the pay id is 0x + invoice id"`
	Currency  string `long:"currency" required:"true" description:"NETWORK:token"`
	Recipient string `long:"recipient" required:"true" description:"recipient address"`
	Amount    string `long:"amount" required:"true" description:"amount in base units"`
}

func (c *settlePayoutCommand) Execute(_ []string) error {
	container, err := c.app.use()
	if err != nil {
		return err
	}
	output, appErr := container.SettlePayoutUseCase.Execute(c.app.ctx, dto.SettlePayoutCommand{
		InvoiceID: c.InvoiceID,
		Currency:  c.Currency,
		Recipient: c.Recipient,
		AmountRaw: c.Amount,
	})
	if appErr != nil {
		return commandError(appErr)
	}
	return c.app.print(output)
}

func jsonItem(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return nil, fmt.Errorf("item must be valid JSON")
	}
	return json.RawMessage(trimmed), nil
}
