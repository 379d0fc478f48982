package dto

// WalletBalance is one row of a batched balance query: only tokens with a nonzero
// balance are listed, Balances[i] belonging to Tokens[i].
type WalletBalance struct {
	Address  string
	Tokens   []string
	Balances []string
}

type TokenMetadata struct {
	Symbol   string
	Decimals int
}
