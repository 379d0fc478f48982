package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const walletFactoryABIJSON = `[
  {"type":"function","name":"implementation","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getAddress","stateMutability":"view","inputs":[{"name":"implementation","type":"address"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"filterWithBalance","stateMutability":"view","inputs":[{"name":"tokens","type":"address[]"},{"name":"wallets","type":"address[]"}],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"wallet","type":"address"},{"name":"tokens","type":"address[]"},{"name":"balances","type":"uint256[]"}]}]},
  {"type":"function","name":"needsDeploy","stateMutability":"view","inputs":[{"name":"wallets","type":"address[]"}],"outputs":[{"name":"","type":"bool[]"}]},
  {"type":"function","name":"multiDeploy","stateMutability":"nonpayable","inputs":[{"name":"salts","type":"bytes32[]"}],"outputs":[]},
  {"type":"function","name":"sweepMulti","stateMutability":"nonpayable","inputs":[{"name":"tokens","type":"address[]"},{"name":"wallets","type":"address[]"}],"outputs":[]}
]`

const holdingWalletABIJSON = `[
  {"type":"function","name":"isPaid","stateMutability":"view","inputs":[{"name":"payId","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"available","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"payETH","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"payId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"pay","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"},{"name":"payId","type":"bytes32"}],"outputs":[]}
]`

const erc20MetadataABIJSON = `[
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	walletFactoryABI = mustParseABI(walletFactoryABIJSON)
	holdingWalletABI = mustParseABI(holdingWalletABIJSON)
	erc20MetadataABI = mustParseABI(erc20MetadataABIJSON)
)

// walletBalanceRow mirrors the filterWithBalance tuple; field names must match the ABI components.
type walletBalanceRow struct {
	Wallet   common.Address
	Tokens   []common.Address
	Balances []*big.Int
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// abiConvertRows maps the anonymous tuple slice produced by the decoder onto walletBalanceRow.
func abiConvertRows(value any) (rows []walletBalanceRow, ok bool) {
	defer func() {
		if recover() != nil {
			rows, ok = nil, false
		}
	}()

	converted, isRows := abi.ConvertType(value, new([]walletBalanceRow)).(*[]walletBalanceRow)
	if !isRows {
		return nil, false
	}
	return *converted, true
}
