package use_cases

import (
	"context"

	portsout "invoicewallet/internal/application/ports/out"
	"invoicewallet/internal/domain/entities"
	"invoicewallet/internal/domain/policies"
	valueobjects "invoicewallet/internal/domain/value_objects"
	apperrors "invoicewallet/internal/shared_kernel/errors"
)

// WalletDeriver computes the counterfactual deposit wallet for a new invoice. No
// transaction is sent: the wallet contract is only deployed once funds must move.
type WalletDeriver struct {
	factory portsout.WalletFactoryGateway
	buckets policies.TimeBucketPolicy
	random  RandomSource
}

func NewWalletDeriver(
	factory portsout.WalletFactoryGateway,
	buckets policies.TimeBucketPolicy,
	random RandomSource,
) *WalletDeriver {
	return &WalletDeriver{
		factory: factory,
		buckets: policies.NewTimeBucketPolicy(buckets.Width, buckets.RepeatLen),
		random:  random,
	}
}

func (d *WalletDeriver) DeriveWallet(
	ctx context.Context,
	network string,
	token string,
	unixSeconds int64,
) (entities.WalletInstance, *apperrors.AppError) {
	if d.factory == nil {
		return entities.WalletInstance{}, apperrors.NewInternal(
			"wallet_factory_gateway_missing",
			"wallet factory gateway is required",
			nil,
		)
	}
	if d.random == nil {
		return entities.WalletInstance{}, apperrors.NewInternal(
			"random_source_missing",
			"random source is required",
			nil,
		)
	}

	normalizedNetwork, appErr := valueobjects.NormalizeNetwork(network)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}
	normalizedToken, appErr := valueobjects.NormalizeToken(token)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}

	bucket, withMargin := d.buckets.Buckets(unixSeconds)
	seed, err := randomHex32(d.random)
	if err != nil {
		return entities.WalletInstance{}, apperrors.NewInternal(
			"wallet_seed_generation_failed",
			"failed to generate wallet seed",
			map[string]any{"error": err.Error()},
		)
	}
	randomSeed := "0x" + seed

	salt, appErr := policies.DeriveSalt(normalizedToken, withMargin, randomSeed)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}

	implementation, appErr := d.factory.Implementation(ctx, normalizedNetwork)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}
	address, appErr := d.factory.CounterfactualAddress(ctx, normalizedNetwork, implementation, salt)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}
	canonical, appErr := valueobjects.NormalizeEVMAddress("wallet_address", address)
	if appErr != nil {
		return entities.WalletInstance{}, apperrors.NewInternal(
			"wallet_address_invalid",
			"wallet factory returned an invalid address",
			map[string]any{"network": normalizedNetwork, "address": address},
		)
	}
	display, appErr := valueobjects.ToEIP55Checksum(canonical)
	if appErr != nil {
		return entities.WalletInstance{}, appErr
	}

	return entities.WalletInstance{
		Network:              normalizedNetwork,
		Address:              canonical,
		AddressForDisplay:    display,
		Currency:             valueobjects.ToCurrency(normalizedNetwork, normalizedToken),
		TimeBucket:           bucket,
		TimeBucketWithMargin: withMargin,
		RandomSeed:           randomSeed,
		Salt:                 salt,
	}, nil
}
