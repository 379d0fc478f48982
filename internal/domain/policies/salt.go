package policies

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	apperrors "invoicewallet/internal/shared_kernel/errors"

	"golang.org/x/crypto/sha3"
)

// SaltEncodingVersion identifies the byte layout hashed by DeriveSalt. Stored salts
// are only reproducible under the same version.
const SaltEncodingVersion = "v1"

// DeriveSalt hashes abi.encode(address token, uint256 bucket, bytes32 seed):
// three 32-byte words, the token left-padded and the bucket big-endian.
func DeriveSalt(token string, bucket int64, randomSeed string) (string, *apperrors.AppError) {
	if bucket < 0 {
		return "", apperrors.NewInternal(
			"salt_bucket_invalid",
			"time bucket must be non-negative",
			map[string]any{"bucket": bucket},
		)
	}

	tokenBytes, appErr := decodeHex("token", token, 20)
	if appErr != nil {
		return "", appErr
	}
	seedBytes, appErr := decodeHex("random_seed", randomSeed, 32)
	if appErr != nil {
		return "", appErr
	}

	encoded := make([]byte, 96)
	copy(encoded[12:32], tokenBytes)
	binary.BigEndian.PutUint64(encoded[56:64], uint64(bucket))
	copy(encoded[64:96], seedBytes)

	hash := sha3.NewLegacyKeccak256()
	_, _ = hash.Write(encoded)
	return "0x" + hex.EncodeToString(hash.Sum(nil)), nil
}

func decodeHex(field, raw string, size int) ([]byte, *apperrors.AppError) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != size {
		return nil, apperrors.NewValidation(
			"invalid_request",
			field+" has an invalid hex encoding",
			map[string]any{"field": field, "expected_bytes": size},
		)
	}
	return decoded, nil
}
