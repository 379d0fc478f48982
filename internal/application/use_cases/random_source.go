package use_cases

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomSource supplies the entropy behind invoice ids and wallet seeds.
type RandomSource interface {
	Bytes(size int) ([]byte, error)
}

type systemRandomSource struct{}

func NewSystemRandomSource() RandomSource {
	return systemRandomSource{}
}

func (systemRandomSource) Bytes(size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return out, nil
}

func randomHex32(source RandomSource) (string, error) {
	raw, err := source.Bytes(32)
	if err != nil {
		return "", err
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("random source returned %d bytes, want 32", len(raw))
	}
	return hex.EncodeToString(raw), nil
}
