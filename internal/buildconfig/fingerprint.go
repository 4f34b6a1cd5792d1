package buildconfig

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// Fingerprint identifies a composed configuration. encoding/json writes map
// keys sorted and the ordered sections marshal in their declared order, so
// equal configurations always hash the same.
func Fingerprint(cfg Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	sum := sha256.Sum256(data)
	return base58.Encode(sum[:]), nil
}
