package decisions

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// idempotencyKeyVersion is baked into every key so a format change can never
// collide with keys minted under the old scheme
const idempotencyKeyVersion = "v1"

// DefaultKeyPurpose is used when the caller does not name a purpose
const DefaultKeyPurpose = "transfer.create"

// KeyFromSignal derives a deterministic fingerprint from the decision-relevant
// fields of a trigger signal. Identical logical requests always produce the
// same key; any field difference changes it. Callers use the key to dedupe
// repeated trigger events before they reach the orchestrator.
func KeyFromSignal(storeID, sku string, qty, horizonDays, safetyDays int, sourceHub, purpose string) string {
	if purpose == "" {
		purpose = DefaultKeyPurpose
	}

	canonical := strings.Join([]string{
		idempotencyKeyVersion,
		strings.TrimSpace(purpose),
		strings.TrimSpace(storeID),
		strings.TrimSpace(sku),
		fmt.Sprintf("%d", clampNonNegative(qty)),
		fmt.Sprintf("%d", clampNonNegative(horizonDays)),
		fmt.Sprintf("%d", clampNonNegative(safetyDays)),
		strings.TrimSpace(sourceHub),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
