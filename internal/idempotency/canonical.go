package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gw-fraud-scoring/internal/models"
)

// RequestHash returns the sha256 hex digest of the normalized request body.
// encoding/json sorts map keys, so round-tripping through a generic map yields
// a canonical form with keys sorted at every level. Numbers are kept as their
// literal text so large metadata integers do not collapse into one float64.
func RequestHash(req models.TransactionRequest) (string, error) {
	canonical, err := Canonicalize(req.Normalize())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("idempotency.Canonicalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("idempotency.Canonicalize: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("idempotency.Canonicalize: %w", err)
	}
	return out, nil
}
