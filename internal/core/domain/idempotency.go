package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the serialized result of an idempotent operation.
type IdempotencyLog struct {
	Key          string    `json:"key"`        // Format: "<operation>:[<wallet id>:]<caller key>"
	ResultRef    string    `json:"result_ref"` // id of the primary entry or transfer
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Operation namespaces idempotency keys so a reward reference can never
// collide with a transfer key.
type Operation string

const (
	OpReward   Operation = "reward"
	OpAdjust   Operation = "adjust"
	OpReset    Operation = "reset"
	OpTransfer Operation = "transfer"
	OpPurchase Operation = "purchase"
	OpRedeem   Operation = "redeem" // keyed by the token itself, never logged
)

// BuildIdempotencyKey constructs the standard key format. Caller keys are
// scoped to the wallet that owns the operation; uuid.Nil leaves the key
// global, which rewards use since their reference names an external event.
func BuildIdempotencyKey(op Operation, scope uuid.UUID, key string) string {
	if scope == uuid.Nil {
		return string(op) + ":" + key
	}
	return string(op) + ":" + scope.String() + ":" + key
}
