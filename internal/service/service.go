package service

import (
	"context"
	"encoding/json"

	"finops-backend/internal/repository"
	ws "finops-backend/internal/websocket"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxSaveRetries bounds optimistic-lock retries on compound ledger writes
const maxSaveRetries = 3

// runWithRetry executes fn in a transaction, retrying when the budget
// aggregate's version check lost a concurrent race. Any other error
// surfaces immediately.
func runWithRetry(ctx context.Context, txManager repository.TransactionManager, fn func(txCtx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		err = txManager.RunInTx(ctx, fn)
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
	}
	return err
}

// parseActor converts an optional actor id string into a uuid pointer
func parseActor(actorID string) *uuid.UUID {
	if actorID == "" {
		return nil
	}
	parsed, err := uuid.Parse(actorID)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseRequiredAmount parses a decimal string field, rejecting missing,
// malformed and negative values.
func parseRequiredAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, &apperr.ValidationError{Field: field, Message: "amount is required"}
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &apperr.ValidationError{Field: field, Message: "invalid amount: " + value}
	}
	if amount.IsNegative() {
		return decimal.Zero, &apperr.ValidationError{Field: field, Message: "amount must not be negative"}
	}
	return amount, nil
}

// broadcast pushes a ledger event to connected websocket clients, if any
func broadcast(hub *ws.Hub, event string, data map[string]interface{}) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return
	}
	select {
	case hub.Broadcast <- payload:
	default: // no listener, drop
	}
}

// mustJSON serializes audit detail payloads; marshal errors are impossible
// for the map[string]interface{} inputs used here
func mustJSON(data map[string]interface{}) string {
	payload, _ := json.Marshal(data)
	return string(payload)
}
