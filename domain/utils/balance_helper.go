package utils

import (
	"context"
	"fmt"

	"coinbet/domain/entities"
	"coinbet/domain/events"
	"coinbet/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordBalanceChange appends a ledger row and announces it on the event bus.
// Every balance movement goes through here.
func RecordBalanceChange(ctx context.Context, balanceHistoryRepo interfaces.BalanceHistoryRepository, eventPublisher interfaces.EventPublisher, history *entities.BalanceHistory) error {
	if err := history.ValidateTransaction(); err != nil {
		return fmt.Errorf("rejected ledger entry for user %d: %w", history.UserID, err)
	}
	if err := balanceHistoryRepo.Record(ctx, history); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	fields := log.Fields{
		"userID":   history.UserID,
		"txType":   history.TransactionType,
		"delta":    history.ChangeAmount,
		"balance":  history.BalanceAfter,
		"ledgerID": history.ID,
	}
	if history.RelatedType != nil && history.RelatedID != nil {
		fields[string(*history.RelatedType)+"ID"] = *history.RelatedID
	}
	log.WithFields(fields).Debug("Ledger entry recorded")

	for _, event := range ledgerEvents(history) {
		if err := eventPublisher.Publish(event); err != nil {
			log.WithError(err).WithField("eventType", event.Type()).Error("Failed to publish ledger event")
		}
	}
	return nil
}

// ledgerEvents lists what a ledger entry announces. Opening balances also announce the new account.
func ledgerEvents(history *entities.BalanceHistory) []events.Event {
	published := []events.Event{events.BalanceChangeEvent{
		UserID:          history.UserID,
		BalanceBefore:   history.BalanceBefore,
		BalanceAfter:    history.BalanceAfter,
		Delta:           history.ChangeAmount,
		TransactionType: history.TransactionType,
		RelatedType:     history.RelatedType,
		RelatedID:       history.RelatedID,
	}}

	if history.TransactionType != entities.TransactionTypeInitial {
		return published
	}
	username, ok := history.TransactionMetadata["username"].(string)
	if !ok {
		return published
	}
	return append(published, events.UserCreatedEvent{
		UserID:         history.UserID,
		Username:       username,
		InitialBalance: history.BalanceAfter,
	})
}
