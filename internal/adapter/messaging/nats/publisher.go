package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"point-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// EntryEvent is the message body published for each committed ledger entry.
type EntryEvent struct {
	EntryID      int64            `json:"entry_id"`
	WalletID     uuid.UUID        `json:"wallet_id"`
	Direction    domain.Direction `json:"direction"`
	Amount       int64            `json:"amount"`
	Kind         domain.EntryKind `json:"kind"`
	Reference    string           `json:"reference"`
	BalanceAfter int64            `json:"balance_after"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Publisher implements ports.EventPublisher on a NATS subject.
type Publisher struct {
	conn    Conn
	subject string
	log     zerolog.Logger
}

// Connect dials the NATS server. An empty url returns nil, nil so callers
// can run without a broker.
func Connect(url string, log zerolog.Logger) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}
	nc, err := nats.Connect(url,
		nats.Name("point-ledger"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrlRedacted()).Msg("NATS connection established")
	return nc, nil
}

// NewPublisher creates a Publisher on subject.
func NewPublisher(conn Conn, subject string, log zerolog.Logger) *Publisher {
	return &Publisher{conn: conn, subject: subject, log: log}
}

// PublishEntries sends one message per entry, in order. It stops at the
// first failure.
func (p *Publisher) PublishEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(EntryEvent{
			EntryID:      e.ID,
			WalletID:     e.WalletID,
			Direction:    e.Direction,
			Amount:       e.Amount,
			Kind:         e.Kind,
			Reference:    e.Reference,
			BalanceAfter: e.BalanceAfter,
			CreatedAt:    e.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal entry event: %w", err)
		}
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("publish entry %d: %w", e.ID, err)
		}
		p.log.Debug().Int64("entry_id", e.ID).Str("subject", p.subject).Msg("entry event published")
	}
	return nil
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct{}

// PublishEntries implements ports.EventPublisher.
func (NopPublisher) PublishEntries(context.Context, []*domain.LedgerEntry) error { return nil }
