package events

import (
	"context"
	"encoding/json"

	"github.com/gocql/gocql"
)

// ScyllaSink persiste chaque événement dans la table ledger_audit_logs, partitionnée par jour.
type ScyllaSink struct {
	session *gocql.Session
}

func NewScyllaSink(session *gocql.Session) *ScyllaSink {
	return &ScyllaSink{session: session}
}

func (s *ScyllaSink) Name() string { return "scylla" }

func (s *ScyllaSink) Write(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Attributes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_audit_logs (
			day, id, event_type, entity_type, entity_id, creator_id,
			actor, amount, currency, payload, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return s.session.Query(query,
		e.OccurredAt.UTC().Format("2006-01-02"),
		gocql.UUIDFromTime(e.OccurredAt),
		string(e.Type), e.EntityType, e.EntityID, e.CreatorID,
		e.Actor, e.Amount.StringFixed(2), e.Currency, string(payload), e.OccurredAt,
	).WithContext(ctx).Exec()
}
