package internal

import "context"

// AuditLog appends operation records to the logs table. Writes are
// best-effort and never fail the request they describe.
type AuditLog struct {
	db dbtx
}

func NewAuditLog(db dbtx) *AuditLog { return &AuditLog{db: db} }

func (a *AuditLog) Record(ctx context.Context, actorID *int, action, details string) {
	if a == nil || a.db == nil {
		return
	}
	_, _ = a.db.Exec(ctx,
		"INSERT INTO logs(actor_id, action, details) VALUES ($1,$2,$3)",
		actorID, action, details,
	)
}
