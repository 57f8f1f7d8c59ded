package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/db"
	"github.com/google/uuid"
)

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const columns = `id, owner, chat_id, target_date, target_time, court, duration_minutes, status, eligible_at, created_at, last_attempt_at, result_detail`

func scanRequest(row db.Row) (Request, error) {
	var r Request
	var status string
	if err := row.Scan(
		&r.ID, &r.Owner, &r.ChatID, &r.TargetDate, &r.TargetTime, &r.Court, &r.DurationMinutes,
		&status, &r.EligibleAt, &r.CreatedAt, &r.LastAttemptAt, &r.ResultDetail,
	); err != nil {
		return Request{}, err
	}
	r.Status = Status(status)
	return r, nil
}

func (p *Repo) Create(ctx context.Context, r Request) (int64, error) {
	var id int64
	err := p.db.QueryRow(ctx, `
INSERT INTO requests(owner, chat_id, target_date, target_time, court, duration_minutes, status, eligible_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id`,
		r.Owner, r.ChatID, r.TargetDate, r.TargetTime, r.Court, r.DurationMinutes, string(r.Status), r.EligibleAt, r.CreatedAt,
	).Scan(&id)
	return id, db.WrapNotFound(err)
}

func (p *Repo) GetForOwner(ctx context.Context, id int64, owner string) (Request, error) {
	r, err := scanRequest(p.db.QueryRow(ctx,
		`SELECT `+columns+` FROM requests WHERE id=$1 AND owner=$2`, id, owner))
	if err != nil {
		if db.IsNotFound(db.WrapNotFound(err)) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return r, nil
}

// ListByOwner returns the owner's requests in creation order.
func (p *Repo) ListByOwner(ctx context.Context, owner string) ([]Request, error) {
	return p.list(ctx, `SELECT `+columns+` FROM requests WHERE owner=$1 ORDER BY created_at ASC, id ASC`, owner)
}

func (p *Repo) ListByStatus(ctx context.Context, s Status) ([]Request, error) {
	return p.list(ctx, `SELECT `+columns+` FROM requests WHERE status=$1 ORDER BY eligible_at ASC, id ASC`, string(s))
}

func (p *Repo) list(ctx context.Context, sql string, args ...any) ([]Request, error) {
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cancel is the user-initiated Pending→Cancelled edge. The status guard in
// the UPDATE makes it atomic against a concurrent scheduler commit:
// whichever statement serializes first wins.
func (p *Repo) Cancel(ctx context.Context, id int64, owner string) error {
	n, err := p.db.ExecAffected(ctx,
		`UPDATE requests SET status=$3 WHERE id=$1 AND owner=$2 AND status=$4`,
		id, owner, string(StatusCancelled), string(StatusPending))
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	if err := p.db.QueryRow(ctx, `SELECT status FROM requests WHERE id=$1 AND owner=$2`, id, owner).Scan(&status); err != nil {
		if db.IsNotFound(db.WrapNotFound(err)) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: request is %s", ErrInvalidTransition, status)
}

// MarkProcessing is the scheduler's commit point: Pending→Processing, made
// durable before the external attempt starts. Returns false when the
// request is no longer pending (cancelled in the meantime, or already
// picked up by another firing).
func (p *Repo) MarkProcessing(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := p.db.ExecAffected(ctx,
		`UPDATE requests SET status=$2, last_attempt_at=$3 WHERE id=$1 AND status=$4`,
		id, string(StatusProcessing), now, string(StatusPending))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Resolve records the attempt outcome: Processing→Confirmed or
// Processing→Failed. The guard keeps terminal states immutable.
func (p *Repo) Resolve(ctx context.Context, id int64, to Status, detail string) error {
	if !StatusProcessing.CanTransitionTo(to) {
		return fmt.Errorf("%w: processing -> %s", ErrInvalidTransition, to)
	}
	n, err := p.db.ExecAffected(ctx,
		`UPDATE requests SET status=$2, result_detail=$3 WHERE id=$1 AND status=$4`,
		id, string(to), detail, string(StatusProcessing))
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: request %d is not processing", ErrInvalidTransition, id)
	}
	return nil
}

// MarkMissed resolves a pending request whose eligibility window has
// already passed. Returns false if the request stopped being pending.
func (p *Repo) MarkMissed(ctx context.Context, id int64, detail string) (bool, error) {
	n, err := p.db.ExecAffected(ctx,
		`UPDATE requests SET status=$2, result_detail=$3 WHERE id=$1 AND status=$4`,
		id, string(StatusFailed), detail, string(StatusPending))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReconcileInterrupted fails every request left in Processing by a crash
// and returns them so their owners can be told. The external outcome of an
// interrupted attempt cannot be trusted, so Failed is the only safe
// resolution.
func (p *Repo) ReconcileInterrupted(ctx context.Context, detail string) ([]Request, error) {
	rows, err := p.db.Query(ctx,
		`UPDATE requests SET status=$1, result_detail=$2 WHERE status=$3 RETURNING `+columns,
		string(StatusFailed), detail, string(StatusProcessing))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run is the audit record of one scheduler firing.
type Run struct {
	ID        uuid.UUID
	FiredAt   time.Time
	Due       int
	Confirmed int
	Failed    int
}

func (p *Repo) RecordRun(ctx context.Context, run Run) error {
	return p.db.Exec(ctx,
		`INSERT INTO runs(id, fired_at, due_count, confirmed_count, failed_count) VALUES ($1,$2,$3,$4,$5)`,
		run.ID.String(), run.FiredAt, run.Due, run.Confirmed, run.Failed)
}
