package pr

import (
	"context"
	"time"
)

func (d *database) AddReview(ctx context.Context, r *Review) (*Review, error) {
	now := time.Now()
	res, err := d.ExecContext(ctx, `insert into pull_request_reviews
		(pull_request_id, reviewer_id, state, body, created_at) values (?,?,?,?,?)`,
		r.PullRequestID, r.ReviewerID, r.State.String(), r.Body, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *r
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func scanReview(row interface {
	Scan(dest ...any) error
}) (*Review, error) {
	var r Review
	var stateTok string
	if err := row.Scan(&r.ID, &r.PullRequestID, &r.ReviewerID, &stateTok, &r.Body, &r.CreatedAt); err != nil {
		return nil, err
	}
	switch stateTok {
	case "pending":
		r.State = ReviewPending
	case "approved":
		r.State = ReviewApproved
	case "changes_requested":
		r.State = ReviewChangesRequested
	case "dismissed":
		r.State = ReviewDismissed
	}
	r.CreatedAt = r.CreatedAt.Local()
	return &r, nil
}

const selectReviewColumns = `id, pull_request_id, reviewer_id, state, body, created_at`

func (d *database) ListReviews(ctx context.Context, prID int64) ([]*Review, error) {
	rows, err := d.QueryContext(ctx, `select `+selectReviewColumns+` from pull_request_reviews where pull_request_id = ? order by created_at`, prID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *database) DismissReview(ctx context.Context, reviewID int64) error {
	res, err := d.ExecContext(ctx, `update pull_request_reviews set state = ? where id = ?`, ReviewDismissed.String(), reviewID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrNotFound{Kind: "review", ID: reviewID}
	}
	return nil
}

// AggregateReviewState folds every non-dismissed review into a single
// verdict: any outstanding ReviewChangesRequested blocks the pull
// request regardless of how many approvals exist; otherwise it is
// ReviewApproved once at least one approval exists, else ReviewPending.
// Later reviews from the same reviewer supersede their earlier ones.
func (d *database) AggregateReviewState(ctx context.Context, prID int64) (ReviewState, error) {
	rows, err := d.QueryContext(ctx, `select `+selectReviewColumns+` from pull_request_reviews where pull_request_id = ? order by created_at`, prID)
	if err != nil {
		return ReviewPending, err
	}
	defer rows.Close()

	latest := map[int64]ReviewState{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return ReviewPending, err
		}
		if r.State == ReviewDismissed {
			delete(latest, r.ReviewerID)
			continue
		}
		latest[r.ReviewerID] = r.State
	}
	if err := rows.Err(); err != nil {
		return ReviewPending, err
	}

	hasApproval := false
	for _, state := range latest {
		if state == ReviewChangesRequested {
			return ReviewChangesRequested, nil
		}
		if state == ReviewApproved {
			hasApproval = true
		}
	}
	if hasApproval {
		return ReviewApproved, nil
	}
	return ReviewPending, nil
}
