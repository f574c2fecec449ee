package pr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dot-do/gitcore/modules/codec"
	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/refs"
	"github.com/dot-do/gitcore/sqlstore"
)

func openTestDB(t *testing.T) DB {
	t.Helper()
	conn, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	return &database{DB: conn}
}

// memStore is a minimal in-memory mergeengine.Loader/Writer, the same
// shape mergeengine's own tests use, so Merge's tree-merge dispatch can
// be exercised here without pulling in the full sqlstore-backed object
// store.
type memStore struct {
	objects map[plumbing.Hash][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[plumbing.Hash][]byte{}} }

func (s *memStore) Put(t codec.ObjectType, content []byte) (plumbing.Hash, error) {
	oid := codec.HashObject(t, content)
	s.objects[oid] = content
	return oid, nil
}

func (s *memStore) ReadTree(oid plumbing.Hash) (*object.Tree, error) {
	return object.ParseTree(codec.Frame(codec.TypeTree, s.objects[oid]))
}

func (s *memStore) ReadBlob(oid plumbing.Hash) (*object.Blob, error) {
	return object.ParseBlob(codec.Frame(codec.TypeBlob, s.objects[oid]))
}

func (s *memStore) ReadCommit(oid plumbing.Hash) (*object.Commit, error) {
	return object.ParseCommit(codec.Frame(codec.TypeCommit, s.objects[oid]))
}

func mergeSig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func putCommit(t *testing.T, s *memStore, tree plumbing.Hash, parents ...plumbing.Hash) plumbing.Hash {
	c, err := object.NewCommit(tree, parents, mergeSig("author"), mergeSig("author"), "msg")
	require.NoError(t, err)
	raw, err := c.Serialize()
	require.NoError(t, err)
	oid, err := s.Put(codec.TypeCommit, raw)
	require.NoError(t, err)
	return oid
}

func putTree(t *testing.T, s *memStore, entries ...object.TreeEntry) plumbing.Hash {
	tree, err := object.NewTree(entries)
	require.NoError(t, err)
	raw, err := tree.Serialize()
	require.NoError(t, err)
	oid, err := s.Put(codec.TypeTree, raw)
	require.NoError(t, err)
	return oid
}

func TestCreateAndGet(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p, err := d.Create(ctx, &PullRequest{
		RepoID: 1, Title: "add feature", Description: "does a thing",
		SourceBranch: "feature", TargetBranch: "main", AuthorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), p.Number)
	require.Equal(t, StatusOpen, p.Status)

	got, err := d.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Title, got.Title)

	byNum, err := d.GetByNumber(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, p.ID, byNum.ID)
}

func TestCreateAutoIncrementsPerRepo(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p1, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "a", SourceBranch: "x", TargetBranch: "main"})
	require.NoError(t, err)
	p2, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "b", SourceBranch: "y", TargetBranch: "main"})
	require.NoError(t, err)
	p3, err := d.Create(ctx, &PullRequest{RepoID: 2, Title: "c", SourceBranch: "z", TargetBranch: "main"})
	require.NoError(t, err)

	require.Equal(t, int64(1), p1.Number)
	require.Equal(t, int64(2), p2.Number)
	require.Equal(t, int64(1), p3.Number)
}

func TestListFiltersByStatus(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p1, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "a", SourceBranch: "x", TargetBranch: "main"})
	require.NoError(t, err)
	_, err = d.Create(ctx, &PullRequest{RepoID: 1, Title: "b", SourceBranch: "y", TargetBranch: "main"})
	require.NoError(t, err)

	mergeCommit := plumbing.NewHash("1111111111111111111111111111111111111111")
	_, err = d.UpdateStatus(ctx, p1.ID, StatusMerged, mergeCommit)
	require.NoError(t, err)

	open := StatusOpen
	list, err := d.List(ctx, 1, &open)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b", list[0].Title)

	all, err := d.List(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

// setupMergeablePR wires a source branch one commit ahead of target,
// with no overlapping paths, so every merge method succeeds cleanly.
func setupMergeablePR(t *testing.T) (DB, *PullRequest, *refs.Store, *memStore) {
	t.Helper()
	d := openTestDB(t)
	ctx := context.Background()
	s := newMemStore()

	baseBlob, err := s.Put(codec.TypeBlob, []byte("base\n"))
	require.NoError(t, err)
	baseTree := putTree(t, s, object.TreeEntry{Name: "base.txt", Mode: object.ModeRegular, Hash: baseBlob})
	base := putCommit(t, s, baseTree)

	featureBlob, err := s.Put(codec.TypeBlob, []byte("feature\n"))
	require.NoError(t, err)
	featureTree := putTree(t, s,
		object.TreeEntry{Name: "base.txt", Mode: object.ModeRegular, Hash: baseBlob},
		object.TreeEntry{Name: "feature.txt", Mode: object.ModeRegular, Hash: featureBlob},
	)
	featureHead := putCommit(t, s, featureTree, base)

	refsConn, err := sqlstore.Open(":memory:")
	require.NoError(t, err)
	rs := refs.NewStore(refsConn)
	require.NoError(t, rs.Update(refs.Name("refs/heads/main"), base, plumbing.ZeroHash))
	require.NoError(t, rs.Update(refs.Name("refs/heads/feature"), featureHead, plumbing.ZeroHash))

	p, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "a", SourceBranch: "feature", TargetBranch: "main"})
	require.NoError(t, err)
	return d, p, rs, s
}

func TestMergeRefusesWhenNotOpen(t *testing.T) {
	d, p, rs, s := setupMergeablePR(t)
	ctx := context.Background()

	opts := MergeOptions{Method: MergeMethodMerge, Author: mergeSig("merger"), Committer: mergeSig("merger")}
	_, err := d.Merge(ctx, p.ID, rs, s, s, opts)
	require.NoError(t, err)

	_, err = d.Merge(ctx, p.ID, rs, s, s, opts)
	require.Error(t, err)
	var already *ErrAlreadyMerged
	require.ErrorAs(t, err, &already)
}

func TestMergeRequiresApprovalWhenConfigured(t *testing.T) {
	d, p, rs, s := setupMergeablePR(t)
	ctx := context.Background()

	opts := MergeOptions{Method: MergeMethodMerge, RequireApproval: true, Author: mergeSig("merger"), Committer: mergeSig("merger")}
	_, err := d.Merge(ctx, p.ID, rs, s, s, opts)
	require.ErrorIs(t, err, ErrChangesRequested)

	_, err = d.AddReview(ctx, &Review{PullRequestID: p.ID, ReviewerID: 9, State: ReviewApproved})
	require.NoError(t, err)

	merged, err := d.Merge(ctx, p.ID, rs, s, s, opts)
	require.NoError(t, err)
	require.Equal(t, StatusMerged, merged.Status)
	require.NotEqual(t, plumbing.ZeroHash, merged.MergeCommit)
}

func TestAggregateReviewStateChangesRequestedWins(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "a", SourceBranch: "x", TargetBranch: "main"})
	require.NoError(t, err)

	_, err = d.AddReview(ctx, &Review{PullRequestID: p.ID, ReviewerID: 1, State: ReviewApproved})
	require.NoError(t, err)
	r2, err := d.AddReview(ctx, &Review{PullRequestID: p.ID, ReviewerID: 2, State: ReviewChangesRequested})
	require.NoError(t, err)

	state, err := d.AggregateReviewState(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ReviewChangesRequested, state)

	require.NoError(t, d.DismissReview(ctx, r2.ID))
	state, err = d.AggregateReviewState(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ReviewApproved, state)

	reviews, err := d.ListReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
}

func TestAggregateReviewStateLatestPerReviewerWins(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	p, err := d.Create(ctx, &PullRequest{RepoID: 1, Title: "a", SourceBranch: "x", TargetBranch: "main"})
	require.NoError(t, err)

	_, err = d.AddReview(ctx, &Review{PullRequestID: p.ID, ReviewerID: 1, State: ReviewChangesRequested})
	require.NoError(t, err)
	_, err = d.AddReview(ctx, &Review{PullRequestID: p.ID, ReviewerID: 1, State: ReviewApproved})
	require.NoError(t, err)

	state, err := d.AggregateReviewState(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, ReviewApproved, state)
}

func TestGetNotFound(t *testing.T) {
	d := openTestDB(t)
	_, err := d.Get(context.Background(), 42)
	require.True(t, IsNotFound(err))
}
