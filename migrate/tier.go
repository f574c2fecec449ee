// Package migrate implements a tiered-storage migration controller:
// hot (local)/warm (remote)/cold (remote) storage tiers, candidate
// selection driven by an access-pattern tracker, per-SHA locked
// migration with rollback on failure, and concurrent batch migration.
//
// Modeled on pkg/serve/odb.ODB (WriteDirect/Push's errgroup+io.Pipe
// remote-transfer pattern, ossJoin-style resource keying) and its
// uploadGroup worker-pool (channel + sync.WaitGroup). The remote tier
// backends go beyond what that package itself wires (it speaks one
// internal OSS client): WarmBackend uses cloud.google.com/go/storage and
// ColdBackend uses aws-sdk-go-v2/service/s3.
package migrate

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// Tier names an object's storage tier.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// Backend is the capability every tier must offer the controller:
// content-addressed get/put/delete/exists, keyed by object id.
type Backend interface {
	Tier() Tier
	Exists(ctx context.Context, oid plumbing.Hash) (bool, error)
	Get(ctx context.Context, oid plumbing.Hash) (io.ReadCloser, error)
	Put(ctx context.Context, oid plumbing.Hash, r io.Reader, size int64) error
	Delete(ctx context.Context, oid plumbing.Hash) error
}

func objectKey(oid plumbing.Hash) string {
	h := oid.String()
	return fmt.Sprintf("objects/%s/%s/%s", h[0:2], h[2:4], h)
}

// HotBackend wraps a local store.Database-shaped put/get pair. It takes
// plain function values rather than the concrete *store.Database type so
// migrate has no import-time dependency on store.
type HotBackend struct {
	GetFn    func(oid plumbing.Hash) ([]byte, error)
	PutRaw   func(oid plumbing.Hash, content []byte) error
	DeleteFn func(oid plumbing.Hash) error
	HasFn    func(oid plumbing.Hash) bool
}

func (b *HotBackend) Tier() Tier { return TierHot }

func (b *HotBackend) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	return b.HasFn(oid), nil
}

func (b *HotBackend) Get(ctx context.Context, oid plumbing.Hash) (io.ReadCloser, error) {
	content, err := b.GetFn(oid)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *HotBackend) Put(ctx context.Context, oid plumbing.Hash, r io.Reader, size int64) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return b.PutRaw(oid, content)
}

func (b *HotBackend) Delete(ctx context.Context, oid plumbing.Hash) error {
	return b.DeleteFn(oid)
}

// WarmBackend stores objects in a Google Cloud Storage bucket.
type WarmBackend struct {
	Client *storage.Client
	Bucket string
}

func (b *WarmBackend) Tier() Tier { return TierWarm }

func (b *WarmBackend) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	_, err := b.Client.Bucket(b.Bucket).Object(objectKey(oid)).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, plumbing.NewError(plumbing.KindRemoteTier, "warm-exists", oid, "warm", err)
	}
	return true, nil
}

func (b *WarmBackend) Get(ctx context.Context, oid plumbing.Hash) (io.ReadCloser, error) {
	r, err := b.Client.Bucket(b.Bucket).Object(objectKey(oid)).NewReader(ctx)
	if err == storage.ErrObjectNotExist {
		return nil, plumbing.NoSuchObject(oid)
	}
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindRemoteTier, "warm-get", oid, "warm", err)
	}
	return r, nil
}

func (b *WarmBackend) Put(ctx context.Context, oid plumbing.Hash, r io.Reader, size int64) error {
	w := b.Client.Bucket(b.Bucket).Object(objectKey(oid)).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return plumbing.NewError(plumbing.KindRemoteTier, "warm-put", oid, "warm", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "warm-put", oid, "warm", err)
	}
	return nil
}

func (b *WarmBackend) Delete(ctx context.Context, oid plumbing.Hash) error {
	err := b.Client.Bucket(b.Bucket).Object(objectKey(oid)).Delete(ctx)
	if err != nil && err != storage.ErrObjectNotExist {
		return plumbing.NewError(plumbing.KindRemoteTier, "warm-delete", oid, "warm", err)
	}
	return nil
}

// ColdBackend stores objects in an S3-compatible bucket, the
// furthest/cheapest tier.
type ColdBackend struct {
	Client *s3.Client
	Bucket string
}

func (b *ColdBackend) Tier() Tier { return TierCold }

func (b *ColdBackend) Exists(ctx context.Context, oid plumbing.Hash) (bool, error) {
	_, err := b.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(objectKey(oid)),
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (b *ColdBackend) Get(ctx context.Context, oid plumbing.Hash) (io.ReadCloser, error) {
	out, err := b.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(objectKey(oid)),
	})
	if err != nil {
		return nil, plumbing.NewError(plumbing.KindRemoteTier, "cold-get", oid, "cold", err)
	}
	return out.Body, nil
}

func (b *ColdBackend) Put(ctx context.Context, oid plumbing.Hash, r io.Reader, size int64) error {
	_, err := b.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.Bucket),
		Key:           aws.String(objectKey(oid)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "cold-put", oid, "cold", err)
	}
	return nil
}

func (b *ColdBackend) Delete(ctx context.Context, oid plumbing.Hash) error {
	_, err := b.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.Bucket),
		Key:    aws.String(objectKey(oid)),
	})
	if err != nil {
		return plumbing.NewError(plumbing.KindRemoteTier, "cold-delete", oid, "cold", err)
	}
	return nil
}
