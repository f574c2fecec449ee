package repository

import (
	"context"
	"io"

	"github.com/dot-do/gitcore/modules/pack"
	"github.com/dot-do/gitcore/modules/plumbing"
)

// UploadPack writes a pack file satisfying wants-minus-haves to w,
// modeled on the pack-objects negotiation in
// modules/zeta/backend/pack-objects.go but encoding every object whole
// rather than selecting delta bases — see pack.Writer.WithBases for the
// thin-pack path this engine exposes but does not enable by default here.
func (r *Repository) UploadPack(ctx context.Context, w io.Writer, wants, haves []plumbing.Hash) error {
	objects, err := r.CollectObjects(ctx, wants, haves)
	if err != nil {
		return err
	}
	pw, err := pack.NewWriter(w, uint32(len(objects)))
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := pw.Write(obj); err != nil {
			return err
		}
	}
	_, _, err = pw.Close()
	return err
}
