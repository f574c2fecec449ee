package repository

import (
	"context"
	"fmt"
	"io"

	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/modules/wire"
)

// refAdvertisement lists every concrete (non-symbolic) reference for the
// initial advertisement a smart transport sends before negotiation.
func (r *Repository) refAdvertisement() ([]wire.RefAdvertisement, error) {
	all, err := r.Refs.List("")
	if err != nil {
		return nil, err
	}
	ads := make([]wire.RefAdvertisement, 0, len(all))
	for _, ref := range all {
		if ref.IsSymbolic() {
			continue
		}
		ads = append(ads, wire.RefAdvertisement{SHA: ref.Hash.String(), Ref: string(ref.Name)})
	}
	return ads, nil
}

// UploadPackSession runs a full upload-pack exchange over a single
// bidirectional stream (the shape the SSH transport needs, versus the
// split request/response round trip smart-HTTP uses): advertise refs,
// read the want/have negotiation, then write the resulting pack.
func (r *Repository) UploadPackSession(in io.Reader, out io.Writer) error {
	ads, err := r.refAdvertisement()
	if err != nil {
		return err
	}
	caps := wire.NewCapabilities("side-band-64k", "ofs-delta", "agent=gitcore/1.0")
	if err := wire.WriteRefAdvertisement(out, "", ads, caps); err != nil {
		return err
	}
	req, err := wire.ReadUploadPackRequest(in)
	if err != nil {
		return err
	}
	wants := make([]plumbing.Hash, 0, len(req.Wants))
	for _, w := range req.Wants {
		wants = append(wants, plumbing.NewHash(w))
	}
	haves := make([]plumbing.Hash, 0, len(req.Haves))
	for _, h := range req.Haves {
		haves = append(haves, plumbing.NewHash(h))
	}
	if err := wire.WriteAck(out, "", wire.NakStatus); err != nil {
		return err
	}
	return r.UploadPack(context.Background(), out, wants, haves)
}

// ReceivePackSession runs a full receive-pack exchange: advertise refs,
// read the ref-update commands and trailing packfile, apply them, and
// report the result.
func (r *Repository) ReceivePackSession(in io.Reader, out io.Writer) error {
	ads, err := r.refAdvertisement()
	if err != nil {
		return err
	}
	if err := wire.WriteRefAdvertisement(out, "", ads, wire.NewCapabilities("report-status", "agent=gitcore/1.0")); err != nil {
		return err
	}
	req, err := wire.ReadReceivePackRequest(in)
	if err != nil {
		return err
	}
	packData, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if err := r.ApplyReceivePack(packData, req.Commands); err != nil {
		fmt.Fprintf(out, "unpack %v\n", err)
		return err
	}
	return wire.WritePacket(out, []byte("unpack ok\n"))
}
