package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dot-do/gitcore/modules/object"
	"github.com/dot-do/gitcore/modules/plumbing"
	"github.com/dot-do/gitcore/modules/wire"
	"github.com/dot-do/gitcore/pr"
	"github.com/dot-do/gitcore/repository"
)

// singleRepoID is the pull_requests.repo_id every handler here uses.
// pr.DB opens one SQLite file per physical Repository (see
// repository.Open), so that file only ever holds rows for the one repo
// it belongs to — the multi-repo-per-database id column the schema
// carries is simply never exercised at more than one value in this
// process topology.
const singleRepoID = 1

// HTTPServer is the smart-HTTP front door, modeled on
// pkg/serve/httpserver.Server: a gorilla/mux router over a registry of
// repositories instead of a namespace/repo/db-backed hub.
type HTTPServer struct {
	reg *Registry
	r   *mux.Router
}

func NewHTTPServer(reg *Registry) *HTTPServer {
	s := &HTTPServer{reg: reg, r: mux.NewRouter()}
	s.r.HandleFunc("/{repo}/info/refs", s.infoRefs).Methods("GET")
	s.r.HandleFunc("/{repo}/git-upload-pack", s.uploadPack).Methods("POST")
	s.r.HandleFunc("/{repo}/git-receive-pack", s.receivePack).Methods("POST")
	s.r.HandleFunc("/{repo}/pulls", s.listPulls).Methods("GET")
	s.r.HandleFunc("/{repo}/pulls", s.createPull).Methods("POST")
	s.r.HandleFunc("/{repo}/pulls/{number}/merge", s.mergePull).Methods("POST")
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.r.ServeHTTP(w, req)
}

func (s *HTTPServer) repoFor(w http.ResponseWriter, req *http.Request) *repository.Repository {
	name := mux.Vars(req)["repo"]
	repo, err := s.reg.Open(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	return repo
}

func (s *HTTPServer) infoRefs(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	service := req.URL.Query().Get("service")
	all, err := repo.Refs.List("")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var ads []wire.RefAdvertisement
	for _, ref := range all {
		if ref.IsSymbolic() {
			continue
		}
		ads = append(ads, wire.RefAdvertisement{SHA: ref.Hash.String(), Ref: string(ref.Name)})
	}
	w.Header().Set("Content-Type", "application/x-"+service+"-advertisement")
	caps := wire.NewCapabilities("side-band-64k", "ofs-delta", "agent=gitcore/1.0")
	if err := wire.WriteRefAdvertisement(w, service, ads, caps); err != nil {
		logrus.WithError(err).Error("write ref advertisement")
	}
}

func (s *HTTPServer) uploadPack(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	upReq, err := wire.ReadUploadPackRequest(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wants := toHashes(upReq.Wants)
	haves := toHashes(upReq.Haves)

	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	if err := wire.WriteAck(w, "", wire.NakStatus); err != nil {
		logrus.WithError(err).Error("write nak")
		return
	}
	if err := repo.UploadPack(req.Context(), w, wants, haves); err != nil {
		logrus.WithError(err).Error("upload-pack")
	}
}

func (s *HTTPServer) receivePack(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	rpReq, err := wire.ReadReceivePackRequest(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	packData, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := repo.ApplyReceivePack(packData, rpReq.Commands); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-git-receive-pack-result")
	_ = wire.WritePacket(w, []byte("unpack ok\n"))
}

func toHashes(tokens []string) []plumbing.Hash {
	out := make([]plumbing.Hash, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, plumbing.NewHash(t))
	}
	return out
}

func (s *HTTPServer) listPulls(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	list, err := repo.PRs.List(req.Context(), singleRepoID, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

func (s *HTTPServer) createPull(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	var p pr.PullRequest
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.RepoID = singleRepoID
	created, err := repo.PRs.Create(req.Context(), &p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, created)
}

// mergeRequest is the body accepted by POST .../merge: the merge method
// and the identity to attribute the resulting commit to. Name/Email
// default to the gitcored service identity when omitted, the way a
// hosting service attributes merge-button commits to itself rather than
// requiring the caller to supply one.
type mergeRequest struct {
	Method          pr.MergeMethod `json:"method"`
	RequireApproval bool           `json:"require_approval"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
}

func (s *HTTPServer) mergePull(w http.ResponseWriter, req *http.Request) {
	repo := s.repoFor(w, req)
	if repo == nil {
		return
	}
	id, err := strconv.ParseInt(mux.Vars(req)["number"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var body mergeRequest
	if req.Body != nil {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && err != io.EOF {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if body.Method == "" {
		body.Method = pr.MergeMethodMerge
	}
	if body.Name == "" {
		body.Name, body.Email = "gitcored", "gitcored@localhost"
	}
	sig := object.Signature{Name: body.Name, Email: body.Email, When: time.Now()}
	merged, err := repo.PRs.Merge(req.Context(), id, repo.Refs, repo.Objects, repo.Objects, pr.MergeOptions{
		Method:          body.Method,
		RequireApproval: body.RequireApproval,
		Author:          sig,
		Committer:       sig,
		Root:            repo.Root,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, merged)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
