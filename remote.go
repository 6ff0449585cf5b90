package git

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-git/git-engine/config"
	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/packfile"
	"github.com/go-git/git-engine/plumbing/object"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/transport"
	transporthttp "github.com/go-git/git-engine/plumbing/transport/http"
)

// defaultFetchRefSpec is applied to a newly added remote when the caller
// gives none, matching git's own "fetch everything under heads" default.
func defaultFetchRefSpec(name string) config.RefSpec {
	return config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name))
}

// AddRemote records a remote's URL and default refspec in the local
// config.
func (r *Repository) AddRemote(name, url string) error {
	if name == "" || url == "" {
		return engineerr.MissingParameter("name/url", "Repository.AddRemote")
	}
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if _, ok := cfg.Remotes[name]; ok {
		return engineerr.AlreadyExists("remote "+name, "Repository.AddRemote")
	}
	cfg.Remotes[name] = &config.RemoteConfig{
		Name:  name,
		URLs:  []string{url},
		Fetch: []config.RefSpec{defaultFetchRefSpec(name)},
	}
	return r.SetConfig(cfg)
}

// RemoveRemote deletes a remote's config entry and its remote-tracking
// refs.
func (r *Repository) RemoveRemote(name string) error {
	cfg, err := r.Config()
	if err != nil {
		return err
	}
	if _, ok := cfg.Remotes[name]; !ok {
		return engineerr.NotFound("remote "+name, "Repository.RemoveRemote", nil)
	}
	delete(cfg.Remotes, name)
	if err := r.SetConfig(cfg); err != nil {
		return err
	}

	refs, err := r.ListRefs()
	if err != nil {
		return err
	}
	prefix := "refs/remotes/" + name + "/"
	for _, ref := range refs {
		if len(ref.Name().String()) > len(prefix) && ref.Name().String()[:len(prefix)] == prefix {
			if err := r.dot.RemoveRef(ref.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListRemotes returns every configured remote.
func (r *Repository) ListRemotes() ([]*config.RemoteConfig, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	out := make([]*config.RemoteConfig, 0, len(cfg.Remotes))
	for _, rc := range cfg.Remotes {
		out = append(out, rc)
	}
	return out, nil
}

func (r *Repository) remoteConfig(name string) (*config.RemoteConfig, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return nil, engineerr.NotFound("remote "+name, "Repository.remoteConfig", nil)
	}
	if len(rc.Fetch) == 0 {
		return nil, engineerr.NoRefspec(name, "Repository.remoteConfig")
	}
	return rc, nil
}

// FetchOptions configures Fetch.
//
// ProtocolVersion selects the wire protocol: 0 lets discovery pick
// (version 2 whenever the server advertises it), 1 forces version 1 and
// never sends the Git-Protocol header, 2 requires version 2 and fails
// with a RemoteCapabilityError against a v1-only server.
type FetchOptions struct {
	Auth            transport.AuthMethod
	Depth           int
	ProtocolVersion int
}

// Fetch downloads every ref the remote's refspecs select, updates the
// corresponding remote-tracking refs, and records FETCH_HEAD. It does not
// touch the current branch.
func (r *Repository) Fetch(ctx context.Context, remoteName string, opts FetchOptions) error {
	return engineerr.WithStack(r.fetch(ctx, remoteName, opts))
}

func (r *Repository) fetch(ctx context.Context, remoteName string, opts FetchOptions) error {
	rc, err := r.remoteConfig(remoteName)
	if err != nil {
		return err
	}
	ep, err := transport.NewEndpoint(rc.URLs[0], false)
	if err != nil {
		return err
	}

	t := transporthttp.NewTransport(nil)
	adv, v2, err := t.Discover(ctx, ep, opts.Auth, transporthttp.UploadPackService, opts.ProtocolVersion != 1)
	if err != nil {
		return err
	}
	if opts.ProtocolVersion == 2 && !v2 {
		return engineerr.RemoteCapability("version 2", "", "Repository.Fetch")
	}

	caps := adv.Capabilities
	if v2 {
		// v2 discovery carries only capabilities; the ref listing comes
		// from a separate ls-refs command.
		adv, err = t.LsRefsV2(ctx, ep, opts.Auth, []string{"HEAD", "refs/heads/", "refs/tags/"})
		if err != nil {
			return err
		}
	}
	if len(adv.References) == 0 {
		return nil
	}

	haves, err := r.localHaves()
	if err != nil {
		return err
	}

	var wants []plumbing.Hash
	for _, h := range adv.References {
		has, err := r.storage.Has(h)
		if err != nil {
			return err
		}
		if !has {
			wants = append(wants, h)
		}
	}
	if len(wants) == 0 {
		if err := r.updateRemoteTrackingRefs(remoteName, rc, adv); err != nil {
			return err
		}
		return r.writeFetchHead(adv)
	}

	freq := &transporthttp.FetchRequest{
		Wants: wants,
		Haves: haves,
		Depth: opts.Depth,
	}
	var res *transporthttp.FetchResult
	if v2 {
		res, err = t.FetchV2(ctx, ep, opts.Auth, caps, freq)
	} else {
		res, err = t.Fetch(ctx, ep, opts.Auth, adv, freq)
	}
	if err != nil {
		return err
	}
	if err := r.storage.InstallPack(res.Packfile); err != nil {
		return err
	}

	if err := r.updateRemoteTrackingRefs(remoteName, rc, adv); err != nil {
		return err
	}
	return r.writeFetchHead(adv)
}

// localHaves lists every hash this repository's refs currently point at,
// the negotiation's "have" set.
func (r *Repository) localHaves() ([]plumbing.Hash, error) {
	refs, err := r.ListRefs()
	if err != nil {
		return nil, err
	}
	var out []plumbing.Hash
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		has, err := r.storage.Has(ref.Hash())
		if err != nil {
			return nil, err
		}
		if has {
			out = append(out, ref.Hash())
		}
	}
	return out, nil
}

func (r *Repository) updateRemoteTrackingRefs(remoteName string, rc *config.RemoteConfig, adv *packp.AdvRefs) error {
	for name, hash := range adv.References {
		refName := plumbing.ReferenceName(name)
		if !config.MatchAny(rc.Fetch, refName) {
			continue
		}
		var dst plumbing.ReferenceName
		for _, spec := range rc.Fetch {
			if spec.Match(refName) {
				dst = spec.Dst(refName)
				break
			}
		}
		if dst == "" {
			continue
		}
		old, err := r.Reference(dst)
		if err != nil {
			if err != plumbing.ErrReferenceNotFound {
				return err
			}
			old = nil
		}
		if err := r.SetReferenceWithMessage(plumbing.NewHashReference(dst, hash), old, "fetch "+remoteName+": "+refName.Short()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) writeFetchHead(adv *packp.AdvRefs) error {
	var content string
	for name, hash := range adv.References {
		content += fmt.Sprintf("%s\t\t%s\n", hash, name)
	}
	return r.dot.SetFetchHead(content)
}

// PushOptions configures Push.
type PushOptions struct {
	Auth   transport.AuthMethod
	Atomic bool
}

// Push uploads every local ref the remote's refspecs select (interpreted
// in reverse, local->remote): it computes the
// objects the remote is missing, builds a packfile for them, and sends
// the ref-update commands together with it.
func (r *Repository) Push(ctx context.Context, remoteName string, opts PushOptions) error {
	return engineerr.WithStack(r.push(ctx, remoteName, opts))
}

func (r *Repository) push(ctx context.Context, remoteName string, opts PushOptions) error {
	rc, err := r.remoteConfig(remoteName)
	if err != nil {
		return err
	}
	ep, err := transport.NewEndpoint(rc.URLs[0], false)
	if err != nil {
		return err
	}

	t := transporthttp.NewTransport(nil)
	adv, _, err := t.Discover(ctx, ep, opts.Auth, transporthttp.ReceivePackService, false)
	if err != nil {
		return err
	}

	localRefs, err := r.ListRefs()
	if err != nil {
		return err
	}

	var commands []*packp.Command
	var wants []plumbing.Hash
	for _, ref := range localRefs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		if !ref.Name().IsBranch() && !ref.Name().IsTag() {
			continue
		}
		refName := ref.Name()
		old := adv.References[refName.String()]
		if old == ref.Hash() {
			continue
		}
		commands = append(commands, &packp.Command{Name: refName.String(), Old: old, New: ref.Hash()})
		wants = append(wants, ref.Hash())
	}
	if len(commands) == 0 {
		return nil
	}

	have := make([]plumbing.Hash, 0, len(adv.References))
	for _, h := range adv.References {
		have = append(have, h)
	}

	objs, err := r.objectsToSend(wants, have)
	if err != nil {
		return err
	}
	packBytes, _, err := packfile.Encode(objs)
	if err != nil {
		return err
	}

	rs, err := t.Push(ctx, ep, opts.Auth, adv, &transporthttp.PushRequest{
		Commands: commands,
		Packfile: bytes.NewReader(packBytes),
		Atomic:   opts.Atomic,
	})
	if err != nil {
		return err
	}
	_ = rs
	return nil
}

// objectsToSend walks every object reachable from wants, excluding
// anything reachable from have, returning them in an order packfile.Encode
// can write directly (no delta base ordering is needed: Encode writes
// every object whole).
func (r *Repository) objectsToSend(wants, have []plumbing.Hash) ([]packfile.EncodeObject, error) {
	exclude := make(map[plumbing.Hash]bool)
	for _, h := range have {
		if err := r.markReachable(h, exclude); err != nil {
			return nil, err
		}
	}

	include := make(map[plumbing.Hash]bool)
	var objs []packfile.EncodeObject
	var walk func(h plumbing.Hash) error
	walk = func(h plumbing.Hash) error {
		if h.IsZero() || exclude[h] || include[h] {
			return nil
		}
		typ, payload, err := r.storage.Read(h)
		if err != nil {
			return err
		}
		include[h] = true
		objs = append(objs, packfile.EncodeObject{Hash: h, Type: typ, Content: payload})

		switch typ {
		case plumbing.CommitObject:
			c, err := object.DecodeCommit(payload)
			if err != nil {
				return err
			}
			if err := walk(c.TreeHash); err != nil {
				return err
			}
			for _, p := range c.Parents {
				if err := walk(p); err != nil {
					return err
				}
			}
		case plumbing.TreeObject:
			tr, err := object.DecodeTree(payload)
			if err != nil {
				return err
			}
			for _, e := range tr.Entries {
				if err := walk(e.Hash); err != nil {
					return err
				}
			}
		case plumbing.TagObject:
			tg, err := object.DecodeTag(payload)
			if err != nil {
				return err
			}
			if err := walk(tg.Object); err != nil {
				return err
			}
		}
		return nil
	}

	for _, w := range wants {
		if err := walk(w); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

// markReachable marks every object reachable from h as excluded from the
// packfile being built, so Push never re-sends objects the remote
// already advertised.
func (r *Repository) markReachable(h plumbing.Hash, seen map[plumbing.Hash]bool) error {
	if h.IsZero() || seen[h] {
		return nil
	}
	seen[h] = true
	typ, payload, err := r.storage.Read(h)
	if err != nil {
		return nil
	}
	switch typ {
	case plumbing.CommitObject:
		c, err := object.DecodeCommit(payload)
		if err != nil {
			return nil
		}
		if err := r.markReachable(c.TreeHash, seen); err != nil {
			return err
		}
		for _, p := range c.Parents {
			if err := r.markReachable(p, seen); err != nil {
				return err
			}
		}
	case plumbing.TreeObject:
		tr, err := object.DecodeTree(payload)
		if err != nil {
			return nil
		}
		for _, e := range tr.Entries {
			if err := r.markReachable(e.Hash, seen); err != nil {
				return err
			}
		}
	case plumbing.TagObject:
		tg, err := object.DecodeTag(payload)
		if err != nil {
			return nil
		}
		if err := r.markReachable(tg.Object, seen); err != nil {
			return err
		}
	}
	return nil
}

// Clone initializes a new repository at path and fetches every branch
// from url into it, checking out the remote's default branch.
func Clone(ctx context.Context, path, url string, opts FetchOptions) (*Repository, error) {
	repo, err := clone(ctx, path, url, opts)
	return repo, engineerr.WithStack(err)
}

func clone(ctx context.Context, path, url string, opts FetchOptions) (*Repository, error) {
	repo, err := PlainInit(path, false)
	if err != nil {
		return nil, err
	}
	if err := repo.AddRemote("origin", url); err != nil {
		return nil, err
	}
	if err := repo.Fetch(ctx, "origin", opts); err != nil {
		return nil, err
	}

	ep, err := transport.NewEndpoint(url, false)
	if err != nil {
		return nil, err
	}
	t := transporthttp.NewTransport(nil)
	adv, _, err := t.Discover(ctx, ep, opts.Auth, transporthttp.UploadPackService, false)
	if err != nil {
		return nil, err
	}
	if adv.Head == nil {
		return repo, nil
	}

	branch := defaultInitBranch
	for name, h := range adv.References {
		if h == *adv.Head && plumbing.ReferenceName(name).IsBranch() {
			branch = plumbing.ReferenceName(name).Short()
			break
		}
	}
	if err := repo.CreateBranch(BranchOptions{Name: branch, Hash: *adv.Head, Force: true}); err != nil {
		return nil, err
	}
	if err := repo.dot.SetRef(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch)), nil); err != nil {
		return nil, err
	}
	if err := repo.materializeCommit(*adv.Head); err != nil {
		return nil, err
	}
	return repo, nil
}

// RemoteInfo is a remote's advertised state, as reported by GetRemoteInfo.
type RemoteInfo struct {
	HEAD         *plumbing.Hash
	References   map[string]plumbing.Hash
	Peeled       map[string]plumbing.Hash
	Capabilities []string
	ProtocolV2   bool
}

// GetRemoteInfo discovers a remote's refs and capabilities without a local
// repository.
func GetRemoteInfo(ctx context.Context, url string, opts FetchOptions) (*RemoteInfo, error) {
	if url == "" {
		return nil, engineerr.MissingParameter("url", "GetRemoteInfo")
	}
	ep, err := transport.NewEndpoint(url, false)
	if err != nil {
		return nil, err
	}
	t := transporthttp.NewTransport(nil)
	adv, v2, err := t.Discover(ctx, ep, opts.Auth, transporthttp.UploadPackService, opts.ProtocolVersion != 1)
	if err != nil {
		return nil, err
	}
	if opts.ProtocolVersion == 2 && !v2 {
		return nil, engineerr.RemoteCapability("version 2", "", "GetRemoteInfo")
	}

	info := &RemoteInfo{ProtocolV2: v2}
	for _, c := range adv.Capabilities.All() {
		info.Capabilities = append(info.Capabilities, string(c))
	}
	if v2 {
		adv, err = t.LsRefsV2(ctx, ep, opts.Auth, nil)
		if err != nil {
			return nil, err
		}
	}
	info.HEAD = adv.Head
	info.References = adv.References
	info.Peeled = adv.Peeled
	return info, nil
}

// Pull fetches from remoteName and fast-forwards (or merges) the current
// branch onto its updated remote-tracking ref.
func (r *Repository) Pull(ctx context.Context, remoteName string, opts FetchOptions) error {
	return engineerr.WithStack(r.pull(ctx, remoteName, opts))
}

func (r *Repository) pull(ctx context.Context, remoteName string, opts FetchOptions) error {
	if err := r.Fetch(ctx, remoteName, opts); err != nil {
		return err
	}

	head, err := r.Reference(plumbing.HEAD)
	if err != nil {
		return err
	}
	if head.Type() != plumbing.SymbolicReference {
		return engineerr.Internal("cannot pull with a detached HEAD", "Repository.Pull")
	}
	branch := head.Target().Short()

	tracking := plumbing.NewRemoteReferenceName(remoteName, branch)
	remoteRef, err := r.Reference(tracking)
	if err != nil {
		return engineerr.NotFound("remote-tracking ref "+tracking.String(), "Repository.Pull", err)
	}

	_, err = r.Merge(MergeOptions{Theirs: remoteRef.Hash()})
	return err
}
