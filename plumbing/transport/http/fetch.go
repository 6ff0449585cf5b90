package http

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
	"github.com/go-git/git-engine/plumbing/transport"
)

// FetchRequest carries the caller-resolved want/have sets for one fetch
// negotiation, over either protocol version.
type FetchRequest struct {
	Wants       []plumbing.Hash
	Haves       []plumbing.Hash
	Depth       int
	NoProgress  bool
	IncludeTags bool
}

// FetchResult is the successful outcome of Fetch: the raw packfile bytes
// ready for storage.Storage.InstallPack and the side-band progress text
// the server sent.
type FetchResult struct {
	Packfile []byte
	Progress []byte
}

// Fetch performs a v1 upload-pack request/response cycle: wants, then
// every have in a single negotiation round (stateless-RPC mode, as a
// single HTTP POST can only carry one round trip), terminated by "done",
// then decodes the ACK/NAK and reads the side-band-demultiplexed
// packfile.
func (t *Transport) Fetch(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, adv *packp.AdvRefs, req *FetchRequest) (*FetchResult, error) {
	ur := packp.NewUploadRequest()
	ur.Wants = req.Wants
	if req.Depth > 0 {
		if !adv.Capabilities.Supports(capability.Shallow) {
			return nil, engineerr.RemoteCapability("shallow", fmt.Sprintf("deepen %d", req.Depth), "transport.http.Fetch")
		}
		ur.Depth = packp.DepthCommits(req.Depth)
		_ = ur.Capabilities.Add(capability.Shallow)
	}

	wantCaps := []capability.Capability{capability.OFSDelta, capability.Sideband64k}
	if req.NoProgress {
		wantCaps = append(wantCaps, capability.NoProgress)
	}
	if req.IncludeTags {
		wantCaps = append(wantCaps, capability.IncludeTag)
	}
	for _, c := range wantCaps {
		if adv.Capabilities.Supports(c) {
			if err := ur.Capabilities.Add(c); err != nil {
				return nil, err
			}
		}
	}
	if adv.Capabilities.Supports(capability.Agent) {
		_ = ur.Capabilities.Add(capability.Agent, capability.DefaultAgent())
	}

	var body bytes.Buffer
	if err := ur.Encode(&body); err != nil {
		return nil, err
	}
	haves := &packp.UploadHaves{Haves: req.Haves, Done: true}
	if err := haves.Encode(&body, true); err != nil {
		return nil, err
	}

	url := ep.String() + "/" + UploadPackService
	res, err := t.do(ctx, "POST", url, ep, auth, &body, "application/x-git-upload-pack-request", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if req.Depth > 0 {
		su := &packp.ShallowUpdate{}
		if err := su.Decode(res.Body); err != nil {
			return nil, err
		}
	}

	sr := &packp.ServerResponse{}
	multiAck := ur.Capabilities.Supports(capability.MultiACK) || ur.Capabilities.Supports(capability.MultiACKDetailed)
	if err := sr.Decode(res.Body, multiAck); err != nil {
		return nil, err
	}

	var packReader io.Reader = res.Body
	var progress []byte
	if ur.Capabilities.Supports(capability.Sideband64k) || ur.Capabilities.Supports(capability.Sideband) {
		dmx := pktline.NewDemux(res.Body)
		packBytes, err := io.ReadAll(dmx.Pack())
		if err != nil {
			return nil, err
		}
		if err := dmx.Err(); err != nil {
			return nil, fmt.Errorf("transport: remote reported error: %w", err)
		}
		progress = dmx.Progress()
		return &FetchResult{Packfile: packBytes, Progress: progress}, nil
	}

	packBytes, err := io.ReadAll(packReader)
	if err != nil {
		return nil, err
	}
	return &FetchResult{Packfile: packBytes}, nil
}
