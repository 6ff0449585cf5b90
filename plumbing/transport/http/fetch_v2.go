package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
	"github.com/go-git/git-engine/plumbing/transport"
)

// LsRefsV2 lists the remote's refs through the protocol-v2 ls-refs
// command, returning them in the same AdvRefs shape v1 discovery
// produces.
func (t *Transport) LsRefsV2(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, prefixes []string) (*packp.AdvRefs, error) {
	req := &packp.LsRefsRequest{
		Prefixes: prefixes,
		Symrefs:  true,
		Peel:     true,
		Agent:    capability.DefaultAgent(),
	}
	var body bytes.Buffer
	if err := req.Encode(&body); err != nil {
		return nil, err
	}

	res, err := t.doV2(ctx, ep, auth, &body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return packp.DecodeLsRefsResponse(res.Body)
}

// FetchV2 performs one protocol-v2 fetch command: wants and haves in a
// single stateless round ending in "done", then the sectioned response
// (acknowledgments, optional shallow-info, side-band packfile).
//
// caps is the capability list from v2 discovery; a deepen request against
// a server whose fetch command does not announce "shallow" fails with a
// RemoteCapabilityError rather than being silently dropped.
func (t *Transport) FetchV2(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, caps *capability.List, req *FetchRequest) (*FetchResult, error) {
	if !caps.Supports(capability.Capability("fetch")) {
		return nil, engineerr.RemoteCapability("fetch", "", "transport.http.FetchV2")
	}
	if req.Depth > 0 && !v2FetchSupports(caps, "shallow") {
		return nil, engineerr.RemoteCapability("shallow", fmt.Sprintf("deepen %d", req.Depth), "transport.http.FetchV2")
	}

	v2req := &packp.FetchRequestV2{
		Wants:      req.Wants,
		Haves:      req.Haves,
		Done:       true,
		OFSDelta:   true,
		NoProgress: req.NoProgress,
		IncludeTag: req.IncludeTags,
		Depth:      req.Depth,
		Agent:      capability.DefaultAgent(),
	}
	var body bytes.Buffer
	if err := v2req.Encode(&body); err != nil {
		return nil, err
	}

	res, err := t.doV2(ctx, ep, auth, &body)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	_, hasPack, err := packp.DecodeFetchResponseV2(res.Body)
	if err != nil {
		return nil, err
	}
	if !hasPack {
		return nil, fmt.Errorf("transport: fetch response carried no packfile section")
	}

	// Within the packfile section every packet is side-band framed, the
	// same demux as a v1 side-band-64k response.
	dmx := pktline.NewDemux(res.Body)
	packBytes, err := io.ReadAll(dmx.Pack())
	if err != nil {
		return nil, err
	}
	if err := dmx.Err(); err != nil {
		return nil, fmt.Errorf("transport: remote reported error: %w", err)
	}
	return &FetchResult{Packfile: packBytes, Progress: dmx.Progress()}, nil
}

// doV2 POSTs a v2 command body to the upload-pack endpoint with the
// Git-Protocol header set.
func (t *Transport) doV2(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, body io.Reader) (*http.Response, error) {
	url := ep.String() + "/" + UploadPackService
	return t.do(ctx, "POST", url, ep, auth, body,
		"application/x-git-upload-pack-request",
		map[string]string{"Git-Protocol": "version=2"})
}

// v2FetchSupports reports whether the v2 "fetch" capability's value list
// contains feature (values arrive space-separated, e.g. "shallow
// wait-for-done").
func v2FetchSupports(caps *capability.List, feature string) bool {
	for _, v := range caps.Get(capability.Capability("fetch")) {
		for _, f := range strings.Fields(v) {
			if f == feature {
				return true
			}
		}
	}
	return false
}
