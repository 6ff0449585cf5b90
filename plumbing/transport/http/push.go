package http

import (
	"bytes"
	"context"
	"io"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
	"github.com/go-git/git-engine/plumbing/transport"
)

// PushRequest carries the caller-built ref-update commands and packfile
// for one receive-pack session.
type PushRequest struct {
	Commands []*packp.Command
	Packfile io.Reader
	Atomic   bool
}

// Push performs a receive-pack request/response cycle, reporting a
// PushRejectedError per-ref via ReportStatus.Error when the server
// declines an update (e.g. not-fast-forward, tag-exists).
func (t *Transport) Push(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, adv *packp.AdvRefs, req *PushRequest) (*packp.ReportStatus, error) {
	ur := packp.NewReferenceUpdateRequest()
	ur.Commands = req.Commands

	if adv.Capabilities.Supports(capability.ReportStatus) {
		_ = ur.Capabilities.Add(capability.ReportStatus)
	}
	if req.Atomic && adv.Capabilities.Supports(capability.Atomic) {
		_ = ur.Capabilities.Add(capability.Atomic)
	}
	if adv.Capabilities.Supports(capability.Agent) {
		_ = ur.Capabilities.Add(capability.Agent, capability.DefaultAgent())
	}

	var head bytes.Buffer
	ur.Packfile = nil
	if err := ur.Encode(&head); err != nil {
		return nil, err
	}

	body := io.MultiReader(&head, req.Packfile)

	url := ep.String() + "/" + ReceivePackService
	res, err := t.do(ctx, "POST", url, ep, auth, body, "application/x-git-receive-pack-request", nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if !ur.Capabilities.Supports(capability.ReportStatus) {
		return packp.NewReportStatus(), nil
	}

	var r io.Reader = res.Body
	if ur.Capabilities.Supports(capability.Sideband64k) {
		r = pktline.NewDemux(res.Body).Pack()
	}

	rs := packp.NewReportStatus()
	if err := rs.Decode(r); err != nil {
		return nil, err
	}
	if err := rs.Error(); err != nil {
		return rs, engineerr.PushRejected(rejectionReason(rs), "transport.http.Push")
	}
	return rs, nil
}

// rejectionReason picks the first non-ok per-ref status as the reason
// surfaced on a PushRejectedError, falling back to the unpack status.
func rejectionReason(rs *packp.ReportStatus) string {
	for _, c := range rs.CommandStatuses {
		if c.Status != "ok" {
			return c.Status
		}
	}
	return rs.UnpackStatus
}
