package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
	"github.com/go-git/git-engine/plumbing/transport"
)

const (
	oidMain = "a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67"
	oidTag  = "36f5b5454be24d0aca7c2f8ac7b7fb4a93a2ed4b"
)

func advertisementV1(service string) []byte {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "# service="+service)
	_ = pktline.WriteFlush(&buf)
	_, _ = pktline.WritePacketln(&buf,
		oidMain+" HEAD\x00side-band-64k ofs-delta shallow symref=HEAD:refs/heads/main agent=git/2.41.0")
	_, _ = pktline.WritePacketln(&buf, oidMain+" refs/heads/main")
	_, _ = pktline.WritePacketln(&buf, oidTag+" refs/tags/v1.0.0")
	_ = pktline.WriteFlush(&buf)
	return buf.Bytes()
}

func endpointFor(t *testing.T, srv *httptest.Server) *transport.Endpoint {
	t.Helper()
	ep, err := transport.NewEndpoint(srv.URL, false)
	require.NoError(t, err)
	return ep
}

func TestDiscoverV1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info/refs", r.URL.Path)
		require.Equal(t, "git-upload-pack", r.URL.Query().Get("service"))
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		_, _ = w.Write(advertisementV1("git-upload-pack"))
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	adv, v2, err := tr.Discover(context.Background(), endpointFor(t, srv), nil, UploadPackService, false)
	require.NoError(t, err)
	require.False(t, v2)
	require.Equal(t, plumbing.NewHash(oidMain), adv.References["refs/heads/main"])
	require.True(t, adv.Capabilities.Supports(capability.Sideband64k))
	require.NotNil(t, adv.Head)
	require.Equal(t, plumbing.NewHash(oidMain), *adv.Head)
}

func TestDiscoverV2CapabilityAdvertisement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "version=2", r.Header.Get("Git-Protocol"))
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, "# service=git-upload-pack")
		_ = pktline.WriteFlush(&buf)
		_, _ = pktline.WritePacketln(&buf, "version 2")
		_, _ = pktline.WritePacketln(&buf, "agent=git/2.41.0")
		_, _ = pktline.WritePacketln(&buf, "ls-refs")
		_, _ = pktline.WritePacketln(&buf, "fetch=shallow")
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	adv, v2, err := tr.Discover(context.Background(), endpointFor(t, srv), nil, UploadPackService, true)
	require.NoError(t, err)
	require.True(t, v2)
	require.True(t, adv.Capabilities.Supports(capability.Capability("ls-refs")))
	require.True(t, adv.Capabilities.Supports(capability.Capability("fetch")))
}

func TestDiscoverRejectsNonSmartResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>this is a dumb server</html>")
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	_, _, err := tr.Discover(context.Background(), endpointFor(t, srv), nil, UploadPackService, false)
	var sh *engineerr.SmartHTTPError
	require.True(t, errors.As(err, &sh))
	require.Contains(t, sh.Preview, "<html>")
}

func TestFetchV1SidebandPackfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info/refs" {
			w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
			_, _ = w.Write(advertisementV1("git-upload-pack"))
			return
		}
		require.Equal(t, "/git-upload-pack", r.URL.Path)
		require.Equal(t, "application/x-git-upload-pack-request", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, "NAK")
		_, _ = pktline.WritePacket(&buf, append([]byte{pktline.SidebandData}, []byte("PACKBYTES")...))
		_, _ = pktline.WritePacket(&buf, append([]byte{pktline.SidebandProgress}, []byte("counting objects")...))
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	ep := endpointFor(t, srv)
	adv, _, err := tr.Discover(context.Background(), ep, nil, UploadPackService, false)
	require.NoError(t, err)

	res, err := tr.Fetch(context.Background(), ep, nil, adv, &FetchRequest{
		Wants: []plumbing.Hash{plumbing.NewHash(oidMain)},
	})
	require.NoError(t, err)
	require.Equal(t, "PACKBYTES", string(res.Packfile))
	require.Equal(t, "counting objects", string(res.Progress))
}

func TestFetchDepthWithoutShallowCapability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-git-upload-pack-advertisement")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, "# service=git-upload-pack")
		_ = pktline.WriteFlush(&buf)
		// No shallow capability advertised.
		_, _ = pktline.WritePacketln(&buf, oidMain+" refs/heads/main\x00side-band-64k")
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	ep := endpointFor(t, srv)
	adv, _, err := tr.Discover(context.Background(), ep, nil, UploadPackService, false)
	require.NoError(t, err)

	_, err = tr.Fetch(context.Background(), ep, nil, adv, &FetchRequest{
		Wants: []plumbing.Hash{plumbing.NewHash(oidMain)},
		Depth: 1,
	})
	var rc *engineerr.RemoteCapabilityError
	require.True(t, errors.As(err, &rc))
	require.Equal(t, "shallow", rc.Capability)
}

func TestLsRefsV2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/git-upload-pack", r.URL.Path)
		require.Equal(t, "version=2", r.Header.Get("Git-Protocol"))

		w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, oidMain+" HEAD symref-target:refs/heads/main")
		_, _ = pktline.WritePacketln(&buf, oidMain+" refs/heads/main")
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	adv, err := tr.LsRefsV2(context.Background(), endpointFor(t, srv), nil, []string{"refs/heads/"})
	require.NoError(t, err)
	require.Equal(t, plumbing.NewHash(oidMain), adv.References["refs/heads/main"])
	require.NotNil(t, adv.Head)
}

func TestFetchV2PackfileSections(t *testing.T) {
	caps := capability.NewList()
	require.NoError(t, caps.Add(capability.Capability("fetch"), "shallow"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, "acknowledgments")
		_, _ = pktline.WritePacketln(&buf, "ready")
		_ = pktline.WriteDelim(&buf)
		_, _ = pktline.WritePacketln(&buf, "packfile")
		_, _ = pktline.WritePacket(&buf, append([]byte{pktline.SidebandData}, []byte("V2PACK")...))
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	res, err := tr.FetchV2(context.Background(), endpointFor(t, srv), nil, caps, &FetchRequest{
		Wants: []plumbing.Hash{plumbing.NewHash(oidMain)},
	})
	require.NoError(t, err)
	require.Equal(t, "V2PACK", string(res.Packfile))
}

func TestFetchV2RequiresFetchCommand(t *testing.T) {
	tr := NewTransport(nil)
	ep := &transport.Endpoint{Protocol: "http", Host: "localhost", Path: "/r"}

	_, err := tr.FetchV2(context.Background(), ep, nil, capability.NewList(), &FetchRequest{
		Wants: []plumbing.Hash{plumbing.NewHash(oidMain)},
	})
	var rc *engineerr.RemoteCapabilityError
	require.True(t, errors.As(err, &rc))
	require.Equal(t, "fetch", rc.Capability)
}

func TestPushReportStatusRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/info/refs" {
			w.Header().Set("Content-Type", "application/x-git-receive-pack-advertisement")
			var buf bytes.Buffer
			_, _ = pktline.WritePacketln(&buf, "# service=git-receive-pack")
			_ = pktline.WriteFlush(&buf)
			_, _ = pktline.WritePacketln(&buf, oidMain+" refs/heads/main\x00report-status delete-refs")
			_ = pktline.WriteFlush(&buf)
			_, _ = w.Write(buf.Bytes())
			return
		}
		w.Header().Set("Content-Type", "application/x-git-receive-pack-result")
		var buf bytes.Buffer
		_, _ = pktline.WritePacketln(&buf, "unpack ok")
		_, _ = pktline.WritePacketln(&buf, "ng refs/heads/main non-fast-forward")
		_ = pktline.WriteFlush(&buf)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	tr := NewTransport(nil)
	ep := endpointFor(t, srv)
	adv, _, err := tr.Discover(context.Background(), ep, nil, ReceivePackService, false)
	require.NoError(t, err)

	_, err = tr.Push(context.Background(), ep, nil, adv, &PushRequest{
		Commands: []*packp.Command{{
			Name: "refs/heads/main",
			Old:  plumbing.NewHash(oidMain),
			New:  plumbing.NewHash(oidTag),
		}},
		Packfile: bytes.NewReader(nil),
	})
	var pr *engineerr.PushRejectedError
	require.True(t, errors.As(err, &pr))
	require.Contains(t, pr.Reason, "non-fast-forward")
}
