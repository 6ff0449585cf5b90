// Package http implements the smart-HTTP client transport: ref
// discovery over GET, and fetch/push over POST, each carrying pkt-line
// bodies built from plumbing/protocol/packp.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/go-git/git-engine/engineerr"
	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
	"github.com/go-git/git-engine/plumbing/protocol/packp"
	"github.com/go-git/git-engine/plumbing/protocol/packp/capability"
	"github.com/go-git/git-engine/plumbing/transport"
)

const (
	UploadPackService  = "git-upload-pack"
	ReceivePackService = "git-receive-pack"
)

// Logger traces requests and responses at debug level. Sessions that want
// structured transport tracing swap in their own FieldLogger; the default
// is the logrus standard logger, which stays silent below InfoLevel.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// Transport performs smart-HTTP requests against a remote
// It holds no per-remote state; every method takes the endpoint and auth
// explicitly, a stateless client.
type Transport struct {
	Client *http.Client
}

// NewTransport returns a Transport using client, or http.DefaultClient if
// client is nil.
func NewTransport(client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{Client: client}
}

func (t *Transport) do(ctx context.Context, method, url string, ep *transport.Endpoint, auth transport.AuthMethod, body io.Reader, contentType string, extraHeaders map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", capability.DefaultAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", strings.Replace(contentType, "-request", "-result", 1))
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}
	if auth != nil {
		auth.SetAuth(req.Header.Set)
	}

	Logger.WithFields(logrus.Fields{"method": method, "url": url}).Debug("smart-http request")
	res, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	Logger.WithFields(logrus.Fields{"url": url, "status": res.StatusCode}).Debug("smart-http response")
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		preview := make([]byte, 256)
		n, _ := io.ReadFull(res.Body, preview)
		return nil, engineerr.SmartHTTP(string(preview[:n]), res.Status, "transport.http")
	}
	return res, nil
}

// Discover performs the GET info/refs?service=<service> request and parses
// the advertisement. protocolV2 requests
// protocol version 2 via the Git-Protocol header; the returned bool
// reports whether the server actually spoke v2.
func (t *Transport) Discover(ctx context.Context, ep *transport.Endpoint, auth transport.AuthMethod, service string, protocolV2 bool) (*packp.AdvRefs, bool, error) {
	url := fmt.Sprintf("%s/info/refs?service=%s", ep.String(), service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", capability.DefaultAgent())
	if protocolV2 {
		req.Header.Set("Git-Protocol", "version=2")
	}
	if auth != nil {
		auth.SetAuth(req.Header.Set)
	}

	res, err := t.Client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer res.Body.Close()

	wantCT := fmt.Sprintf("application/x-%s-advertisement", service)
	ct := res.Header.Get("Content-Type")
	if res.StatusCode < 200 || res.StatusCode >= 300 || !strings.HasPrefix(ct, wantCT) {
		preview := make([]byte, 256)
		n, _ := io.ReadFull(res.Body, preview)
		return nil, false, engineerr.SmartHTTP(string(preview[:n]), res.Status, "transport.http.Discover")
	}

	s := pktline.NewScanner(res.Body)
	if !s.Scan() {
		return nil, false, fmt.Errorf("transport: empty discovery response")
	}
	first := strings.TrimSuffix(string(s.Bytes()), "\n")
	if !strings.HasPrefix(first, "# service="+service) {
		return nil, false, fmt.Errorf("transport: unexpected service header %q", first)
	}
	// A flush-pkt separates the "# service=" line from the advertisement.
	if s.Scan() && !s.IsFlush() {
		return nil, false, fmt.Errorf("transport: missing flush after service header")
	}

	rest, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}

	v2 := strings.HasPrefix(strings.TrimSpace(string(peekLine(rest))), "version 2")
	if v2 {
		ar := &packp.AdvRefs{Capabilities: capability.NewList(), References: map[string]plumbing.Hash{}, Peeled: map[string]plumbing.Hash{}}
		if err := decodeV2Capabilities(rest, ar.Capabilities); err != nil {
			return nil, false, err
		}
		return ar, true, nil
	}

	ar := packp.NewAdvRefs()
	if err := ar.Decode(bytes.NewReader(rest)); err != nil {
		return nil, false, err
	}
	return ar, false, nil
}

func peekLine(b []byte) []byte {
	s := pktline.NewScanner(bytes.NewReader(b))
	if s.Scan() && !s.IsFlush() {
		return s.Bytes()
	}
	return nil
}

// decodeV2Capabilities reads the pkt-line list of "key[=value]" capability
// lines a v2 discovery response carries ("version 2" then one
// capability per line up to a flush).
func decodeV2Capabilities(rest []byte, caps *capability.List) error {
	s := pktline.NewScanner(bytes.NewReader(rest))
	for s.Scan() {
		if s.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(s.Bytes()), "\n")
		if line == "version 2" {
			continue
		}
		name, val := line, ""
		if idx := strings.IndexByte(line, '='); idx >= 0 {
			name, val = line[:idx], line[idx+1:]
		}
		var args []string
		if val != "" {
			args = append(args, val)
		}
		if err := caps.Add(capability.Capability(name), args...); err != nil {
			return err
		}
	}
	return s.Err()
}
