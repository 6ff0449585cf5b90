package packp

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-git/git-engine/plumbing"
	"github.com/go-git/git-engine/plumbing/format/pktline"
)

func TestLsRefsRequestEncode(t *testing.T) {
	req := &LsRefsRequest{
		Prefixes: []string{"refs/heads/"},
		Symrefs:  true,
		Peel:     true,
	}
	var buf bytes.Buffer
	require.NoError(t, req.Encode(&buf))

	got := buf.String()
	require.Contains(t, got, "command=ls-refs\n")
	require.Contains(t, got, "0001")
	require.Contains(t, got, "symrefs\n")
	require.Contains(t, got, "peel\n")
	require.Contains(t, got, "ref-prefix refs/heads/\n")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("0000")))
}

func TestDecodeLsRefsResponse(t *testing.T) {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67 HEAD symref-target:refs/heads/main")
	_, _ = pktline.WritePacketln(&buf, "a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67 refs/heads/main")
	_, _ = pktline.WritePacketln(&buf, "36f5b5454be24d0aca7c2f8ac7b7fb4a93a2ed4b refs/tags/v1.0.0 peeled:a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67")
	_ = pktline.WriteFlush(&buf)

	adv, err := DecodeLsRefsResponse(&buf)
	require.NoError(t, err)

	want := plumbing.NewHash("a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67")
	require.NotNil(t, adv.Head)
	require.Equal(t, want, *adv.Head)
	require.Equal(t, want, adv.References["refs/heads/main"])
	require.Equal(t, want, adv.Peeled["refs/tags/v1.0.0"])
	require.Equal(t,
		plumbing.NewHash("36f5b5454be24d0aca7c2f8ac7b7fb4a93a2ed4b"),
		adv.References["refs/tags/v1.0.0"])
}

func TestDecodeLsRefsResponseRejectsMalformed(t *testing.T) {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "not-a-hash refs/heads/main")
	_ = pktline.WriteFlush(&buf)

	_, err := DecodeLsRefsResponse(&buf)
	require.Error(t, err)
}

func TestFetchRequestV2Encode(t *testing.T) {
	want := plumbing.NewHash("a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67")
	have := plumbing.NewHash("36f5b5454be24d0aca7c2f8ac7b7fb4a93a2ed4b")

	req := &FetchRequestV2{
		Wants:    []plumbing.Hash{want},
		Haves:    []plumbing.Hash{have},
		Done:     true,
		OFSDelta: true,
		Depth:    3,
	}
	var buf bytes.Buffer
	require.NoError(t, req.Encode(&buf))

	got := buf.String()
	require.Contains(t, got, "command=fetch\n")
	require.Contains(t, got, "want "+want.String()+"\n")
	require.Contains(t, got, "have "+have.String()+"\n")
	require.Contains(t, got, "ofs-delta\n")
	require.Contains(t, got, "deepen 3\n")
	require.Contains(t, got, "done\n")
}

func TestFetchRequestV2RequiresWants(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, (&FetchRequestV2{}).Encode(&buf))
}

func TestDecodeFetchResponseV2WithPackfile(t *testing.T) {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "acknowledgments")
	_, _ = pktline.WritePacketln(&buf, "ACK a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67")
	_, _ = pktline.WritePacketln(&buf, "ready")
	_ = pktline.WriteDelim(&buf)
	_, _ = pktline.WritePacketln(&buf, "packfile")
	// Side-band framed pack bytes follow the section header.
	_, _ = pktline.WritePacket(&buf, append([]byte{pktline.SidebandData}, []byte("PACKDATA")...))
	_ = pktline.WriteFlush(&buf)

	res, hasPack, err := DecodeFetchResponseV2(&buf)
	require.NoError(t, err)
	require.True(t, hasPack)
	require.True(t, res.Ready)
	require.Len(t, res.Acks, 1)

	// The reader is positioned at the side-band pack data.
	d := pktline.NewDemux(&buf)
	pack, err := io.ReadAll(d.Pack())
	require.NoError(t, err)
	require.Equal(t, "PACKDATA", string(pack))
}

func TestDecodeFetchResponseV2AcknowledgmentsOnly(t *testing.T) {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "acknowledgments")
	_, _ = pktline.WritePacketln(&buf, "NAK")
	_ = pktline.WriteFlush(&buf)

	res, hasPack, err := DecodeFetchResponseV2(&buf)
	require.NoError(t, err)
	require.False(t, hasPack)
	require.Empty(t, res.Acks)
}

func TestDecodeFetchResponseV2ShallowInfo(t *testing.T) {
	var buf bytes.Buffer
	_, _ = pktline.WritePacketln(&buf, "shallow-info")
	_, _ = pktline.WritePacketln(&buf, "shallow a63c5d834b2b2a3c5ebf78b1b9c35cb8be724b67")
	_ = pktline.WriteDelim(&buf)
	_, _ = pktline.WritePacketln(&buf, "packfile")

	res, hasPack, err := DecodeFetchResponseV2(&buf)
	require.NoError(t, err)
	require.True(t, hasPack)
	require.Len(t, res.Shallows, 1)
}
