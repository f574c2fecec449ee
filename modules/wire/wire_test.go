package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePktLine(t *testing.T) {
	payload := []byte("want " + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n")
	b, err := Encode(payload)
	require.NoError(t, err)
	require.Equal(t, "0032", string(b[:4]))

	s := NewScanner(bytes.NewReader(b))
	require.True(t, s.Scan())
	require.Equal(t, payload, s.Bytes())
	require.False(t, s.Flush())
}

func TestFlushAndDelimPackets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePacket(&buf, []byte("hello\n")))
	require.NoError(t, WriteFlush(&buf))
	require.NoError(t, WriteDelim(&buf))

	s := NewScanner(&buf)
	require.True(t, s.Scan())
	require.Equal(t, "hello\n", string(s.Bytes()))
	require.True(t, s.Scan())
	require.True(t, s.Flush())
	require.True(t, s.Scan())
	require.True(t, s.Delim())
}

func TestHexDecodeRejectsNonHex(t *testing.T) {
	_, err := hexDecode([lenSize]byte{'w', 'w', 'w', 'w'})
	require.Error(t, err)
}

func TestAsciiHex16(t *testing.T) {
	require.Equal(t, "0000", asciiHex16(0))
	require.Equal(t, "ffff", asciiHex16(0xffff))
	require.Equal(t, "001e", asciiHex16(30))
}

func TestRefAdvertisementRoundTrip(t *testing.T) {
	refs := []RefAdvertisement{
		{SHA: "1111111111111111111111111111111111111111", Ref: "refs/heads/main"},
		{SHA: "2222222222222222222222222222222222222222", Ref: "refs/heads/dev"},
	}
	caps := NewCapabilities("multi_ack_detailed", "side-band-64k", "agent=gitcore/1.0")

	var buf bytes.Buffer
	require.NoError(t, WriteRefAdvertisement(&buf, "", refs, caps))

	got, gotCaps, err := ReadRefAdvertisement(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "refs/heads/dev", got[0].Ref)
	require.Equal(t, "refs/heads/main", got[1].Ref)
	require.True(t, gotCaps.Has("multi_ack_detailed"))
	require.Equal(t, "gitcore/1.0", gotCaps.Get("agent"))
}

func TestUploadPackRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WritePacket(&buf, []byte("want 1111111111111111111111111111111111111111\n"))
	WritePacket(&buf, []byte("have 2222222222222222222222222222222222222222\n"))
	WritePacket(&buf, []byte("done\n"))

	req, err := ReadUploadPackRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"1111111111111111111111111111111111111111"}, req.Wants)
	require.Equal(t, []string{"2222222222222222222222222222222222222222"}, req.Haves)
	require.True(t, req.Done)
}

func TestUploadPackRequestCapabilitiesAndShallowDirectives(t *testing.T) {
	var buf bytes.Buffer
	WritePacket(&buf, []byte("want 1111111111111111111111111111111111111111\x00multi_ack_detailed ofs-delta\n"))
	WritePacket(&buf, []byte("want 3333333333333333333333333333333333333333\n"))
	WritePacket(&buf, []byte("deepen-since 1700000000\n"))
	WritePacket(&buf, []byte("deepen-not refs/heads/main\n"))
	WritePacket(&buf, []byte("filter blob:none\n"))
	WritePacket(&buf, []byte("done\n"))

	req, err := ReadUploadPackRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, []string{"1111111111111111111111111111111111111111", "3333333333333333333333333333333333333333"}, req.Wants)
	require.True(t, req.Caps.Has("multi_ack_detailed"))
	require.True(t, req.Caps.Has("ofs-delta"))
	require.Equal(t, "1700000000", req.DeepenSince)
	require.Equal(t, []string{"refs/heads/main"}, req.DeepenNot)
	require.Equal(t, "blob:none", req.Filter)
	require.True(t, req.Done)
}

func TestSidebandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sw := NewSidebandWriter(&buf, SidebandData)
	_, err := sw.Write([]byte("pack-bytes"))
	require.NoError(t, err)
	require.NoError(t, WriteFlush(&buf))

	var data, progress bytes.Buffer
	require.NoError(t, SidebandDemux(&buf, &data, &progress))
	require.Equal(t, "pack-bytes", data.String())
	require.Equal(t, "", progress.String())
}
