package deobf_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiang0681/unrpyc/internal/deobf"
	"github.com/jiang0681/unrpyc/internal/diag"
	"github.com/jiang0681/unrpyc/internal/pickle"
	pt "github.com/jiang0681/unrpyc/internal/pickle/pickletest"
	"github.com/jiang0681/unrpyc/internal/rpyc"
)

func sampleStream() []byte {
	return pt.Script(nil, pt.Node("Pass", 1))
}

func TestCleanInputIsByteIdentical(t *testing.T) {
	stream := sampleStream()
	raw := pt.Container(stream)
	p := deobf.New(deobf.ModeDefault)

	cleaned, findings := p.Clean(raw)
	assert.Empty(t, findings)
	assert.True(t, bytes.Equal(raw, cleaned), "container must pass through unchanged")

	res, err := p.Extract(raw)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(raw, res.Container))
	assert.True(t, bytes.Equal(stream, res.Stream), "stream must pass through unchanged")
	assert.Empty(t, res.Findings)
	assert.Equal(t, "slot", res.Strategy)
}

func TestOutOfOrderSlotsAreCanonicalized(t *testing.T) {
	stream := sampleStream()
	slot1 := rpyc.Deflate(stream)
	slot2 := rpyc.Deflate([]byte("x"))
	start := uint32(len(rpyc.Magic) + 36)

	var buf bytes.Buffer
	buf.WriteString(rpyc.Magic)
	for _, e := range [][3]uint32{
		{2, start + uint32(len(slot1)), uint32(len(slot2))},
		{1, start, uint32(len(slot1))},
	} {
		var b [12]byte
		binary.LittleEndian.PutUint32(b[0:], e[0])
		binary.LittleEndian.PutUint32(b[4:], e[1])
		binary.LittleEndian.PutUint32(b[8:], e[2])
		buf.Write(b[:])
	}
	buf.Write(make([]byte, 12))
	buf.Write(slot1)
	buf.Write(slot2)

	res, err := deobf.New(deobf.ModeDefault).Extract(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, "slot-order", res.Findings[0].Signature)
	assert.True(t, res.Findings[0].Resolved)
	d := res.Findings[0].Diagnostic()
	assert.Equal(t, diag.CodeContainerSlotOrder, d.Code)
	assert.Equal(t, diag.SeverityNote, d.Severity)

	c, err := rpyc.Parse(res.Container)
	require.NoError(t, err)
	assert.False(t, c.OutOfOrder)
}

func TestCorruptedSlotLengthIsRepaired(t *testing.T) {
	stream := sampleStream()
	raw := pt.Container(stream)
	// slot 1 length field lives at offset 18
	binary.LittleEndian.PutUint32(raw[18:], 3)

	_, err := rpyc.Parse(raw)
	require.NoError(t, err)

	res, err := deobf.New(deobf.ModeDefault).Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	assert.Equal(t, "slot-length", res.Findings[0].Signature)
}

func TestBadMagicFailsFastInDefaultMode(t *testing.T) {
	raw := pt.Container(sampleStream())
	copy(raw, "RENPY RPC9")

	_, err := deobf.New(deobf.ModeDefault).Extract(raw)
	assert.True(t, errors.Is(err, diag.ErrFormatMismatch), "got %v", err)

	_, err = deobf.New(deobf.ModeDefault).Extract([]byte("definitely not a script"))
	assert.True(t, errors.Is(err, diag.ErrFormatMismatch), "got %v", err)
}

func TestHeaderScanRecoversMovedHeader(t *testing.T) {
	stream := sampleStream()
	raw := pt.Container(stream)
	copy(raw, "XXXXXXXXXX")

	res, err := deobf.New(deobf.ModeTryHarder).Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	assert.Equal(t, "header-scan", res.Strategy)
}

func TestZlibScanRecoversWithoutHeader(t *testing.T) {
	stream := sampleStream()
	raw := append([]byte("garbage-prefix-without-any-table"), rpyc.Deflate(stream)...)

	res, err := deobf.New(deobf.ModeTryHarder).Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	assert.Equal(t, "zlib-scan", res.Strategy)
}

func TestLayeredEncodingPeeledOnlyWhenTryingHarder(t *testing.T) {
	stream := sampleStream()
	encoded := []byte(base64.StdEncoding.EncodeToString(rpyc.Deflate(stream)))
	raw := rpyc.Build(map[uint32][]byte{1: rpyc.Deflate(encoded)})

	res, err := deobf.New(deobf.ModeDefault).Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, encoded, res.Stream, "default mode leaves unknown payloads alone")

	res, err = deobf.New(deobf.ModeTryHarder).Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
}

func TestDecoyGlobalRemoved(t *testing.T) {
	stream := sampleStream()
	decoy := append([]byte{}, stream[:2]...)
	decoy = append(decoy, "cos\nsystem\n0"...)
	decoy = append(decoy, stream[2:]...)

	res, err := deobf.New(deobf.ModeDefault).Extract(pt.Container(decoy))
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	assert.Equal(t, "decoy-global", res.Findings[0].Signature)
}

func TestDecoyStackGlobalRemoved(t *testing.T) {
	stream := sampleStream()
	decoy := append([]byte{}, stream[:2]...)
	decoy = append(decoy, "\x8c\x02os\x8c\x06system\x930"...)
	decoy = append(decoy, stream[2:]...)

	res, err := deobf.New(deobf.ModeDefault).Extract(pt.Container(decoy))
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, "decoy-global", res.Findings[0].Signature)
	assert.True(t, res.Findings[0].Resolved)
}

func TestMemoizedStackGlobalKept(t *testing.T) {
	stream := sampleStream()
	decoy := append([]byte{}, stream[:2]...)
	decoy = append(decoy, "\x8c\x02os\x94\x8c\x06system\x930"...)
	decoy = append(decoy, stream[2:]...)

	res, err := deobf.New(deobf.ModeDefault).Extract(pt.Container(decoy))
	require.NoError(t, err)
	assert.Equal(t, decoy, res.Stream)
}

func TestTrailingDataIsUnresolved(t *testing.T) {
	stream := append(sampleStream(), "junk"...)
	res, err := deobf.New(deobf.ModeDefault).Extract(pt.Container(stream))
	require.NoError(t, err)
	assert.Equal(t, stream, res.Stream)
	assert.True(t, res.Unresolved())
	assert.Equal(t, diag.CodeUnresolvedObfuscation, res.Findings[0].Diagnostic().Code)
}

func TestLineNumberRepair(t *testing.T) {
	first := pt.Node("Pass", 3)
	tampered := pt.Node("Python", 0)
	tampered.Set("linenumber", "x")
	tampered.Set("code", pt.Code("a = 1", 9))

	load := func() []pickle.Value {
		res, err := pickle.Load(pt.Dumps(pt.List{first, tampered}))
		require.NoError(t, err)
		return res.Root.(*pickle.List).Items
	}

	stmts := load()
	fs := deobf.New(deobf.ModeDefault).FixRecords(stmts)
	require.Len(t, fs, 1)
	line, _ := stmts[1].(*pickle.Object).Attr("linenumber")
	assert.Equal(t, int64(3), line)

	stmts = load()
	fs = deobf.New(deobf.ModeTryHarder).FixRecords(stmts)
	require.Len(t, fs, 1)
	line, _ = stmts[1].(*pickle.Object).Attr("linenumber")
	assert.Equal(t, int64(9), line)
}

type markerSig struct{}

func (markerSig) Name() string       { return "marker" }
func (markerSig) Level() deobf.Level { return deobf.LevelStream }
func (markerSig) Tier() deobf.Tier   { return deobf.TierDefault }
func (markerSig) Apply(b []byte) ([]byte, []deobf.Finding) {
	return b, []deobf.Finding{{Signature: "marker", Resolved: true}}
}

func TestCustomCatalog(t *testing.T) {
	p := deobf.New(deobf.ModeDefault, deobf.WithSignatures(markerSig{}))
	res, err := p.Extract(pt.Container(sampleStream()))
	require.NoError(t, err)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "marker", res.Findings[0].Signature)
}
