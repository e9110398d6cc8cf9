package qtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportParametersRoundTripDefaults(t *testing.T) {
	p := LocalTransportParameters(LocalParams{})
	buf, err := EncodeTransportParameters(false, &p, nil)
	require.NoError(t, err)

	got, err := DecodeTransportParameters(false, buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(defaultMaxUDPPayloadSize), got.MaxUdpPayloadSize)
	assert.Equal(t, uint64(defaultAckDelayExponent), got.AckDelayExponent)
	assert.Equal(t, uint64(defaultMaxAckDelay), got.MaxAckDelay)
	assert.Equal(t, uint64(defaultActiveConnectionIDLimit), got.ActiveConnectionIdLimit)
}

func TestTransportParametersRoundTripFullSet(t *testing.T) {
	p := LocalTransportParameters(LocalParams{
		IdleTimeoutMs:           30000,
		MaxUdpPayloadSize:       1400,
		InitialMaxData:          1 << 20,
		InitialMaxStreamsBidi:   100,
		InitialMaxStreamsUni:    10,
		ActiveConnectionIdLimit: 4,
		DisableActiveMigration:  true,
		GreaseQuicBit:           true,
	})
	buf, err := EncodeTransportParameters(false, &p, nil)
	require.NoError(t, err)

	got, err := DecodeTransportParameters(false, buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(30000), got.IdleTimeout)
	assert.Equal(t, uint64(1400), got.MaxUdpPayloadSize)
	assert.Equal(t, uint64(1<<20), got.InitialMaxData)
	assert.Equal(t, uint64(100), got.InitialMaxBidiStreams)
	assert.Equal(t, uint64(10), got.InitialMaxUniStreams)
	assert.Equal(t, uint64(4), got.ActiveConnectionIdLimit)
	assert.True(t, got.DisableActiveMigration)
	assert.True(t, got.GreaseQuicBit)
}

func TestTransportParametersPreferredAddressRoundTrip(t *testing.T) {
	var p TransportParameters
	p.applyDefaults()
	p.PreferredAddress = &PreferredAddress{
		IPv4:         [4]byte{192, 0, 2, 1},
		IPv4Port:     4433,
		IPv6:         [16]byte{0x20, 0x01, 0x0d, 0xb8},
		IPv6Port:     4434,
		ConnectionID: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	copy(p.PreferredAddress.StatelessResetToken[:], []byte("0123456789abcdef"))
	p.setFlag(flagPreferredAddress)

	buf, err := EncodeTransportParameters(true, &p, nil)
	require.NoError(t, err)

	got, err := DecodeTransportParameters(true, buf)
	require.NoError(t, err)
	require.NotNil(t, got.PreferredAddress)
	assert.Equal(t, p.PreferredAddress.IPv4, got.PreferredAddress.IPv4)
	assert.Equal(t, p.PreferredAddress.IPv4Port, got.PreferredAddress.IPv4Port)
	assert.Equal(t, p.PreferredAddress.IPv6, got.PreferredAddress.IPv6)
	assert.Equal(t, p.PreferredAddress.ConnectionID, got.PreferredAddress.ConnectionID)
	assert.Equal(t, p.PreferredAddress.StatelessResetToken, got.PreferredAddress.StatelessResetToken)
}

func TestEncodeTransportParametersRejectsServerOnlyFromClient(t *testing.T) {
	var p TransportParameters
	p.applyDefaults()
	p.PreferredAddress = &PreferredAddress{ConnectionID: []byte{1}}
	p.setFlag(flagPreferredAddress)

	_, err := EncodeTransportParameters(false, &p, nil)
	require.Error(t, err)
}

func TestDecodeTransportParametersRejectsServerOnlyFromClient(t *testing.T) {
	var p TransportParameters
	p.applyDefaults()
	p.OriginalDestinationConnectionID = []byte{1, 2, 3}
	p.setFlag(flagOriginalDestinationConnectionID)
	buf, err := EncodeTransportParameters(true, &p, nil)
	require.NoError(t, err)

	_, err = DecodeTransportParameters(false, buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDecodeTransportParametersRejectsDuplicateID(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDIdleTimeout, 1000)
	buf = writeVarIntParam(buf, tpIDIdleTimeout, 2000)

	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDecodeTransportParametersIgnoresReservedGreaseID(t *testing.T) {
	greaseID := uint64(31*2 + 27)
	require.True(t, isReservedTPID(greaseID))

	var buf []byte
	buf = writeParam(buf, greaseID, []byte{0xde, 0xad})
	buf = writeVarIntParam(buf, tpIDMaxUDPPayloadSize, 1500)

	got, err := DecodeTransportParameters(false, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), got.MaxUdpPayloadSize)
}

func TestDecodeTransportParametersIgnoresUnknownID(t *testing.T) {
	var buf []byte
	buf = writeParam(buf, 0x5000, []byte{1, 2, 3})
	buf = writeVarIntParam(buf, tpIDMaxUDPPayloadSize, 1500)

	got, err := DecodeTransportParameters(false, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), got.MaxUdpPayloadSize)
}

func TestDecodeTransportParametersRejectsLowMaxUDPPayloadSize(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDMaxUDPPayloadSize, 1199)
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestDecodeTransportParametersRejectsOversizedMaxUDPPayloadSize(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDMaxUDPPayloadSize, defaultMaxUDPPayloadSize+1)
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDecodeTransportParametersRejectsOversizedAckDelayExponent(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDAckDelayExponent, maxAckDelayExpMax+1)
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestDecodeTransportParametersRejectsOversizedMaxAckDelay(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDMaxAckDelay, maxAckDelayMax)
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestDecodeTransportParametersMinAckDelayCrossCheck(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDMaxAckDelay, 10) // 10ms
	buf = writeVarIntParam(buf, tpIDMinAckDelay, 20000) // 20ms in microseconds, exceeds max_ack_delay
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestDecodeTransportParametersAcceptsMinAckDelayWithinBound(t *testing.T) {
	var buf []byte
	buf = writeVarIntParam(buf, tpIDMaxAckDelay, 25)
	buf = writeVarIntParam(buf, tpIDMinAckDelay, 5000)
	got, err := DecodeTransportParameters(false, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), got.MinAckDelay)
}

func TestDecodeTransportParametersRejectsOverlongConnectionID(t *testing.T) {
	var buf []byte
	buf = writeParam(buf, tpIDInitialSourceConnectionID, make([]byte, maxConnIDLen+1))
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestDecodeTransportParametersRejectsTruncatedValue(t *testing.T) {
	buf := AppendVarInt(nil, tpIDIdleTimeout)
	buf = AppendVarInt(buf, 4) // claims 4 bytes of value
	// but supply none
	_, err := DecodeTransportParameters(false, buf)
	require.Error(t, err)
}

func TestCopyTransportParameters(t *testing.T) {
	var src TransportParameters
	src.applyDefaults()
	src.VersionInfo = []byte{1, 2, 3, 4}
	src.setFlag(flagVersionInfo)

	var dst TransportParameters
	require.NoError(t, CopyTransportParameters(&src, &dst))
	assert.Equal(t, src.VersionInfo, dst.VersionInfo)

	dst.VersionInfo[0] = 0xff
	assert.NotEqual(t, src.VersionInfo[0], dst.VersionInfo[0])
}

func TestCleanupTransportParameters(t *testing.T) {
	var p TransportParameters
	p.applyDefaults()
	p.VersionInfo = []byte{1, 2, 3}
	p.setFlag(flagVersionInfo)

	CleanupTransportParameters(&p)
	assert.Nil(t, p.VersionInfo)
	assert.False(t, p.HasVersionInfo())
}
