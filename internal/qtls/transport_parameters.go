package qtls

// Transport-parameter id constants (RFC 9000 §18.2, plus the
// extensions msquic also implements).
const (
	tpIDOriginalDestinationConnectionID = 0x00
	tpIDIdleTimeout                     = 0x01
	tpIDStatelessResetToken             = 0x02
	tpIDMaxUDPPayloadSize               = 0x03
	tpIDInitialMaxData                  = 0x04
	tpIDInitialMaxStreamDataBidiLocal   = 0x05
	tpIDInitialMaxStreamDataBidiRemote  = 0x06
	tpIDInitialMaxStreamDataUni         = 0x07
	tpIDInitialMaxStreamsBidi           = 0x08
	tpIDInitialMaxStreamsUni            = 0x09
	tpIDAckDelayExponent                = 0x0a
	tpIDMaxAckDelay                     = 0x0b
	tpIDDisableActiveMigration          = 0x0c
	tpIDPreferredAddress                = 0x0d
	tpIDActiveConnectionIDLimit         = 0x0e
	tpIDInitialSourceConnectionID       = 0x0f
	tpIDRetrySourceConnectionID         = 0x10

	tpIDMaxDatagramFrameSize  = 0x20
	tpIDDisable1RTTEncryption = 0xbaad
	tpIDVersionNegotiationExt = 0x11
	tpIDMinAckDelay           = 0xff04de1b
	tpIDCibirEncoding         = 0x1000
	tpIDGreaseQuicBit         = 0x2ab2
	tpIDReliableResetEnabled  = 0x17f7586d2cb570
	tpIDEnableTimestamp       = 0x7158
)

// Spec-mandated defaults (§3).
const (
	defaultMaxUDPPayloadSize       = 65527
	defaultAckDelayExponent        = 3
	defaultMaxAckDelay             = 25
	defaultActiveConnectionIDLimit = 2

	minUDPPayloadSize = 1200
	maxStreamsMax     = 1 << 60
	maxAckDelayExpMax = 20
	maxAckDelayMax    = 1 << 14
	maxConnIDLen      = 20
	statelessResetLen = 16
	cibirMaxTotal      = 20 // max connection-id length invariant
)

// reservedIDModulus and reservedIDRemainder identify the grease slot:
// ids of the form 31*N + 27 must be silently ignored (RFC 9000 §18.1).
const (
	reservedIDModulus   = 31
	reservedIDRemainder = 27
)

func isReservedTPID(id uint64) bool {
	return id%reservedIDModulus == reservedIDRemainder
}

// tpFlag is a bitmask of which fields of TransportParameters are
// present. Each bit corresponds 1:1 with a field of TransportParameters.
type tpFlag uint64

const (
	flagOriginalDestinationConnectionID tpFlag = 1 << iota
	flagIdleTimeout
	flagStatelessResetToken
	flagMaxUDPPayloadSize
	flagInitialMaxData
	flagInitialMaxStreamDataBidiLocal
	flagInitialMaxStreamDataBidiRemote
	flagInitialMaxStreamDataUni
	flagInitialMaxStreamsBidi
	flagInitialMaxStreamsUni
	flagAckDelayExponent
	flagMaxAckDelay
	flagDisableActiveMigration
	flagPreferredAddress
	flagActiveConnectionIDLimit
	flagInitialSourceConnectionID
	flagRetrySourceConnectionID
	flagMaxDatagramFrameSize
	flagDisable1RTTEncryption
	flagVersionInfo
	flagMinAckDelay
	flagCibirEncoding
	flagGreaseQuicBit
	flagReliableResetEnabled
	flagTimestampSend
	flagTimestampRecv
)

// PreferredAddress is the RFC 9000 §18.2 preferred_address parameter
// value.
type PreferredAddress struct {
	IPv4                [4]byte
	IPv4Port            uint16
	IPv6                [16]byte
	IPv6Port            uint16
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

// TransportParameters is the decoded (or to-be-encoded) QUIC transport
// parameter set. Zero value is defaults-for-a-fresh-decode once
// DecodeTransportParameters has zeroed and defaulted it. Only fields whose
// presence flag is set are written on encode; the flags are unexported,
// so outside this package they come from DecodeTransportParameters or
// LocalTransportParameters.
type TransportParameters struct {
	flags tpFlag

	OriginalDestinationConnectionID []byte
	IdleTimeout                     uint64 // ms
	StatelessResetToken             [16]byte
	MaxUdpPayloadSize               uint64
	InitialMaxData                  uint64
	InitialMaxStreamDataBidiLocal   uint64
	InitialMaxStreamDataBidiRemote  uint64
	InitialMaxStreamDataUni         uint64
	InitialMaxBidiStreams           uint64
	InitialMaxUniStreams            uint64
	AckDelayExponent                uint64
	MaxAckDelay                     uint64 // ms
	DisableActiveMigration          bool
	PreferredAddress                *PreferredAddress
	ActiveConnectionIdLimit         uint64
	InitialSourceConnectionID       []byte
	RetrySourceConnectionID         []byte
	MaxDatagramFrameSize            uint64
	Disable1RttEncryption           bool
	VersionInfo                     []byte // owns an allocation; release with CleanupTransportParameters
	MinAckDelay                     uint64 // µs
	CibirLength                     uint64
	CibirOffset                     uint64
	GreaseQuicBit                   bool
	ReliableResetEnabled            bool
	TimestampSendEnabled            bool
	TimestampRecvEnabled            bool
}

// HasOriginalDestinationConnectionID and the rest of the presence
// predicates report whether the corresponding field was explicitly
// seen on decode, or should be written on encode.
func (p *TransportParameters) HasOriginalDestinationConnectionID() bool {
	return p.flags&flagOriginalDestinationConnectionID != 0
}
func (p *TransportParameters) HasStatelessResetToken() bool { return p.flags&flagStatelessResetToken != 0 }
func (p *TransportParameters) HasPreferredAddress() bool     { return p.flags&flagPreferredAddress != 0 }
func (p *TransportParameters) HasInitialSourceConnectionID() bool {
	return p.flags&flagInitialSourceConnectionID != 0
}
func (p *TransportParameters) HasRetrySourceConnectionID() bool {
	return p.flags&flagRetrySourceConnectionID != 0
}
func (p *TransportParameters) HasMaxDatagramFrameSize() bool { return p.flags&flagMaxDatagramFrameSize != 0 }
func (p *TransportParameters) HasVersionInfo() bool          { return p.flags&flagVersionInfo != 0 }
func (p *TransportParameters) HasMinAckDelay() bool          { return p.flags&flagMinAckDelay != 0 }
func (p *TransportParameters) HasCibirEncoding() bool        { return p.flags&flagCibirEncoding != 0 }

// setFlag marks field f as present. Used by the decoder and by
// LocalTransportParameters when building a value to encode.
func (p *TransportParameters) setFlag(f tpFlag)   { p.flags |= f }
func (p *TransportParameters) hasFlag(f tpFlag) bool { return p.flags&f != 0 }

// applyDefaults sets the RFC-mandated defaults for fields that have no
// explicit presence, ahead of a decode overlay.
func (p *TransportParameters) applyDefaults() {
	*p = TransportParameters{
		MaxUdpPayloadSize:       defaultMaxUDPPayloadSize,
		AckDelayExponent:        defaultAckDelayExponent,
		MaxAckDelay:             defaultMaxAckDelay,
		ActiveConnectionIdLimit: defaultActiveConnectionIDLimit,
	}
}

// --- Encoder -----------------------------------------------------------

// fieldLen returns size_of(id) + size_of(length) + length, the
// contribution a single parameter makes to the encoded output.
func fieldLen(id uint64, length int) int {
	return VarIntLen(id) + VarIntLen(uint64(length)) + length
}

// EncodeTransportParameters serializes p in a fixed field order,
// computing the exact required length first and then writing into a
// freshly allocated buffer of exactly that size.
// extraParam, if non-nil, is an additional raw {id, value} pair
// appended at the end (used by interop tests to grow a ClientHello past
// one MTU, mirroring quic-go's AdditionalTransportParametersClient).
func EncodeTransportParameters(isServer bool, p *TransportParameters, extraParam *struct {
	ID    uint64
	Value []byte
}) ([]byte, error) {
	required := 0

	if p.hasFlag(flagOriginalDestinationConnectionID) {
		if !isServer {
			return nil, invalidf("encode: original_destination_connection_id is server-only")
		}
		required += fieldLen(tpIDOriginalDestinationConnectionID, len(p.OriginalDestinationConnectionID))
	}
	if p.hasFlag(flagIdleTimeout) {
		required += fieldLen(tpIDIdleTimeout, VarIntLen(p.IdleTimeout))
	}
	if p.hasFlag(flagStatelessResetToken) {
		if !isServer {
			return nil, invalidf("encode: stateless_reset_token is server-only")
		}
		required += fieldLen(tpIDStatelessResetToken, statelessResetLen)
	}
	if p.hasFlag(flagMaxUDPPayloadSize) {
		required += fieldLen(tpIDMaxUDPPayloadSize, VarIntLen(p.MaxUdpPayloadSize))
	}
	if p.hasFlag(flagInitialMaxData) {
		required += fieldLen(tpIDInitialMaxData, VarIntLen(p.InitialMaxData))
	}
	if p.hasFlag(flagInitialMaxStreamDataBidiLocal) {
		required += fieldLen(tpIDInitialMaxStreamDataBidiLocal, VarIntLen(p.InitialMaxStreamDataBidiLocal))
	}
	if p.hasFlag(flagInitialMaxStreamDataBidiRemote) {
		required += fieldLen(tpIDInitialMaxStreamDataBidiRemote, VarIntLen(p.InitialMaxStreamDataBidiRemote))
	}
	if p.hasFlag(flagInitialMaxStreamDataUni) {
		required += fieldLen(tpIDInitialMaxStreamDataUni, VarIntLen(p.InitialMaxStreamDataUni))
	}
	if p.hasFlag(flagInitialMaxStreamsBidi) {
		required += fieldLen(tpIDInitialMaxStreamsBidi, VarIntLen(p.InitialMaxBidiStreams))
	}
	if p.hasFlag(flagInitialMaxStreamsUni) {
		required += fieldLen(tpIDInitialMaxStreamsUni, VarIntLen(p.InitialMaxUniStreams))
	}
	if p.hasFlag(flagAckDelayExponent) {
		required += fieldLen(tpIDAckDelayExponent, VarIntLen(p.AckDelayExponent))
	}
	if p.hasFlag(flagMaxAckDelay) {
		required += fieldLen(tpIDMaxAckDelay, VarIntLen(p.MaxAckDelay))
	}
	if p.hasFlag(flagDisableActiveMigration) {
		required += fieldLen(tpIDDisableActiveMigration, 0)
	}
	if p.hasFlag(flagPreferredAddress) {
		if !isServer {
			return nil, invalidf("encode: preferred_address is server-only")
		}
		required += fieldLen(tpIDPreferredAddress, preferredAddressWireLen(p.PreferredAddress))
	}
	if p.hasFlag(flagActiveConnectionIDLimit) {
		required += fieldLen(tpIDActiveConnectionIDLimit, VarIntLen(p.ActiveConnectionIdLimit))
	}
	if p.hasFlag(flagInitialSourceConnectionID) {
		required += fieldLen(tpIDInitialSourceConnectionID, len(p.InitialSourceConnectionID))
	}
	if p.hasFlag(flagRetrySourceConnectionID) {
		if !isServer {
			return nil, invalidf("encode: retry_source_connection_id is server-only")
		}
		required += fieldLen(tpIDRetrySourceConnectionID, len(p.RetrySourceConnectionID))
	}
	if p.hasFlag(flagMaxDatagramFrameSize) {
		required += fieldLen(tpIDMaxDatagramFrameSize, VarIntLen(p.MaxDatagramFrameSize))
	}
	if p.hasFlag(flagDisable1RTTEncryption) {
		required += fieldLen(tpIDDisable1RTTEncryption, 0)
	}
	if p.hasFlag(flagVersionInfo) {
		required += fieldLen(tpIDVersionNegotiationExt, len(p.VersionInfo))
	}
	if p.hasFlag(flagMinAckDelay) {
		required += fieldLen(tpIDMinAckDelay, VarIntLen(p.MinAckDelay))
	}
	if p.hasFlag(flagCibirEncoding) {
		required += fieldLen(tpIDCibirEncoding, VarIntLen(p.CibirLength)+VarIntLen(p.CibirOffset))
	}
	if p.hasFlag(flagGreaseQuicBit) {
		required += fieldLen(tpIDGreaseQuicBit, 0)
	}
	if p.hasFlag(flagReliableResetEnabled) {
		required += fieldLen(tpIDReliableResetEnabled, 0)
	}
	if p.hasFlag(flagTimestampSend) || p.hasFlag(flagTimestampRecv) {
		required += fieldLen(tpIDEnableTimestamp, VarIntLen(timestampValue(p)))
	}
	if extraParam != nil {
		required += fieldLen(extraParam.ID, len(extraParam.Value))
	}

	if required > 0xffff {
		return nil, ErrOutOfMemory
	}

	buf := make([]byte, 0, required)

	if p.hasFlag(flagOriginalDestinationConnectionID) {
		buf = writeParam(buf, tpIDOriginalDestinationConnectionID, p.OriginalDestinationConnectionID)
	}
	if p.hasFlag(flagIdleTimeout) {
		buf = writeVarIntParam(buf, tpIDIdleTimeout, p.IdleTimeout)
	}
	if p.hasFlag(flagStatelessResetToken) {
		buf = writeParam(buf, tpIDStatelessResetToken, p.StatelessResetToken[:])
	}
	if p.hasFlag(flagMaxUDPPayloadSize) {
		buf = writeVarIntParam(buf, tpIDMaxUDPPayloadSize, p.MaxUdpPayloadSize)
	}
	if p.hasFlag(flagInitialMaxData) {
		buf = writeVarIntParam(buf, tpIDInitialMaxData, p.InitialMaxData)
	}
	if p.hasFlag(flagInitialMaxStreamDataBidiLocal) {
		buf = writeVarIntParam(buf, tpIDInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	}
	if p.hasFlag(flagInitialMaxStreamDataBidiRemote) {
		buf = writeVarIntParam(buf, tpIDInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	}
	if p.hasFlag(flagInitialMaxStreamDataUni) {
		buf = writeVarIntParam(buf, tpIDInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	}
	if p.hasFlag(flagInitialMaxStreamsBidi) {
		buf = writeVarIntParam(buf, tpIDInitialMaxStreamsBidi, p.InitialMaxBidiStreams)
	}
	if p.hasFlag(flagInitialMaxStreamsUni) {
		buf = writeVarIntParam(buf, tpIDInitialMaxStreamsUni, p.InitialMaxUniStreams)
	}
	if p.hasFlag(flagAckDelayExponent) {
		buf = writeVarIntParam(buf, tpIDAckDelayExponent, p.AckDelayExponent)
	}
	if p.hasFlag(flagMaxAckDelay) {
		buf = writeVarIntParam(buf, tpIDMaxAckDelay, p.MaxAckDelay)
	}
	if p.hasFlag(flagDisableActiveMigration) {
		buf = writeParam(buf, tpIDDisableActiveMigration, nil)
	}
	if p.hasFlag(flagPreferredAddress) {
		buf = writePreferredAddress(buf, p.PreferredAddress)
	}
	if p.hasFlag(flagActiveConnectionIDLimit) {
		buf = writeVarIntParam(buf, tpIDActiveConnectionIDLimit, p.ActiveConnectionIdLimit)
	}
	if p.hasFlag(flagInitialSourceConnectionID) {
		buf = writeParam(buf, tpIDInitialSourceConnectionID, p.InitialSourceConnectionID)
	}
	if p.hasFlag(flagRetrySourceConnectionID) {
		buf = writeParam(buf, tpIDRetrySourceConnectionID, p.RetrySourceConnectionID)
	}
	if p.hasFlag(flagMaxDatagramFrameSize) {
		buf = writeVarIntParam(buf, tpIDMaxDatagramFrameSize, p.MaxDatagramFrameSize)
	}
	if p.hasFlag(flagDisable1RTTEncryption) {
		buf = writeParam(buf, tpIDDisable1RTTEncryption, nil)
	}
	if p.hasFlag(flagVersionInfo) {
		buf = writeParam(buf, tpIDVersionNegotiationExt, p.VersionInfo)
	}
	if p.hasFlag(flagMinAckDelay) {
		buf = writeVarIntParam(buf, tpIDMinAckDelay, p.MinAckDelay)
	}
	if p.hasFlag(flagCibirEncoding) {
		buf = AppendVarInt(buf, tpIDCibirEncoding)
		buf = AppendVarInt(buf, uint64(VarIntLen(p.CibirLength)+VarIntLen(p.CibirOffset)))
		buf = AppendVarInt(buf, p.CibirLength)
		buf = AppendVarInt(buf, p.CibirOffset)
	}
	if p.hasFlag(flagGreaseQuicBit) {
		buf = writeParam(buf, tpIDGreaseQuicBit, nil)
	}
	if p.hasFlag(flagReliableResetEnabled) {
		buf = writeParam(buf, tpIDReliableResetEnabled, nil)
	}
	if p.hasFlag(flagTimestampSend) || p.hasFlag(flagTimestampRecv) {
		buf = writeVarIntParam(buf, tpIDEnableTimestamp, timestampValue(p))
	}
	if extraParam != nil {
		buf = writeParam(buf, extraParam.ID, extraParam.Value)
	}

	if len(buf) != required {
		// Internal invariant violated: the two passes disagree. This is
		// an engineering bug, not a protocol error, but we still must
		// not hand back a corrupt or partial buffer.
		return nil, invalidf("encode: wrote %d bytes, computed %d", len(buf), required)
	}

	return buf, nil
}

func timestampValue(p *TransportParameters) uint64 {
	var v uint64
	if p.TimestampSendEnabled {
		v |= 1
	}
	if p.TimestampRecvEnabled {
		v |= 2
	}
	return v
}

func writeParam(buf []byte, id uint64, value []byte) []byte {
	buf = AppendVarInt(buf, id)
	buf = AppendVarInt(buf, uint64(len(value)))
	return append(buf, value...)
}

func writeVarIntParam(buf []byte, id uint64, value uint64) []byte {
	buf = AppendVarInt(buf, id)
	buf = AppendVarInt(buf, uint64(VarIntLen(value)))
	return AppendVarInt(buf, value)
}

func preferredAddressWireLen(pa *PreferredAddress) int {
	if pa == nil {
		return 0
	}
	return 4 + 2 + 16 + 2 + 1 + len(pa.ConnectionID) + 16
}

// writePreferredAddress implements RFC 9000 §18.2's preferred_address
// encoding: 4-byte IPv4 address, 2-byte port, 16-byte IPv6 address,
// 2-byte port, 1-byte connection id length, the connection id, and a
// 16-byte stateless reset token.
func writePreferredAddress(buf []byte, pa *PreferredAddress) []byte {
	id := uint64(tpIDPreferredAddress)
	length := preferredAddressWireLen(pa)
	buf = AppendVarInt(buf, id)
	buf = AppendVarInt(buf, uint64(length))
	buf = append(buf, pa.IPv4[:]...)
	buf = append(buf, byte(pa.IPv4Port>>8), byte(pa.IPv4Port))
	buf = append(buf, pa.IPv6[:]...)
	buf = append(buf, byte(pa.IPv6Port>>8), byte(pa.IPv6Port))
	buf = append(buf, byte(len(pa.ConnectionID)))
	buf = append(buf, pa.ConnectionID...)
	buf = append(buf, pa.StatelessResetToken[:]...)
	return buf
}

// --- Decoder -------------------------------------------------------------

// DecodeTransportParameters walks the id/length/value triples in buf,
// zeroing and then defaulting the output ahead of the walk, enforcing
// per-id validation, rejecting duplicates among the first 64 ids, and
// performing the MinAckDelay/MaxAckDelay cross-check at the end.
// isServerTP reports whether the parameter set purports to be a
// server's (controls which ids are rejected as server-only).
func DecodeTransportParameters(isServerTP bool, buf []byte) (TransportParameters, error) {
	var p TransportParameters
	p.applyDefaults()

	var seen uint64 // duplicate-detection bitmap, ids 0..63 only
	total := len(buf)
	offset := 0

	for offset < total {
		id, next, err := DecodeVarInt(total, buf, offset)
		if err != nil {
			return p, err
		}
		offset = next

		if id < 64 {
			bit := uint64(1) << id
			if seen&bit != 0 {
				return p, invalidf("transport parameters: duplicate id %#x", id)
			}
			seen |= bit
		}

		length64, next, err := DecodeVarInt(total, buf, offset)
		if err != nil {
			return p, err
		}
		offset = next
		if int(length64)+offset > total {
			return p, invalidf("transport parameters: id %#x length %d exceeds remaining bytes", id, length64)
		}
		length := int(length64)
		value := buf[offset : offset+length]

		if err := decodeOneParam(&p, isServerTP, id, length, value); err != nil {
			return p, err
		}

		offset += length
	}

	if p.hasFlag(flagMinAckDelay) && p.MinAckDelay > p.MaxAckDelay*1000 {
		return p, invalidf("transport parameters: min_ack_delay %dus exceeds max_ack_delay %dms", p.MinAckDelay, p.MaxAckDelay)
	}

	return p, nil
}

// readInnerVarInt decodes a varint from the start of value, using
// len(value) as the upper bound on its wire length, like msquic's
// TRY_READ_VAR_INT. Bytes after the varint's natural length are not
// rejected; exact-length validation is left to callers that need it
// (disable_active_migration etc. already check Length == 0 directly).
func readInnerVarInt(value []byte) (uint64, error) {
	v, _, err := DecodeVarInt(len(value), value, 0)
	return v, err
}

func decodeOneParam(p *TransportParameters, isServerTP bool, id uint64, length int, value []byte) error {
	switch id {
	case tpIDOriginalDestinationConnectionID:
		if length > maxConnIDLen {
			return invalidf("original_destination_connection_id: length %d exceeds %d", length, maxConnIDLen)
		}
		if !isServerTP {
			return invalidf("original_destination_connection_id: sent by client")
		}
		p.OriginalDestinationConnectionID = append([]byte(nil), value...)
		p.setFlag(flagOriginalDestinationConnectionID)

	case tpIDIdleTimeout:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("idle_timeout: %v", err)
		}
		p.IdleTimeout = v
		p.setFlag(flagIdleTimeout)

	case tpIDStatelessResetToken:
		if length != statelessResetLen {
			return invalidf("stateless_reset_token: length %d, want %d", length, statelessResetLen)
		}
		if !isServerTP {
			return invalidf("stateless_reset_token: sent by client")
		}
		copy(p.StatelessResetToken[:], value)
		p.setFlag(flagStatelessResetToken)

	case tpIDMaxUDPPayloadSize:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("max_udp_payload_size: %v", err)
		}
		if v < minUDPPayloadSize || v > defaultMaxUDPPayloadSize {
			return invalidf("max_udp_payload_size: %d out of range", v)
		}
		p.MaxUdpPayloadSize = v
		p.setFlag(flagMaxUDPPayloadSize)

	case tpIDInitialMaxData:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_data: %v", err)
		}
		p.InitialMaxData = v
		p.setFlag(flagInitialMaxData)

	case tpIDInitialMaxStreamDataBidiLocal:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_stream_data_bidi_local: %v", err)
		}
		p.InitialMaxStreamDataBidiLocal = v
		p.setFlag(flagInitialMaxStreamDataBidiLocal)

	case tpIDInitialMaxStreamDataBidiRemote:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_stream_data_bidi_remote: %v", err)
		}
		p.InitialMaxStreamDataBidiRemote = v
		p.setFlag(flagInitialMaxStreamDataBidiRemote)

	case tpIDInitialMaxStreamDataUni:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_stream_data_uni: %v", err)
		}
		p.InitialMaxStreamDataUni = v
		p.setFlag(flagInitialMaxStreamDataUni)

	case tpIDInitialMaxStreamsBidi:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_streams_bidi: %v", err)
		}
		if v > maxStreamsMax {
			return invalidf("initial_max_streams_bidi: %d exceeds %d", v, maxStreamsMax)
		}
		p.InitialMaxBidiStreams = v
		p.setFlag(flagInitialMaxStreamsBidi)

	case tpIDInitialMaxStreamsUni:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("initial_max_streams_uni: %v", err)
		}
		if v > maxStreamsMax {
			return invalidf("initial_max_streams_uni: %d exceeds %d", v, maxStreamsMax)
		}
		p.InitialMaxUniStreams = v
		p.setFlag(flagInitialMaxStreamsUni)

	case tpIDAckDelayExponent:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("ack_delay_exponent: %v", err)
		}
		if v > maxAckDelayExpMax {
			return invalidf("ack_delay_exponent: %d exceeds %d", v, maxAckDelayExpMax)
		}
		p.AckDelayExponent = v
		p.setFlag(flagAckDelayExponent)

	case tpIDMaxAckDelay:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("max_ack_delay: %v", err)
		}
		if v >= maxAckDelayMax {
			return invalidf("max_ack_delay: %d exceeds %d", v, maxAckDelayMax)
		}
		p.MaxAckDelay = v
		p.setFlag(flagMaxAckDelay)

	case tpIDDisableActiveMigration:
		if length != 0 {
			return invalidf("disable_active_migration: length %d, want 0", length)
		}
		p.DisableActiveMigration = true
		p.setFlag(flagDisableActiveMigration)

	case tpIDPreferredAddress:
		if !isServerTP {
			return invalidf("preferred_address: sent by client")
		}
		pa, err := decodePreferredAddress(value)
		if err != nil {
			return err
		}
		p.PreferredAddress = pa
		p.setFlag(flagPreferredAddress)

	case tpIDActiveConnectionIDLimit:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("active_connection_id_limit: %v", err)
		}
		if v < defaultActiveConnectionIDLimit {
			return invalidf("active_connection_id_limit: %d below minimum %d", v, defaultActiveConnectionIDLimit)
		}
		p.ActiveConnectionIdLimit = v
		p.setFlag(flagActiveConnectionIDLimit)

	case tpIDInitialSourceConnectionID:
		if length > maxConnIDLen {
			return invalidf("initial_source_connection_id: length %d exceeds %d", length, maxConnIDLen)
		}
		p.InitialSourceConnectionID = append([]byte(nil), value...)
		p.setFlag(flagInitialSourceConnectionID)

	case tpIDRetrySourceConnectionID:
		if length > maxConnIDLen {
			return invalidf("retry_source_connection_id: length %d exceeds %d", length, maxConnIDLen)
		}
		if !isServerTP {
			return invalidf("retry_source_connection_id: sent by client")
		}
		p.RetrySourceConnectionID = append([]byte(nil), value...)
		p.setFlag(flagRetrySourceConnectionID)

	case tpIDMaxDatagramFrameSize:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("max_datagram_frame_size: %v", err)
		}
		p.MaxDatagramFrameSize = v
		p.setFlag(flagMaxDatagramFrameSize)

	case tpIDCibirEncoding:
		cibirLen, n, err := DecodeVarInt(length, value, 0)
		if err != nil {
			return invalidf("cibir_encoding: %v", err)
		}
		cibirOffset, _, err := DecodeVarInt(length, value, n)
		if err != nil {
			return invalidf("cibir_encoding: %v", err)
		}
		if cibirLen < 1 || cibirOffset > cibirMaxTotal || cibirLen+cibirOffset > cibirMaxTotal {
			return invalidf("cibir_encoding: length=%d offset=%d out of range", cibirLen, cibirOffset)
		}
		p.CibirLength = cibirLen
		p.CibirOffset = cibirOffset
		p.setFlag(flagCibirEncoding)

	case tpIDDisable1RTTEncryption:
		if length != 0 {
			return invalidf("disable_1rtt_encryption: length %d, want 0", length)
		}
		p.Disable1RttEncryption = true
		p.setFlag(flagDisable1RTTEncryption)

	case tpIDVersionNegotiationExt:
		if length > 0 {
			p.VersionInfo = append([]byte(nil), value...)
		} else {
			p.VersionInfo = nil
		}
		p.setFlag(flagVersionInfo)

	case tpIDMinAckDelay:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("min_ack_delay: %v", err)
		}
		if v > 1<<24-1 {
			return invalidf("min_ack_delay: %d exceeds %d", v, 1<<24-1)
		}
		p.MinAckDelay = v
		p.setFlag(flagMinAckDelay)

	case tpIDGreaseQuicBit:
		if length != 0 {
			return invalidf("grease_quic_bit: length %d, want 0", length)
		}
		p.GreaseQuicBit = true
		p.setFlag(flagGreaseQuicBit)

	case tpIDReliableResetEnabled:
		if length != 0 {
			return invalidf("reliable_reset_enabled: length %d, want 0", length)
		}
		p.ReliableResetEnabled = true
		p.setFlag(flagReliableResetEnabled)

	case tpIDEnableTimestamp:
		v, err := readInnerVarInt(value)
		if err != nil {
			return invalidf("enable_timestamp: %v", err)
		}
		if v > 3 {
			return invalidf("enable_timestamp: %d out of range", v)
		}
		if v&1 != 0 {
			p.TimestampSendEnabled = true
			p.setFlag(flagTimestampSend)
		}
		if v&2 != 0 {
			p.TimestampRecvEnabled = true
			p.setFlag(flagTimestampRecv)
		}

	default:
		// Reserved grease ids and genuinely unknown ids are both
		// silently ignored.
		_ = isReservedTPID(id)
	}

	return nil
}

func decodePreferredAddress(value []byte) (*PreferredAddress, error) {
	remaining := len(value)
	pa := &PreferredAddress{}
	if remaining < 4+2+16+2+1 {
		return nil, invalidf("preferred_address: too short")
	}
	off := 0
	copy(pa.IPv4[:], value[off:off+4])
	off += 4
	pa.IPv4Port = uint16(value[off])<<8 | uint16(value[off+1])
	off += 2
	copy(pa.IPv6[:], value[off:off+16])
	off += 16
	pa.IPv6Port = uint16(value[off])<<8 | uint16(value[off+1])
	off += 2
	cidLen := int(value[off])
	off++
	if cidLen == 0 || cidLen > maxConnIDLen {
		return nil, invalidf("preferred_address: invalid connection id length %d", cidLen)
	}
	if remaining < off+cidLen+16 {
		return nil, invalidf("preferred_address: truncated")
	}
	pa.ConnectionID = append([]byte(nil), value[off:off+cidLen]...)
	off += cidLen
	copy(pa.StatelessResetToken[:], value[off:off+16])
	off += 16
	if off != remaining {
		return nil, invalidf("preferred_address: expected %d bytes, read %d", remaining, off)
	}
	return pa, nil
}

// CopyTransportParameters copies src into dst, including a fresh
// allocation of VersionInfo if present, so the two structs don't alias
// the same backing array.
func CopyTransportParameters(src *TransportParameters, dst *TransportParameters) error {
	*dst = *src
	if src.hasFlag(flagVersionInfo) && src.VersionInfo != nil {
		cp := make([]byte, len(src.VersionInfo))
		copy(cp, src.VersionInfo)
		dst.VersionInfo = cp
	}
	if src.OriginalDestinationConnectionID != nil {
		dst.OriginalDestinationConnectionID = append([]byte(nil), src.OriginalDestinationConnectionID...)
	}
	if src.InitialSourceConnectionID != nil {
		dst.InitialSourceConnectionID = append([]byte(nil), src.InitialSourceConnectionID...)
	}
	if src.RetrySourceConnectionID != nil {
		dst.RetrySourceConnectionID = append([]byte(nil), src.RetrySourceConnectionID...)
	}
	return nil
}

// CleanupTransportParameters releases the VersionInfo allocation, if
// any. Safe to call on a zero-value TransportParameters.
func CleanupTransportParameters(p *TransportParameters) {
	if p.hasFlag(flagVersionInfo) {
		p.VersionInfo = nil
		p.flags &^= flagVersionInfo
	}
}
