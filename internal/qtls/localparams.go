package qtls

// LocalParams is the subset of TransportParameters a caller configures
// directly; other fields, like OriginalDestinationConnectionID, are not
// covered and are only populated by DecodeTransportParameters. It exists so
// callers building a local, to-be-encoded parameter set don't have to
// know about the internal flags bitmask.
type LocalParams struct {
	IdleTimeoutMs           uint64
	MaxUdpPayloadSize       uint64
	InitialMaxData          uint64
	InitialMaxStreamsBidi   uint64
	InitialMaxStreamsUni    uint64
	ActiveConnectionIdLimit uint64
	DisableActiveMigration  bool
	GreaseQuicBit           bool
}

// LocalTransportParameters builds a TransportParameters value suitable
// for passing to EncodeTransportParameters, applying the standard
// transport parameter defaults (RFC 9000 §18.2) for any field left at
// its zero value.
func LocalTransportParameters(p LocalParams) TransportParameters {
	var out TransportParameters
	out.applyDefaults()

	if p.IdleTimeoutMs != 0 {
		out.IdleTimeout = p.IdleTimeoutMs
		out.setFlag(flagIdleTimeout)
	}
	if p.MaxUdpPayloadSize != 0 {
		out.MaxUdpPayloadSize = p.MaxUdpPayloadSize
	}
	out.setFlag(flagMaxUDPPayloadSize)

	if p.InitialMaxData != 0 {
		out.InitialMaxData = p.InitialMaxData
		out.setFlag(flagInitialMaxData)
	}
	if p.InitialMaxStreamsBidi != 0 {
		out.InitialMaxBidiStreams = p.InitialMaxStreamsBidi
		out.setFlag(flagInitialMaxStreamsBidi)
	}
	if p.InitialMaxStreamsUni != 0 {
		out.InitialMaxUniStreams = p.InitialMaxStreamsUni
		out.setFlag(flagInitialMaxStreamsUni)
	}
	if p.ActiveConnectionIdLimit != 0 {
		out.ActiveConnectionIdLimit = p.ActiveConnectionIdLimit
	}
	out.setFlag(flagActiveConnectionIDLimit)

	if p.DisableActiveMigration {
		out.DisableActiveMigration = true
		out.setFlag(flagDisableActiveMigration)
	}
	if p.GreaseQuicBit {
		out.GreaseQuicBit = true
		out.setFlag(flagGreaseQuicBit)
	}

	out.setFlag(flagAckDelayExponent)
	out.setFlag(flagMaxAckDelay)

	return out
}
