package qtls

// ConnectionContext carries the handful of opaque fields this package
// needs from the caller's connection object. The containing connection
// is an external collaborator: qtls never reads or writes anything on
// it beyond what is listed here.
type ConnectionContext struct {
	// QUICVersion selects which TLS extension id carries the QUIC
	// transport parameters: the standard id (0x0039) for every version
	// except draft-29, which uses 0xffa5.
	QUICVersion uint32
}

// QUICVersionDraft29 is the QUIC version number of draft-29, the last
// IETF draft to use the legacy transport-parameters extension id.
const QUICVersionDraft29 uint32 = 0xff00001d

const (
	tlsHandshakeTypeClientHello = 0x01

	tls1ProtocolVersion  = 0x0301
	tlsRandomLength      = 32
	tlsSessionIDMaxLen   = 32
	tlsCompressionMinLen = 1
)

// ClientHelloInfo holds the result of parsing a ClientHello: references
// to borrowed bytes inside the input buffer. ServerName and AlpnList
// share the input buffer's lifetime; the caller must consume them, or
// copy them, before the input is freed or reused.
type ClientHelloInfo struct {
	// ServerName is the first host_name entry of the SNI extension, or
	// nil if the extension was absent. Not null-terminated: do not treat
	// it as a C string.
	ServerName []byte

	// AlpnList is the raw concatenated, length-prefixed ALPN protocol
	// list: the ALPN extension payload minus its own outer 2-byte list
	// length. Required to be non-empty by ReadInitial.
	AlpnList []byte

	// TransportParameters is the peer's decoded QUIC transport parameter
	// set, read from the QUIC transport-parameters extension.
	TransportParameters TransportParameters
}

// ReadClientHello parses the body of a single TLS handshake message
// (the bytes after the 4-byte handshake header) known to be of type
// ClientHello. It validates the fixed-format prefix (version, random,
// session id, cipher suites, compression methods) in order, then hands
// the extension block to readExtensions.
func ReadClientHello(connCtx ConnectionContext, buf []byte) (ClientHelloInfo, error) {
	var info ClientHelloInfo

	// legacy_version
	if len(buf) < 2 {
		return info, invalidf("clienthello: truncated before legacy_version")
	}
	if readUint16(buf) < tls1ProtocolVersion {
		return info, invalidf("clienthello: legacy_version %#x below TLS 1.0", readUint16(buf))
	}
	buf = buf[2:]

	// random
	if len(buf) < tlsRandomLength {
		return info, invalidf("clienthello: truncated random")
	}
	buf = buf[tlsRandomLength:]

	// session_id
	if len(buf) < 1 {
		return info, invalidf("clienthello: truncated before session_id length")
	}
	sidLen := int(buf[0])
	if sidLen > tlsSessionIDMaxLen || len(buf) < 1+sidLen {
		return info, invalidf("clienthello: invalid session_id length %d", sidLen)
	}
	buf = buf[1+sidLen:]

	// cipher_suites
	if len(buf) < 2 {
		return info, invalidf("clienthello: truncated before cipher_suites length")
	}
	csLen := int(readUint16(buf))
	if csLen%2 != 0 || len(buf) < 2+csLen {
		return info, invalidf("clienthello: invalid cipher_suites length %d", csLen)
	}
	buf = buf[2+csLen:]

	// compression_methods
	if len(buf) < 1 {
		return info, invalidf("clienthello: truncated before compression_methods length")
	}
	cmLen := int(buf[0])
	if cmLen < tlsCompressionMinLen || len(buf) < 1+cmLen {
		return info, invalidf("clienthello: invalid compression_methods length %d", cmLen)
	}
	buf = buf[1+cmLen:]

	// extensions (optional)
	if len(buf) < 2 {
		return info, nil // OK to have no more bytes: no extensions.
	}
	extLen := int(readUint16(buf))
	buf = buf[2:]
	if len(buf) < extLen {
		return info, invalidf("clienthello: extension list length %d exceeds remaining %d bytes", extLen, len(buf))
	}

	if err := readExtensions(connCtx, buf[:extLen], &info); err != nil {
		return info, err
	}
	return info, nil
}

// ReadInitial walks every complete TLS handshake message in buf,
// rejecting any whose type is not ClientHello, and requires the
// resulting ClientHelloInfo.AlpnList to be non-empty. Absence of SNI is
// not an error. Returns ErrPending if buf does not yet contain a
// complete next message.
func ReadInitial(connCtx ConnectionContext, buf []byte) (ClientHelloInfo, error) {
	var info ClientHelloInfo

	for {
		if len(buf) < tlsMessageHeaderLength {
			return info, ErrPending
		}
		if buf[0] != tlsHandshakeTypeClientHello {
			return info, invalidf("initial: unsupported handshake type %#x", buf[0])
		}

		msgLen := int(readUint24(buf[1:4]))
		if len(buf) < tlsMessageHeaderLength+msgLen {
			return info, ErrPending
		}

		var err error
		info, err = ReadClientHello(connCtx, buf[tlsMessageHeaderLength:tlsMessageHeaderLength+msgLen])
		if err != nil {
			return info, err
		}

		buf = buf[tlsMessageHeaderLength+msgLen:]
		if len(buf) == 0 {
			break
		}
	}

	if len(info.AlpnList) == 0 {
		return info, invalidf("initial: missing required alpn extension")
	}

	return info, nil
}

func readUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
