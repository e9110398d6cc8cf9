package qtls

// ClientRandomLength is the size of the TLS ClientHello random field
// (RFC 8446 §4.1.2).
const ClientRandomLength = tlsRandomLength

// ReadClientRandom extracts the 32-byte random field from a raw TLS
// handshake message (the same buffer ReadInitial consumes, 4-byte
// header included), without otherwise parsing the message. It
// exists so callers that need the random for key-log correlation or
// retry validation don't have to pay for a full ClientHello parse.
//
// The returned slice aliases buf; copy it if it must outlive buf.
func ReadClientRandom(buf []byte) ([]byte, error) {
	const offset = tlsMessageHeaderLength + 2 // header + legacy_version
	if len(buf) < offset+tlsRandomLength {
		return nil, invalidf("clientrandom: truncated before random")
	}
	if buf[0] != tlsHandshakeTypeClientHello {
		return nil, invalidf("clientrandom: unsupported handshake type %#x", buf[0])
	}
	return buf[offset : offset+tlsRandomLength], nil
}
