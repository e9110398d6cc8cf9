package qtls

// TLS extension type values this package cares about (RFC 8446 §4.2,
// and the QUIC transport-parameters extension, RFC 9001 §8.2).
const (
	extTypeServerName           = 0x0000
	extTypeALPN                 = 0x0010
	extTypeQUICTransportParams  = 0x0039
	extTypeQUICTransportParamsD = 0xffa5 // draft-29
)

const sniNameTypeHostName = 0

// readExtensions walks a TLS extension list: repeated {type, length,
// value} triples. It dispatches the three extensions this package
// understands, skips everything else, rejects a duplicate occurrence of
// any extension it dispatches, and requires the QUIC transport
// parameters extension to have been present by the time the list ends.
func readExtensions(connCtx ConnectionContext, buf []byte, info *ClientHelloInfo) error {
	var foundSNI, foundALPN, foundTP bool

	transportParamExtType := uint16(extTypeQUICTransportParams)
	if connCtx.QUICVersion == QUICVersionDraft29 {
		transportParamExtType = extTypeQUICTransportParamsD
	}

	for len(buf) > 0 {
		if len(buf) < 4 {
			return invalidf("extensions: truncated extension header")
		}
		extType := readUint16(buf)
		extLen := int(readUint16(buf[2:]))
		buf = buf[4:]
		if len(buf) < extLen {
			return invalidf("extensions: extension %#x length %d exceeds remaining bytes", extType, extLen)
		}
		payload := buf[:extLen]

		switch {
		case extType == extTypeServerName:
			if foundSNI {
				return invalidf("extensions: duplicate server_name extension")
			}
			if err := readSNIExtension(payload, info); err != nil {
				return err
			}
			foundSNI = true

		case extType == extTypeALPN:
			if foundALPN {
				return invalidf("extensions: duplicate alpn extension")
			}
			if err := readALPNExtension(payload, info); err != nil {
				return err
			}
			foundALPN = true

		case extType == transportParamExtType:
			if foundTP {
				return invalidf("extensions: duplicate quic transport parameters extension")
			}
			tp, err := DecodeTransportParameters(false, payload)
			if err != nil {
				return err
			}
			info.TransportParameters = tp
			foundTP = true
		}

		buf = buf[extLen:]
	}

	if !foundTP {
		return invalidf("extensions: missing quic transport parameters extension")
	}
	return nil
}

// readSNIExtension parses a server_name extension payload:
//
//	struct {
//	    NameType name_type;
//	    select (name_type) { case host_name: HostName; } name;
//	} ServerName;
//	struct { ServerName server_name_list<1..2^16-1> } ServerNameList;
//
// It validates every entry's framing but captures only the first
// host_name (name_type == 0) entry.
func readSNIExtension(buf []byte, info *ClientHelloInfo) error {
	if len(buf) < 2 {
		return invalidf("sni: truncated list length")
	}
	// 3 bytes minimum: 1-byte name type + empty 2-byte HostName length.
	if readUint16(buf) < 3 {
		return invalidf("sni: list length %d too small", readUint16(buf))
	}
	buf = buf[2:]

	var found bool
	for len(buf) > 0 {
		nameType := buf[0]
		buf = buf[1:]
		if len(buf) < 2 {
			return invalidf("sni: truncated name length")
		}
		nameLen := int(readUint16(buf))
		buf = buf[2:]
		if len(buf) < nameLen {
			return invalidf("sni: name length %d exceeds remaining bytes", nameLen)
		}
		// A zero-length host name is rejected: it can never be a
		// meaningful server name, regardless of what RFC 6066 permits.
		if nameType == sniNameTypeHostName && nameLen == 0 {
			return invalidf("sni: empty host_name entry")
		}
		if nameType == sniNameTypeHostName && !found {
			info.ServerName = buf[:nameLen]
			found = true
		}
		buf = buf[nameLen:]
	}
	return nil
}

// readALPNExtension parses an alpn extension payload:
//
//	opaque ProtocolName<1..2^8-1>;
//	struct { ProtocolName protocol_name_list<2..2^16-1> } ProtocolNameList;
//
// It validates every entry's framing and exposes the whole concatenated
// list (minus the outer 2-byte list length) to the caller.
func readALPNExtension(buf []byte, info *ClientHelloInfo) error {
	if len(buf) < 4 {
		return invalidf("alpn: extension too short")
	}
	listLen := int(readUint16(buf))
	if listLen != len(buf)-2 {
		return invalidf("alpn: list length %d does not match payload", listLen)
	}
	list := buf[2:]
	info.AlpnList = list

	rest := list
	for len(rest) > 0 {
		protoLen := int(rest[0])
		rest = rest[1:]
		if protoLen < 1 || len(rest) < protoLen {
			return invalidf("alpn: invalid protocol length %d", protoLen)
		}
		rest = rest[protoLen:]
	}
	return nil
}
