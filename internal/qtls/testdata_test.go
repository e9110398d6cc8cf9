package qtls

import "testing"

// Shared ClientHello-construction helpers for the table-driven tests in
// this package. Every helper builds the minimum valid wire form so
// individual tests can corrupt exactly the field under test.

func buildTransportParams(t *testing.T) []byte {
	t.Helper()
	p := LocalTransportParameters(LocalParams{})
	buf, err := EncodeTransportParameters(false, &p, nil)
	if err != nil {
		t.Fatalf("building transport params fixture: %v", err)
	}
	return buf
}

func tlvExt(extType uint16, payload []byte) []byte {
	n := len(payload)
	return append([]byte{byte(extType >> 8), byte(extType), byte(n >> 8), byte(n)}, payload...)
}

func sniExt(name string) []byte {
	entry := append([]byte{sniNameTypeHostName, byte(len(name) >> 8), byte(len(name))}, name...)
	list := append([]byte{byte(len(entry) >> 8), byte(len(entry))}, entry...)
	return tlvExt(extTypeServerName, list)
}

func alpnExt(protos ...string) []byte {
	var list []byte
	for _, p := range protos {
		list = append(list, byte(len(p)))
		list = append(list, p...)
	}
	out := append([]byte{byte(len(list) >> 8), byte(len(list))}, list...)
	return tlvExt(extTypeALPN, out)
}

func tpExt(payload []byte) []byte {
	return tlvExt(extTypeQUICTransportParams, payload)
}

// buildClientHelloBody builds a ClientHello body (no outer handshake
// header) with legacy_version/random/session_id/cipher_suites/
// compression_methods fixed and the given already-framed extensions
// concatenated.
func buildClientHelloBody(extensions ...[]byte) []byte {
	var buf []byte
	buf = append(buf, 0x03, 0x03) // legacy_version: TLS 1.2 wire value
	buf = append(buf, make([]byte, tlsRandomLength)...)
	buf = append(buf, 0x00)             // session_id length 0
	buf = append(buf, 0x00, 0x02, 0x13, 0x01) // cipher_suites: one entry
	buf = append(buf, 0x01, 0x00)       // compression_methods: [0]

	var extBlob []byte
	for _, e := range extensions {
		extBlob = append(extBlob, e...)
	}
	buf = append(buf, byte(len(extBlob)>>8), byte(len(extBlob)))
	buf = append(buf, extBlob...)
	return buf
}

func wrapHandshake(body []byte) []byte {
	n := len(body)
	return append([]byte{tlsHandshakeTypeClientHello, byte(n >> 16), byte(n >> 8), byte(n)}, body...)
}
