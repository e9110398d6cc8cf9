// Copyright 2015 Matthew Holt and The Caddy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command qtlsinspect decodes a captured QUIC Initial CRYPTO blob (the
// reassembled TLS ClientHello bytes, not a full UDP packet) and prints
// the resulting ClientHelloInfo as JSON. It takes its input either from
// a file named by --in (-i) or, if that is omitted, from stdin, so it can sit
// at the end of a pipeline that extracts CRYPTO frames out of a pcap.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/caddyserver/quictlsfront/internal/qtls"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "qtlsinspect: failed to set up logging: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	// Large batch runs over pcap-derived corpora benefit from matching
	// GOMAXPROCS to the container quota, same as caddy's own cmd/main.go.
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	defer undo()
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	fs := pflag.NewFlagSet("qtlsinspect", pflag.ContinueOnError)
	inPath := fs.StringP("in", "i", "", "path to a file containing a reassembled ClientHello CRYPTO stream (default: stdin)")
	draft29 := fs.Bool("draft29", false, "decode the QUIC transport parameters extension using the draft-29 extension id (0xffa5) instead of the standard one (0x0039)")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "qtlsinspect: %v\n", err)
		return 2
	}

	var in io.Reader = stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			logger.Error("failed to open input", zap.String("path", *inPath), zap.Error(err))
			return 1
		}
		defer f.Close()
		in = f
	}

	buf, err := io.ReadAll(in)
	if err != nil {
		logger.Error("failed to read input", zap.Error(err))
		return 1
	}

	connCtx := qtls.ConnectionContext{}
	if *draft29 {
		connCtx.QUICVersion = qtls.QUICVersionDraft29
	}

	info, err := qtls.ReadInitial(connCtx, buf)
	if err != nil {
		logger.Error("failed to decode client hello", zap.Error(err), zap.Int("input_bytes", len(buf)))
		return 1
	}

	out, err := json.MarshalIndent(clientHelloReport{
		ServerName: string(info.ServerName),
		ALPN:       decodeALPNList(info.AlpnList),
		TransportParameters: transportParametersReport{
			IdleTimeout:             info.TransportParameters.IdleTimeout,
			MaxUdpPayloadSize:       info.TransportParameters.MaxUdpPayloadSize,
			InitialMaxData:          info.TransportParameters.InitialMaxData,
			InitialMaxBidiStreams:   info.TransportParameters.InitialMaxBidiStreams,
			InitialMaxUniStreams:    info.TransportParameters.InitialMaxUniStreams,
			ActiveConnectionIdLimit: info.TransportParameters.ActiveConnectionIdLimit,
			DisableActiveMigration:  info.TransportParameters.DisableActiveMigration,
			GreaseQuicBit:           info.TransportParameters.GreaseQuicBit,
		},
	}, "", "  ")
	if err != nil {
		logger.Error("failed to marshal report", zap.Error(err))
		return 1
	}

	fmt.Fprintln(stdout, string(out))
	return 0
}

type clientHelloReport struct {
	ServerName          string                    `json:"server_name,omitempty"`
	ALPN                []string                  `json:"alpn,omitempty"`
	TransportParameters transportParametersReport `json:"transport_parameters"`
}

type transportParametersReport struct {
	IdleTimeout             uint64 `json:"idle_timeout_ms"`
	MaxUdpPayloadSize       uint64 `json:"max_udp_payload_size"`
	InitialMaxData          uint64 `json:"initial_max_data"`
	InitialMaxBidiStreams   uint64 `json:"initial_max_streams_bidi"`
	InitialMaxUniStreams    uint64 `json:"initial_max_streams_uni"`
	ActiveConnectionIdLimit uint64 `json:"active_connection_id_limit"`
	DisableActiveMigration  bool   `json:"disable_active_migration"`
	GreaseQuicBit           bool   `json:"grease_quic_bit"`
}

// decodeALPNList splits the raw {1-byte length, name} ALPN list qtls
// exposes back into individual protocol name strings for display.
func decodeALPNList(raw []byte) []string {
	var out []string
	for len(raw) > 0 {
		n := int(raw[0])
		raw = raw[1:]
		if n > len(raw) {
			break
		}
		out = append(out, string(raw[:n]))
		raw = raw[n:]
	}
	return out
}
