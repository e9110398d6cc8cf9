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

// Package quichandshake wraps internal/qtls as a Caddy app module: it
// owns the local (server-side) QUIC transport parameter set and hands
// incoming Initial CRYPTO bytes to qtls.ReadInitial on behalf of
// whatever owns the actual QUIC connection.
package quichandshake

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/quictlsfront/internal/qtls"
)

func init() {
	caddy.RegisterModule(App{})
}

// App is the quichandshake Caddy app. It holds the server's own
// transport parameter set (what gets sent back to a peer once a
// ClientHello has been accepted) and provides the front-end parse step
// for QUIC Initial packets.
type App struct {
	// IdleTimeoutMs is the local idle_timeout transport parameter, in
	// milliseconds. Zero means omit the parameter (no local idle
	// timeout advertised).
	IdleTimeoutMs uint64 `json:"idle_timeout_ms,omitempty"`

	// MaxUdpPayloadSize is the local max_udp_payload_size transport
	// parameter. Zero means use the protocol default (65527).
	MaxUdpPayloadSize uint64 `json:"max_udp_payload_size,omitempty"`

	// InitialMaxData is the local initial_max_data transport parameter.
	InitialMaxData uint64 `json:"initial_max_data,omitempty"`

	// InitialMaxStreamsBidi and InitialMaxStreamsUni are the local
	// stream-count limits offered to the peer.
	InitialMaxStreamsBidi uint64 `json:"initial_max_streams_bidi,omitempty"`
	InitialMaxStreamsUni  uint64 `json:"initial_max_streams_uni,omitempty"`

	// ActiveConnectionIdLimit is the local active_connection_id_limit
	// transport parameter. Zero means use the protocol default (2).
	ActiveConnectionIdLimit uint64 `json:"active_connection_id_limit,omitempty"`

	// DisableActiveMigration advertises disable_active_migration.
	DisableActiveMigration bool `json:"disable_active_migration,omitempty"`

	// GreaseQuicBit advertises grease_quic_bit.
	GreaseQuicBit bool `json:"grease_quic_bit,omitempty"`

	local  qtls.TransportParameters
	logger *zap.Logger
}

// CaddyModule returns the Caddy module information.
func (App) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID:  "quichandshake",
		New: func() caddy.Module { return new(App) },
	}
}

// Provision builds the local transport parameter set from the
// JSON-configured fields and sets up logging.
func (a *App) Provision(ctx caddy.Context) error {
	a.logger = ctx.Logger()
	a.local = qtls.LocalTransportParameters(qtls.LocalParams{
		IdleTimeoutMs:           a.IdleTimeoutMs,
		MaxUdpPayloadSize:       a.MaxUdpPayloadSize,
		InitialMaxData:          a.InitialMaxData,
		InitialMaxStreamsBidi:   a.InitialMaxStreamsBidi,
		InitialMaxStreamsUni:    a.InitialMaxStreamsUni,
		ActiveConnectionIdLimit: a.ActiveConnectionIdLimit,
		DisableActiveMigration:  a.DisableActiveMigration,
		GreaseQuicBit:           a.GreaseQuicBit,
	})
	return nil
}

// Validate checks the app's configuration for obvious misconfiguration
// before Start is called.
func (a *App) Validate() error {
	if a.MaxUdpPayloadSize != 0 && a.MaxUdpPayloadSize < 1200 {
		return fmt.Errorf("quichandshake: max_udp_payload_size %d below minimum 1200", a.MaxUdpPayloadSize)
	}
	return nil
}

// Start is a no-op: this app has no background goroutines or listeners
// of its own, only the per-call HandleInitial entry point.
func (a *App) Start() error { return nil }

// Stop is a no-op, for the same reason Start is.
func (a *App) Stop() error { return nil }

// LocalTransportParameters returns the transport parameter set this app
// will encode via EncodeTransportParameters, once provisioned.
func (a *App) LocalTransportParameters() qtls.TransportParameters {
	return a.local
}

// HandleInitial parses the ClientHello carried in buf (the
// reassembled Initial-packet CRYPTO stream for a single connection),
// logging the outcome with a per-call correlation id. A nil
// *qtls.ClientHelloInfo together with a nil error means more bytes are
// needed (qtls.ErrPending); callers should buffer more CRYPTO data and
// call again.
func (a *App) HandleInitial(connCtx qtls.ConnectionContext, buf []byte) (*qtls.ClientHelloInfo, error) {
	callID := uuid.New()
	logger := a.logger.With(zap.String("id", callID.String()))

	info, err := qtls.ReadInitial(connCtx, buf)
	if err != nil {
		if errors.Is(err, qtls.ErrPending) {
			logger.Debug("incomplete initial", zap.Int("buffered_bytes", len(buf)))
			return nil, nil
		}
		logger.Warn("rejected client hello", zap.Error(err))
		return nil, err
	}

	logger.Info("accepted client hello",
		zap.ByteString("server_name", info.ServerName),
		zap.ByteString("alpn", info.AlpnList))

	return &info, nil
}

// Interface guards
var (
	_ caddy.App         = (*App)(nil)
	_ caddy.Provisioner = (*App)(nil)
	_ caddy.Validator   = (*App)(nil)
)
