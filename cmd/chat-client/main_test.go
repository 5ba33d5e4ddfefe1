package main

import (
	"testing"
	"time"

	"github.com/omochice/counsel-chat/internal/config"
	"github.com/omochice/counsel-chat/internal/transport"
	"github.com/omochice/counsel-chat/internal/transport/gobwas"
	"github.com/omochice/counsel-chat/internal/transport/ws"
)

func TestNewDialer(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.TransportConfig
		check func(transport.Dialer) bool
	}{
		{
			name: "default driver",
			cfg:  config.TransportConfig{Driver: config.DriverNhooyr},
			check: func(d transport.Dialer) bool {
				_, ok := d.(*ws.Dialer)
				return ok
			},
		},
		{
			name: "gobwas driver",
			cfg:  config.TransportConfig{Driver: config.DriverGobwas},
			check: func(d transport.Dialer) bool {
				_, ok := d.(*gobwas.Dialer)
				return ok
			},
		},
		{
			name: "retrying",
			cfg:  config.TransportConfig{Driver: config.DriverGobwas, RetryOnFailure: true, MaxRetries: 2, RetryInterval: time.Millisecond},
			check: func(d transport.Dialer) bool {
				_, ok := d.(*transport.RetryDialer)
				return ok
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := newDialer(tt.cfg); !tt.check(d) {
				t.Errorf("newDialer() = %T", d)
			}
		})
	}
}
