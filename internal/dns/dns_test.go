package dns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupReturnsIPLiteral(t *testing.T) {
	r := NewResolver()
	r.lookup = func(context.Context, *net.Resolver, string) ([]string, error) {
		t.Fatal("literal must not be resolved")
		return nil, nil
	}

	ip, err := r.Lookup(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)
}

func TestLookupPrefersIPv4(t *testing.T) {
	r := NewResolver()
	r.lookup = func(context.Context, *net.Resolver, string) ([]string, error) {
		return []string{"::1", "10.0.0.7"}, nil
	}

	ip, err := r.Lookup(context.Background(), "relay.example")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", ip)
}

func TestLookupFallsBackToPublicServers(t *testing.T) {
	r := &Resolver{
		Servers:       []string{"192.0.2.1", "192.0.2.2"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
	}
	r.lookup = func(_ context.Context, res *net.Resolver, _ string) ([]string, error) {
		if !res.PreferGo {
			return nil, errors.New("local resolver broken")
		}
		return []string{"203.0.113.9"}, nil
	}

	ip, err := r.Lookup(context.Background(), "relay.example")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestLookupFailsWhenEverythingFails(t *testing.T) {
	r := &Resolver{
		Servers:       []string{"192.0.2.1"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
	}
	r.lookup = func(context.Context, *net.Resolver, string) ([]string, error) {
		return nil, errors.New("nope")
	}

	_, err := r.Lookup(context.Background(), "relay.example")
	assert.Error(t, err)
}

func TestPreferIPv4Empty(t *testing.T) {
	_, err := preferIPv4(nil)
	assert.ErrorIs(t, err, ErrNoAddress)
}
