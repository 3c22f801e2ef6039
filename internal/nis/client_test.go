package nis

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statusFixture = []string{
	"APC      : 001,038,0985",
	"DATE     : 2026-03-01 12:00:00 -0500",
	"STATUS   : ONLINE",
	"LINEV    : 120.0 Volts",
	"LOADPCT  : 20.0 Percent",
	"BCHARGE  : 100.0 Percent",
	"TIMELEFT : 88.0 Minutes",
	"OUTPUTV  : 120.0 Volts",
	"ITEMP    : 27.9 C",
	"END APC  : 2026-03-01 12:00:00 -0500",
}

func writeFrameTo(t *testing.T, conn net.Conn, payload string) {
	t.Helper()
	buf := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	copy(buf[2:], payload)
	_, err := conn.Write(buf)
	require.NoError(t, err)
}

// serve starts a one-shot NIS server; handler gets the accepted
// connection after the status request has been consumed.
func serve(t *testing.T, handler func(conn net.Conn)) Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var header [2]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		cmd := make([]byte, binary.BigEndian.Uint16(header[:]))
		if _, err := io.ReadFull(conn, cmd); err != nil {
			return
		}

		handler(conn)
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return Config{Host: host, Port: port, Timeout: 2 * time.Second}
}

func TestFetchStatus(t *testing.T) {
	cfg := serve(t, func(conn net.Conn) {
		for _, line := range statusFixture {
			writeFrameTo(t, conn, line)
		}
		_, err := conn.Write([]byte{0, 0})
		require.NoError(t, err)
	})

	fields, err := NewClient(cfg).FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ONLINE", fields["STATUS"])
	assert.Equal(t, "120.0 Volts", fields["LINEV"])
	assert.Equal(t, "20.0 Percent", fields["LOADPCT"])
	assert.Equal(t, "88.0 Minutes", fields["TIMELEFT"])
	assert.Len(t, fields, len(statusFixture))
}

func TestFetchStatusConnectFailure(t *testing.T) {
	// Grab a port that is guaranteed closed.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)
	ln.Close()

	client := NewClient(Config{Host: host, Port: port, Timeout: time.Second})
	_, err = client.FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrConnectFailure))
}

func TestFetchStatusTruncatedFrame(t *testing.T) {
	cfg := serve(t, func(conn net.Conn) {
		writeFrameTo(t, conn, statusFixture[2])
		// Announce 64 bytes but deliver only a few, then hang up.
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], 64)
		conn.Write(header[:])
		conn.Write([]byte("STATUS"))
	})

	_, err := NewClient(cfg).FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrProtocolError))
}

func TestFetchStatusMissingTerminator(t *testing.T) {
	cfg := serve(t, func(conn net.Conn) {
		writeFrameTo(t, conn, statusFixture[2])
		// Close without the zero-length terminator.
	})

	_, err := NewClient(cfg).FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrProtocolError))
}

func TestFetchStatusOversizeFrame(t *testing.T) {
	cfg := serve(t, func(conn net.Conn) {
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], 4096)
		conn.Write(header[:])
	})

	_, err := NewClient(cfg).FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrProtocolError))
}

func TestFetchStatusTimeout(t *testing.T) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	cfg := serve(t, func(conn net.Conn) {
		// Never respond.
		<-done
	})
	cfg.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := NewClient(cfg).FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchStatusEmptyResponse(t *testing.T) {
	cfg := serve(t, func(conn net.Conn) {
		conn.Write([]byte{0, 0})
	})

	_, err := NewClient(cfg).FetchStatus(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrProtocolError))
}

func TestFetchStatusContextDeadline(t *testing.T) {
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	cfg := serve(t, func(conn net.Conn) {
		<-done
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(cfg).FetchStatus(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, ErrTimeout))
}
