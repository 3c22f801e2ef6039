// Package nis implements a client for the apcupsd Network Information
// Server status protocol: a 2-byte big-endian length-prefixed request
// ("status") answered by a sequence of length-prefixed "key : value"
// lines terminated by a zero-length line.
package nis

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
)

const (
	statusCommand = "status"

	// apcupsd caps NIS lines well below this; anything larger is a
	// corrupt frame.
	maxLineLength = 1024
)

type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Client queries an apcupsd NIS endpoint. Each FetchStatus call opens a
// fresh connection; there is no persistent session to keep alive.
type Client struct {
	addr    string
	timeout time.Duration
}

func NewClient(cfg Config) *Client {
	return &Client{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		timeout: cfg.Timeout,
	}
}

// FetchStatus sends the status command and returns the raw field map.
// Failures are distinguished as ErrConnectFailure (dial), ErrTimeout
// (deadline exceeded at any point) and ErrProtocolError (malformed or
// truncated frames); callers treat all three as "unavailable this cycle".
func (c *Client) FetchStatus(ctx context.Context) (map[string]string, error) {
	errFactory := errors.New()

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		if isTimeout(err) {
			return nil, errFactory.Wrap(ErrTimeout, err)
		}
		return nil, errFactory.Wrap(ErrConnectFailure, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, errFactory.Wrap(ErrConnectFailure, err)
	}

	if err := writeFrame(conn, statusCommand); err != nil {
		return nil, classify(errFactory, err)
	}

	fields := make(map[string]string)
	for {
		line, terminator, err := readFrame(conn)
		if err != nil {
			return nil, classify(errFactory, err)
		}
		if terminator {
			break
		}

		// Lines without a separator (apcupsd's "END APC" trailer
		// variants) carry no field and are skipped.
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if len(fields) == 0 {
		return nil, errFactory.WithData(ErrProtocolError, "empty status response")
	}

	return fields, nil
}

func writeFrame(conn net.Conn, payload string) error {
	buf := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	copy(buf[2:], payload)

	_, err := conn.Write(buf)

	return err
}

// readFrame reads one length-prefixed line. The second return value is
// true for the zero-length terminator frame.
func readFrame(conn net.Conn) (string, bool, error) {
	var header [2]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return "", false, err
	}

	length := binary.BigEndian.Uint16(header[:])
	if length == 0 {
		return "", true, nil
	}
	if length > maxLineLength {
		return "", false, errors.New().WithData(ErrProtocolError, "oversize frame")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return "", false, err
	}

	return string(buf), false, nil
}

func classify(errFactory errors.Factory, err error) error {
	if errors.IsCode(err, ErrProtocolError) {
		return err
	}
	if isTimeout(err) {
		return errFactory.Wrap(ErrTimeout, err)
	}

	// Anything else mid-session (EOF before the terminator, resets,
	// short reads) left the response truncated.
	return errFactory.Wrap(ErrProtocolError, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
