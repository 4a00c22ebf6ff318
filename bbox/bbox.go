// Package bbox is a TCP client for the setting circle protocol.
package bbox

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrBadResponse = errors.New("bad response")

type Position struct {
	Azimuth  int64 `json:"azimuth"`
	Altitude int64 `json:"altitude"`
}

type Status struct {
	Position
	AzimuthResolution  int64 `json:"azimuth_resolution"`
	AltitudeResolution int64 `json:"altitude_resolution"`
}

type StatusCallback func(status Status)

// Client sends one request at a time and waits for its response.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	dialer := &net.Dialer{
		Timeout: time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), timeout: 2 * time.Second}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends req and returns the response line. The server follows
// every TCP response with an extra line ending, which is consumed here.
func (c *Client) roundTrip(req string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(req)); err != nil {
		return "", err
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading response to %q: %w", req, err)
	}
	if trailer, err := c.r.ReadString('\n'); err != nil {
		return "", fmt.Errorf("reading response to %q: %w", req, err)
	} else if trailer != "\n" {
		return "", fmt.Errorf("%w: trailer %q", ErrBadResponse, trailer)
	}
	return line, nil
}

func parsePair(line string) (int64, int64, error) {
	parts := strings.Split(strings.TrimSuffix(line, "\t\n"), "\t")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadResponse, line)
	}
	var out [2]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrBadResponse, line, err)
		}
		out[i] = v
	}
	return out[0], out[1], nil
}

func (c *Client) Query() (Position, error) {
	line, err := c.roundTrip("Q")
	if err != nil {
		return Position{}, err
	}
	az, alt, err := parsePair(line)
	return Position{Azimuth: az, Altitude: alt}, err
}

func (c *Client) Resolutions() (az, alt int64, err error) {
	line, err := c.roundTrip("H")
	if err != nil {
		return 0, 0, err
	}
	return parsePair(line)
}

func (c *Client) expectOK(req string) error {
	line, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if line != "OK\n" {
		return fmt.Errorf("%w: %q to %q", ErrBadResponse, line, req)
	}
	return nil
}

func (c *Client) Zero() error {
	return c.expectOK("Z")
}

func (c *Client) SetResolutions(az, alt int64) error {
	return c.expectOK(fmt.Sprintf("S%d,%d", az, alt))
}

// Watch polls the server at addr every interval, reconnecting a second
// after any failure, until ctx is canceled.
func Watch(ctx context.Context, addr string, interval time.Duration, cb StatusCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
		c, err := Dial(ctx, addr)
		if err != nil {
			log.Printf("opening %q: %v", addr, err)
			continue
		}
		log.Printf("opened %q", addr)
		if err := c.watch(ctx, interval, cb); err != nil && ctx.Err() == nil {
			log.Printf("watching %q: %v", addr, err)
		}
	}
}

func (c *Client) watch(ctx context.Context, interval time.Duration, cb StatusCallback) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Wait for context to be canceled, then close connection.
		<-ctx.Done()
		return c.Close()
	})
	g.Go(func() error {
		var status Status
		var err error
		status.AzimuthResolution, status.AltitudeResolution, err = c.Resolutions()
		if err != nil {
			return err
		}
		for {
			if status.Position, err = c.Query(); err != nil {
				return err
			}
			cb(status)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	})
	return g.Wait()
}
