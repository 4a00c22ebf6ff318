package modbus

import (
	"context"
	"encoding/binary"
	"log"
	"time"

	"github.com/goburrow/modbus"
)

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Client is a Modbus RTU connection that calls Poll in a loop while the
// port is open and reopens it a second after any failure.
type Client struct {
	Port string
	// BaudRate defaults to 19200
	BaudRate int
	SlaveId  byte
	// URL, if set, reaches the port through a Bridge instead of opening
	// Port locally. Password is sent with every request.
	URL      string
	Password string

	// Poll function to be called in a loop while the connection is active
	Poll func() error
	// Interval between polls; zero polls back to back.
	Interval time.Duration

	handler handler
	modbus.Client
}

func newRTUHandler(port string, baud int, slaveID byte) *modbus.RTUClientHandler {
	if baud == 0 {
		baud = 19200
	}
	handler := modbus.NewRTUClientHandler(port)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = slaveID
	return handler
}

func (c *Client) open() {
	if c.URL != "" {
		c.handler = NewHTTPHandler(c.URL, c.Password, c.SlaveId)
	} else {
		c.handler = newRTUHandler(c.Port, c.BaudRate, c.SlaveId)
	}
	c.Client = modbus.NewClient(c.handler)
}

func (c *Client) name() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Port
}

// Run keeps the port open and polled until ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	c.open()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}

		if err := c.handler.Connect(); err != nil {
			log.Printf("opening %q: %v", c.name(), err)
			continue
		}
		if err := c.watch(ctx); err != nil {
			log.Printf("watching %q: %v", c.name(), err)
		}
	}
}

func (c *Client) watch(ctx context.Context) error {
	defer c.handler.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.Poll(); err != nil {
			return err
		}
		if c.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Interval):
			}
		}
	}
}

// Uint32 decodes a big-endian register pair, high word first.
func Uint32(results []byte) uint32 {
	return binary.BigEndian.Uint32(results)
}
