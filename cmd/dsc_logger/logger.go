package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
	"github.com/w1xm/dsc_interface/bbox"
)

var (
	mode     = flag.String("mode", "ws", "read positions from the HTTP API websocket (ws) or by polling the protocol (tcp)")
	interval = flag.Duration("interval", time.Second, "poll interval in tcp mode")
	org      = flag.String("org", "w1xm", "InfluxDB organization")
	bucket   = flag.String("bucket", "dsc.raw", "InfluxDB bucket")
)

func main() {
	flag.Parse()
	// Create client
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi(*org, *bucket)
	defer writeApi.Close()
	// Get errors channel
	errorsCh := writeApi.Errors()
	// Create go proc for reading and logging errors
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()

	switch *mode {
	case "ws":
		for {
			if err := logSocket(writeApi); err != nil {
				log.Print(err)
			}
			time.Sleep(1 * time.Second)
		}
	case "tcp":
		addr := os.Getenv("DSC_ADDRESS")
		if addr == "" {
			addr = "localhost:4030"
		}
		err := bbox.Watch(context.Background(), addr, *interval, func(status bbox.Status) {
			writeApi.WritePoint(statusPoint(status, time.Now()))
		})
		log.Fatal(err)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func statusPoint(status bbox.Status, ts time.Time) *write.Point {
	return influxdb2.NewPoint("dsc.position",
		nil,
		map[string]interface{}{
			"azimuth":             status.Azimuth,
			"altitude":            status.Altitude,
			"azimuth_resolution":  status.AzimuthResolution,
			"altitude_resolution": status.AltitudeResolution,
		},
		ts,
	)
}

func logSocket(writeApi api.WriteApi) error {
	url := os.Getenv("DSC_WS_ADDRESS")
	if url == "" {
		url = "ws://localhost:8080/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status bbox.Status
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		// write asynchronously
		writeApi.WritePoint(statusPoint(status, time.Now()))
	}
}
