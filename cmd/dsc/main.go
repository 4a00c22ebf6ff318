// Command dsc serves the setting circle encoders to planetarium software
// over TCP and a serial port, with a small HTTP API for settings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/w1xm/dsc_interface/config"
	"github.com/w1xm/dsc_interface/control"
	"github.com/w1xm/dsc_interface/encoder"
	"github.com/w1xm/dsc_interface/protocol"
	"github.com/w1xm/dsc_interface/transport"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

var (
	addr           = flag.String("addr", fmt.Sprintf(":%d", transport.DefaultPort), "address to serve the encoder protocol on")
	httpAddr       = flag.String("http_addr", ":8080", "address to serve the HTTP API on")
	serialPort     = flag.String("serial", "", "serial port to serve the encoder protocol on")
	baud           = flag.Int("baud", 9600, "serial port baud rate")
	configPath     = flag.String("config", "dsc.yaml", "settings file")
	modbusPort     = flag.String("modbus_serial", "", "serial port of a Modbus counter module; empty counts locally")
	modbusURL      = flag.String("modbus_url", "", "URL of a modbus bridge to reach the counter module through")
	modbusPassword = flag.String("modbus_password", "", "modbus bridge password")
	modbusBaud     = flag.Int("modbus_baud", 19200, "Modbus baud rate")
	modbusSlave    = flag.Int("modbus_slave", 1, "Modbus slave id")
	modbusInterval = flag.Duration("modbus_interval", 20*time.Millisecond, "Modbus poll interval")
	simulate       = flag.Bool("simulate", false, "turn the local counters at a constant rate")
	simAzRate      = flag.Float64("sim_az_rate", 50, "simulated azimuth rate in ticks/second")
	simAltRate     = flag.Float64("sim_alt_rate", -20, "simulated altitude rate in ticks/second")
	resetGPIO      = flag.Int("reset_gpio", -1, "sysfs GPIO number of the reset button; negative disables it")
	loopInterval   = flag.Duration("loop_interval", control.DefaultInterval, "control loop period")
	statusInterval = flag.Duration("status_interval", 250*time.Millisecond, "websocket status period")
)

// Quadrature inputs for the local counter, and counter channels for the
// Modbus module.
var (
	counterPins = [2]encoder.Pins{{A: 17, B: 27}, {A: 22, B: 23}}
	modbusPins  = [2]encoder.Pins{{A: 0, B: 0}, {A: 1, B: 1}}
)

func restart() {
	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("restart: %v", err)
	}
	log.Printf("restarting %s", exe)
	err = unix.Exec(exe, os.Args, os.Environ())
	log.Fatalf("restart: %v", err)
}

func main() {
	flag.Parse()

	store, err := config.OpenFile(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var src encoder.Source
	pins := counterPins
	if *modbusPort != "" || *modbusURL != "" {
		var m *encoder.Modbus
		if *modbusURL != "" {
			m = encoder.NewModbusBridge(*modbusURL, *modbusPassword, byte(*modbusSlave), *modbusInterval)
		} else {
			m = encoder.NewModbus(*modbusPort, *modbusBaud, byte(*modbusSlave), *modbusInterval)
		}
		g.Go(func() error { return m.Run(ctx) })
		src, pins = m, modbusPins
	} else {
		c := encoder.NewCounter()
		if *simulate {
			sim := encoder.NewSimulator(c, *simAzRate, *simAltRate)
			g.Go(func() error { return sim.Run(ctx) })
		}
		src = c
	}
	for _, p := range encoder.Setup(src, store, pins) {
		log.Printf("%v: resolution %d, start %d, flipped %v", p.Axis, p.Resolution, p.StartOffset, p.Flipped)
	}

	d := protocol.NewDispatcher(src, store)

	l, err := transport.Listen(*addr)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("serving encoders on %v", l.Addr())
	sessions := transport.NewSessions(l, d)

	var channel control.Poller
	if *serialPort != "" {
		s := transport.NewSerial(*serialPort, *baud)
		g.Go(func() error { return s.Run(ctx) })
		channel = transport.NewChannel(s, d)
	}

	var reset *control.Reset
	if *resetGPIO >= 0 {
		button, err := openGPIOButton(gpioRoot, *resetGPIO)
		if err != nil {
			log.Fatal(err)
		}
		reset = control.NewReset(button, src,
			control.BeeperFunc(func() { log.Print("beep") }),
			control.RestarterFunc(restart))
	}

	loop := control.New(reset, channel, sessions, *loopInterval)
	g.Go(func() error {
		defer sessions.Close()
		defer l.Close()
		return loop.Run(ctx)
	})

	srv := &http.Server{
		Handler:      NewServer(loop, src, store, *statusInterval).Router(),
		Addr:         *httpAddr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
