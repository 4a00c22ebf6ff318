// Command modbus_bridge shares a serial Modbus counter module over HTTP for
// dsc -modbus_url.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w1xm/dsc_interface/internal/modbus"
)

var (
	addr       = flag.String("addr", "127.0.0.1:8502", "address to listen on")
	password   = flag.String("password", "", "password to require on remote connections")
	serialPort = flag.String("serial", "", "counter module serial port name")
	baud       = flag.Int("baud", 19200, "counter module baud rate")
)

func main() {
	flag.Parse()
	r := mux.NewRouter()
	r.Handle("/api/send", modbus.NewBridge(*serialPort, *baud, *password)).Methods(http.MethodPost)
	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Printf("Listening on %v", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}
