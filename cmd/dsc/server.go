package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/w1xm/dsc_interface/bbox"
	"github.com/w1xm/dsc_interface/config"
	"github.com/w1xm/dsc_interface/control"
	"github.com/w1xm/dsc_interface/encoder"
)

const masked = "********"

type settings interface {
	config.Store
	Entries() []config.Entry
	Lookup(key string) (config.Entry, bool)
}

// Server exposes positions and settings over HTTP. Every access to the
// encoders or the settings runs on the control loop.
type Server struct {
	loop     *control.Loop
	src      encoder.Source
	store    settings
	interval time.Duration
}

func NewServer(loop *control.Loop, src encoder.Source, store settings, interval time.Duration) *Server {
	return &Server{loop: loop, src: src, store: store, interval: interval}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.StatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.StatusSocketHandler)
	api.HandleFunc("/config", s.ConfigHandler).Methods(http.MethodGet)
	api.HandleFunc("/config", s.UpdateConfigHandler).Methods(http.MethodPost)
	api.HandleFunc("/zero", s.ZeroHandler).Methods(http.MethodPost)
	return r
}

func (s *Server) status(ctx context.Context) (bbox.Status, error) {
	var status bbox.Status
	err := s.loop.Call(ctx, func() {
		status.Azimuth = s.src.Count(encoder.Azimuth)
		status.Altitude = s.src.Count(encoder.Altitude)
		status.AzimuthResolution = int64(s.store.Int(config.AzimuthSteps))
		status.AltitudeResolution = int64(s.store.Int(config.AltitudeSteps))
	})
	return status, err
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		log.Print(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, status)
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// Incoming messages are ignored; reading notices the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		status, err := s.status(ctx)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(status); err != nil {
			log.Print(err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

type configEntry struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	var entries []config.Entry
	if err := s.loop.Call(r.Context(), func() {
		entries = s.store.Entries()
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	out := make([]configEntry, 0, len(entries))
	for _, e := range entries {
		v := e.Value
		if e.Type == config.Password && v != "" {
			v = masked
		}
		out = append(out, configEntry{Name: e.Name, Label: e.Label, Value: v, Type: e.Type.String()})
	}
	writeJSON(w, out)
}

func readUpdates(r *http.Request) (map[string]string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		values := make(map[string]string)
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return nil, err
		}
		return values, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for k, v := range r.PostForm {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	return values, nil
}

// UpdateConfigHandler applies key/value updates. Nothing is written unless
// every key is known. A masked password is left unchanged.
func (s *Server) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	values, err := readUpdates(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var applyErr error
	if err := s.loop.Call(r.Context(), func() {
		for k := range values {
			if _, ok := s.store.Lookup(k); !ok {
				applyErr = fmt.Errorf("%w: %q", config.ErrUnknownKey, k)
				return
			}
		}
		for k, v := range values {
			if e, _ := s.store.Lookup(k); e.Type == config.Password && v == masked {
				continue
			}
			if err := s.store.SetValue(k, v); err != nil {
				applyErr = err
				return
			}
			log.Printf("config: %s updated", k)
		}
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if applyErr != nil {
		code := http.StatusInternalServerError
		if errors.Is(applyErr, config.ErrUnknownKey) {
			code = http.StatusBadRequest
		}
		http.Error(w, applyErr.Error(), code)
		return
	}
	s.ConfigHandler(w, r)
}

func (s *Server) ZeroHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.loop.Call(r.Context(), func() {
		encoder.ClearAll(s.src)
	}); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	log.Print("positions cleared from web")
	s.StatusHandler(w, r)
}
