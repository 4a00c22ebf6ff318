package modbus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/goburrow/modbus"
)

// SendResponse is the bridge's answer to one ADU.
type SendResponse struct {
	ADUResponse []byte
	Error       string
}

// HTTPHandler frames requests like an RTU handler but sends each ADU to a
// Bridge over HTTP.
type HTTPHandler struct {
	*modbus.RTUClientHandler

	url      string
	password string
	client   *http.Client
}

func NewHTTPHandler(url, password string, slaveID byte) *HTTPHandler {
	handler := modbus.NewRTUClientHandler("/dev/null")
	handler.SlaveId = slaveID
	return &HTTPHandler{
		RTUClientHandler: handler,
		url:              url,
		password:         password,
		client:           &http.Client{Timeout: 5 * time.Second},
	}
}

func (h *HTTPHandler) Send(aduRequest []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(aduRequest))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if h.password != "" {
		req.SetBasicAuth("", h.password)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status code: %s\n%s", resp.Status, string(body))
	}
	var sendResponse SendResponse
	if err := json.Unmarshal(body, &sendResponse); err != nil {
		return nil, err
	}
	if sendResponse.Error != "" {
		err = errors.New(sendResponse.Error)
	}
	return sendResponse.ADUResponse, err
}

func (h *HTTPHandler) Connect() error {
	return nil
}

func (h *HTTPHandler) Close() error {
	return nil
}

// Bridge relays ADUs posted over HTTP to a local serial port, so a counter
// module can be read from another machine.
type Bridge struct {
	t        modbus.Transporter
	password string
}

func NewBridge(port string, baud int, password string) *Bridge {
	return &Bridge{t: newRTUHandler(port, baud, 1), password: password}
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.password != "" {
		_, pass, ok := r.BasicAuth()
		if !ok || pass != b.password {
			http.Error(w, "wrong password", http.StatusUnauthorized)
			return
		}
	}
	err := func() error {
		aduRequest, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		aduResponse, err := b.t.Send(aduRequest)
		var errString string
		if err != nil {
			errString = err.Error()
		}
		body, err := json.Marshal(&SendResponse{
			ADUResponse: aduResponse,
			Error:       errString,
		})
		if err != nil {
			return err
		}
		_, err = w.Write(body)
		return err
	}()
	if err != nil {
		log.Printf("bridge: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
