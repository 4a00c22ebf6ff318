package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

const gpioRoot = "/sys/class/gpio"

// gpioButton is an active-low push button on a sysfs GPIO line.
type gpioButton struct {
	path   string
	failed bool
}

func openGPIOButton(root string, pin int) (*gpioButton, error) {
	dir := filepath.Join(root, fmt.Sprintf("gpio%d", pin))
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(fmt.Sprint(pin)), 0644); err != nil {
			return nil, fmt.Errorf("exporting gpio %d: %w", pin, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0644); err != nil {
		return nil, fmt.Errorf("configuring gpio %d: %w", pin, err)
	}
	return &gpioButton{path: filepath.Join(dir, "value")}, nil
}

func (b *gpioButton) Pressed() bool {
	v, err := os.ReadFile(b.path)
	if err != nil {
		if !b.failed {
			log.Printf("reading %q: %v", b.path, err)
			b.failed = true
		}
		return false
	}
	b.failed = false
	return bytes.Equal(bytes.TrimSpace(v), []byte("0"))
}
