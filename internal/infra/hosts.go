package infra

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

const (
	hostsBlockBegin = "# BEGIN focuslock"
	hostsBlockEnd   = "# END focuslock"
	sinkAddress     = "0.0.0.0"
)

// HostsFile implements domain.DomainBlocker by owning a marked block in a
// hosts file. Lines outside the block are never touched.
type HostsFile struct {
	mu   sync.Mutex
	path string
}

// NewHostsFile manages the hosts file at path.
func NewHostsFile(path string) *HostsFile {
	return &HostsFile{path: path}
}

// Apply replaces the managed block with entries for domains and their www
// variant. The file is left untouched when the block already matches.
func (h *HostsFile) Apply(domains []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return err
	}
	next := withBlock(stripBlock(current), renderBlock(domains))
	if bytes.Equal(current, next) {
		return nil
	}
	return h.write(next)
}

// Clear removes the managed block.
func (h *HostsFile) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return err
	}
	next := stripBlock(current)
	if bytes.Equal(current, next) {
		return nil
	}
	return h.write(next)
}

// Blocked returns the domains currently in the managed block.
func (h *HostsFile) Blocked() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.read()
	if err != nil {
		return nil, err
	}
	var out []string
	inside := false
	for _, line := range strings.Split(string(current), "\n") {
		switch {
		case line == hostsBlockBegin:
			inside = true
		case line == hostsBlockEnd:
			inside = false
		case inside:
			fields := strings.Fields(line)
			if len(fields) == 2 && !strings.HasPrefix(fields[1], "www.") {
				out = append(out, fields[1])
			}
		}
	}
	return out, nil
}

func (h *HostsFile) read() ([]byte, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hosts file: %w", err)
	}
	return data, nil
}

// write replaces the file through a temp file + rename, keeping its mode.
func (h *HostsFile) write(data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(h.path); err == nil {
		mode = info.Mode().Perm()
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", h.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("write hosts file: %w", err)
	}
	if err := os.Rename(tmpPath, h.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace hosts file: %w", err)
	}
	return nil
}

func renderBlock(domains []string) []byte {
	if len(domains) == 0 {
		return nil
	}
	var b bytes.Buffer
	b.WriteString(hostsBlockBegin + "\n")
	for _, d := range domains {
		fmt.Fprintf(&b, "%s %s\n", sinkAddress, d)
		if !strings.HasPrefix(d, "www.") {
			fmt.Fprintf(&b, "%s www.%s\n", sinkAddress, d)
		}
	}
	b.WriteString(hostsBlockEnd + "\n")
	return b.Bytes()
}

func stripBlock(data []byte) []byte {
	var out []string
	inside := false
	for _, line := range strings.SplitAfter(string(data), "\n") {
		trimmed := strings.TrimRight(line, "\n")
		switch {
		case trimmed == hostsBlockBegin:
			inside = true
		case trimmed == hostsBlockEnd:
			inside = false
		case !inside:
			out = append(out, line)
		}
	}
	return []byte(strings.Join(out, ""))
}

func withBlock(base, block []byte) []byte {
	if len(block) == 0 {
		return base
	}
	if len(base) > 0 && !bytes.HasSuffix(base, []byte("\n")) {
		base = append(base, '\n')
	}
	return append(base, block...)
}

var _ domain.DomainBlocker = (*HostsFile)(nil)
