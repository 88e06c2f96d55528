// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ReplayFile is the on-disk form of a recorded device. Each response is
// matched on (dialect, opcode, feature); several responses for the same key
// are returned in order and the last one repeats.
type ReplayFile struct {
	Device    ReplayDevice     `yaml:"device"`
	Responses []ReplayResponse `yaml:"responses"`
}

type ReplayDevice struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Bus       string `yaml:"bus"`
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
}

type ReplayResponse struct {
	Dialect string `yaml:"dialect"`
	Opcode  byte   `yaml:"opcode"`
	Feature byte   `yaml:"feature"`
	Size    int    `yaml:"size"`
	// Error makes the command fail with a ChannelError carrying this text.
	Error string `yaml:"error,omitempty"`

	Hex        string            `yaml:"hex,omitempty"`
	Words      map[int]uint16    `yaml:"words,omitempty"`
	Strings    []ReplayString    `yaml:"strings,omitempty"`
	Values     []ReplayValue     `yaml:"values,omitempty"`
	Attributes []ReplayAttribute `yaml:"attributes,omitempty"`
	Thresholds []ReplayThreshold `yaml:"thresholds,omitempty"`
}

// ReplayString is an ATA string field, stored word-swapped and space padded.
type ReplayString struct {
	Word   int    `yaml:"word"`
	Length int    `yaml:"length"`
	Text   string `yaml:"text"`
	// Plain stores the text without word swapping (NVMe identify strings).
	Plain bool `yaml:"plain,omitempty"`
}

// ReplayValue is a little-endian integer of Width bytes at Offset.
type ReplayValue struct {
	Offset int    `yaml:"offset"`
	Width  int    `yaml:"width"`
	Value  uint64 `yaml:"value"`
}

type ReplayAttribute struct {
	ID      byte   `yaml:"id"`
	Flags   uint16 `yaml:"flags"`
	Current byte   `yaml:"current"`
	Worst   byte   `yaml:"worst"`
	Raw     uint64 `yaml:"raw"`
}

type ReplayThreshold struct {
	ID    byte `yaml:"id"`
	Value byte `yaml:"value"`
}

type replayKey struct {
	dialect Dialect
	opcode  Opcode
	feature byte
}

type replayEntry struct {
	data []byte
	err  error
}

// Replay is a Channel that answers from recorded responses.
type Replay struct {
	mu      sync.Mutex
	desc    Descriptor
	entries map[replayKey][]replayEntry
	calls   []Command
	closed  bool
}

// LoadReplay reads a replay fixture from path.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading replay file: %w", err)
	}
	var file ReplayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error decoding replay file %s: %w", path, err)
	}
	r, err := NewReplay(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.desc.Name == "" {
		r.desc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return r, nil
}

// LoadReplayDir loads every *.yaml fixture in dir, sorted by file name.
func LoadReplayDir(dir string) ([]*Replay, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	replays := make([]*Replay, 0, len(matches))
	for _, m := range matches {
		r, err := LoadReplay(m)
		if err != nil {
			return nil, err
		}
		replays = append(replays, r)
	}
	return replays, nil
}

// NewReplay builds a replay channel from an in-memory fixture.
func NewReplay(file ReplayFile) (*Replay, error) {
	r := &Replay{
		desc: Descriptor{
			Name:      file.Device.Name,
			Path:      file.Device.Path,
			Bus:       ParseBusType(file.Device.Bus),
			VendorID:  file.Device.VendorID,
			ProductID: file.Device.ProductID,
		},
		entries: make(map[replayKey][]replayEntry),
	}
	if r.desc.Path == "" && r.desc.Name != "" {
		r.desc.Path = "/dev/" + r.desc.Name
	}

	for i, resp := range file.Responses {
		d, err := ParseDialect(resp.Dialect)
		if err != nil {
			return nil, fmt.Errorf("response %d: %w", i, err)
		}
		entry, err := resp.build()
		if err != nil {
			return nil, fmt.Errorf("response %d (%s): %w", i, d, err)
		}
		key := replayKey{dialect: d, opcode: Opcode(resp.Opcode), feature: resp.Feature}
		r.entries[key] = append(r.entries[key], entry)
	}
	return r, nil
}

func (resp ReplayResponse) build() (replayEntry, error) {
	if resp.Error != "" {
		return replayEntry{err: errors.New(resp.Error)}, nil
	}

	size := resp.Size
	if size == 0 {
		size = ATASectorSize
	}
	buf := make([]byte, size)

	if resp.Hex != "" {
		raw, err := hex.DecodeString(strings.Join(strings.Fields(resp.Hex), ""))
		if err != nil {
			return replayEntry{}, fmt.Errorf("bad hex: %w", err)
		}
		copy(buf, raw)
	}

	for word, v := range resp.Words {
		if word*2+2 > size {
			return replayEntry{}, fmt.Errorf("word %d out of range", word)
		}
		binary.LittleEndian.PutUint16(buf[word*2:], v)
	}

	for _, s := range resp.Strings {
		off := s.Word * 2
		if off+s.Length > size {
			return replayEntry{}, fmt.Errorf("string at word %d out of range", s.Word)
		}
		field := []byte(fmt.Sprintf("%-*s", s.Length, s.Text))[:s.Length]
		if !s.Plain {
			for i := 0; i+1 < len(field); i += 2 {
				field[i], field[i+1] = field[i+1], field[i]
			}
		}
		copy(buf[off:], field)
	}

	for _, v := range resp.Values {
		if v.Offset+v.Width > size || v.Width > 8 {
			return replayEntry{}, fmt.Errorf("value at offset %d out of range", v.Offset)
		}
		for i := 0; i < v.Width; i++ {
			buf[v.Offset+i] = byte(v.Value >> (8 * i))
		}
	}

	if len(resp.Attributes) > 0 || len(resp.Thresholds) > 0 {
		binary.LittleEndian.PutUint16(buf[0:], 0x0010)
	}
	for i, a := range resp.Attributes {
		if i >= 30 {
			return replayEntry{}, errors.New("more than 30 attributes")
		}
		off := 2 + i*12
		buf[off] = a.ID
		binary.LittleEndian.PutUint16(buf[off+1:], a.Flags)
		buf[off+3] = a.Current
		buf[off+4] = a.Worst
		for j := 0; j < 6; j++ {
			buf[off+5+j] = byte(a.Raw >> (8 * j))
		}
	}
	for i, t := range resp.Thresholds {
		if i >= 30 {
			return replayEntry{}, errors.New("more than 30 thresholds")
		}
		off := 2 + i*12
		buf[off] = t.ID
		buf[off+1] = t.Value
	}

	return replayEntry{data: buf}, nil
}

// Descriptor returns the device descriptor recorded in the fixture.
func (r *Replay) Descriptor() Descriptor {
	return r.desc
}

// Calls returns the commands issued so far, oldest first.
func (r *Replay) Calls() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Replay) Issue(ctx context.Context, cmd Command) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, Fail(cmd, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, Fail(cmd, err)
	}
	r.calls = append(r.calls, cmd)

	key := replayKey{dialect: cmd.Dialect, opcode: cmd.Opcode, feature: cmd.Feature}
	queue := r.entries[key]
	if len(queue) == 0 {
		return nil, Fail(cmd, ErrNoResponse)
	}
	entry := queue[0]
	if len(queue) > 1 {
		r.entries[key] = queue[1:]
	}
	if entry.err != nil {
		return nil, Fail(cmd, entry.err)
	}
	if cmd.Length == 0 {
		return nil, nil
	}

	return Scoped(cmd.Length, func(buf []byte) error {
		copy(buf, entry.data)
		return nil
	})
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
