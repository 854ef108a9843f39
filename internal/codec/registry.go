// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package codec

import (
	"sync"
)

// Format is the external representation a codec reads and writes.
type Format int

const (
	FormatString Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "string"
}

type registryKey struct {
	format      Format
	target      DataType
	fingerprint string
}

// Registry hands out codecs keyed by (format, target, settings). Codecs are
// built on first use and shared afterwards.
type Registry struct {
	mu     sync.RWMutex
	codecs map[registryKey]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[registryKey]any)}
}

// String returns the codec between text and target.
func (r *Registry) String(target DataType, s Settings) (Codec[string], error) {
	key := registryKey{FormatString, target, s.Fingerprint()}
	if c, ok := r.lookup(key); ok {
		return c.(*converter[string]), nil
	}
	c, err := newStringCodec(target, s)
	if err != nil {
		return nil, err
	}
	return r.store(key, c).(*converter[string]), nil
}

// JSON returns the codec between decoded JSON nodes and target.
func (r *Registry) JSON(target DataType, s Settings) (Codec[any], error) {
	key := registryKey{FormatJSON, target, s.Fingerprint()}
	if c, ok := r.lookup(key); ok {
		return c.(*converter[any]), nil
	}
	text, err := r.String(target, s)
	if err != nil {
		return nil, err
	}
	c := newJSONCodec(target, s, text.(*converter[string]))
	return r.store(key, c).(*converter[any]), nil
}

// Len returns the number of codecs built so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codecs)
}

func (r *Registry) lookup(key registryKey) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[key]
	return c, ok
}

// store keeps the first codec registered for key; concurrent builders of the
// same key all get that one.
func (r *Registry) store(key registryKey, c any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.codecs[key]; ok {
		return existing
	}
	r.codecs[key] = c
	return c
}
