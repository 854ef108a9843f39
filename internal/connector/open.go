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

package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Resource is an opened input along with the name used in record locations.
type Resource struct {
	io.ReadCloser
	Name string
}

// Open opens location for reading. Plain paths and file:// URLs are read
// from disk, http(s):// URLs are fetched, and "-" is standard input.
func Open(ctx context.Context, location string) (*Resource, error) {
	if location == "-" {
		return &Resource{ReadCloser: io.NopCloser(os.Stdin), Name: "stdin:/"}, nil
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return openFile(location)
	}
	switch u.Scheme {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetching %s: unexpected status %s", location, resp.Status)
		}
		return &Resource{ReadCloser: resp.Body, Name: location}, nil
	}
	return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
}

func openFile(path string) (*Resource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	return &Resource{ReadCloser: f, Name: (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()}, nil
}

// Create opens location for writing, truncating an existing file. "-" is
// standard output.
func Create(location string) (io.WriteCloser, error) {
	if location == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, err
		}
		path = u.Path
	} else if strings.Contains(location, "://") {
		return nil, fmt.Errorf("cannot write to %s", location)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
