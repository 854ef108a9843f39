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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/bulkrunner/internal/pipeline"
	"github.com/cardinalhq/bulkrunner/internal/record"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVReader(t *testing.T) {
	path := writeFile(t, "in.csv", "pk,name,amount\n1,alice,\"1,000\"\n2,bob\n3,\"multi\nline\",7\n")
	cfg := DefaultConfig()
	cfg.URL = path

	r, err := NewReader(context.Background(), cfg)
	require.NoError(t, err)
	recs, err := pipeline.Collect(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	first := recs[0]
	require.NoError(t, first.Err())
	v, ok := first.Get("amount")
	require.True(t, ok)
	assert.Equal(t, "1,000", v)
	assert.Equal(t, []string{"pk", "name", "amount"}, first.Names())
	assert.Equal(t, `1,alice,"1,000"`, first.Source())
	assert.True(t, strings.HasPrefix(first.Location(), "file:///"))
	assert.True(t, strings.HasSuffix(first.Location(), "in.csv?line=2"))

	require.Error(t, recs[1].Err(), "field count mismatch")
	assert.Equal(t, "2,bob", recs[1].Source())

	require.NoError(t, recs[2].Err())
	assert.True(t, strings.HasSuffix(recs[2].Location(), "?line=4"))
}

func TestCSVReaderWithoutHeader(t *testing.T) {
	path := writeFile(t, "in.tsv", "a\tb\n# skipped\nc\td\ne\tf\n")
	cfg := Config{URL: path, Delimiter: `\t`, Comment: "#", SkipRecords: 1, MaxRecords: 1}

	r, err := NewReader(context.Background(), cfg)
	require.NoError(t, err)
	recs, err := pipeline.Collect(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	v, _ := recs[0].Get("1")
	assert.Equal(t, "d", v)
	assert.Equal(t, "c\td", recs[0].Source())
}

func TestCSVReaderKeepsInputText(t *testing.T) {
	input := "id,name\r\n" +
		"\"1\", \"bob\"\r\n" +
		"2,a\"b\n" +
		"# note\n" +
		"\n" +
		"3,\"multi\n\nline\"\n" +
		"4,last"
	path := writeFile(t, "in.csv", input)
	cfg := DefaultConfig()
	cfg.URL = path
	cfg.Comment = "#"

	r, err := NewReader(context.Background(), cfg)
	require.NoError(t, err)
	recs, err := pipeline.Collect(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, `"1", "bob"`, recs[0].Source())
	name, _ := recs[0].Get("name")
	assert.Equal(t, ` "bob"`, name)
	assert.Equal(t, `2,a"b`, recs[1].Source())
	assert.Equal(t, "3,\"multi\n\nline\"", recs[2].Source())
	assert.Equal(t, "4,last", recs[3].Source())
}

func TestCSVReaderRejectsBadConfig(t *testing.T) {
	path := writeFile(t, "in.csv", "a\n")
	_, err := NewReader(context.Background(), Config{URL: path, Delimiter: ";;"})
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	_, err = NewReader(context.Background(), Config{URL: empty, Header: true})
	assert.ErrorContains(t, err, "missing header")
}

func TestJSONLinesReader(t *testing.T) {
	path := writeFile(t, "in.jsonl", `{"pk": 1, "name": "alice", "amount": 12.50}`+"\n\n"+`[1,2]`+"\n"+`{"pk": 3}`+"\n")
	cfg := Config{Name: "json", URL: path}

	r, err := NewReader(context.Background(), cfg)
	require.NoError(t, err)
	recs, err := pipeline.Collect(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, []string{"amount", "name", "pk"}, recs[0].Names())
	amount, _ := recs[0].Get("amount")
	assert.Equal(t, json.Number("12.50"), amount)

	require.Error(t, recs[1].Err())
	assert.Equal(t, "[1,2]", recs[1].Source())
	assert.True(t, strings.HasSuffix(recs[1].Location(), "?line=3"))
	assert.True(t, strings.HasSuffix(recs[2].Location(), "?line=4"))
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("k\nv\n"))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.URL + "/data.csv"
	r, err := NewReader(context.Background(), cfg)
	require.NoError(t, err)
	recs, err := pipeline.Collect(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, srv.URL+"/data.csv?line=2", recs[0].Location())

	_, err = Open(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
	_, err = Open(context.Background(), "ftp://example.com/x")
	assert.Error(t, err)
}

func TestWriters(t *testing.T) {
	dir := t.TempDir()
	recs := []*record.Record{
		record.New(nil, "row:1", []record.Field{{Name: "pk", Value: "1"}, {Name: "name", Value: "a,b"}}),
		record.New(nil, "row:2", []record.Field{{Name: "pk", Value: "2"}, {Name: "name", Value: nil}}),
	}

	csvPath := filepath.Join(dir, "out", "out.csv")
	w, err := NewWriter(Config{URL: csvPath, Header: true})
	require.NoError(t, err)
	n, err := WriteAll(context.Background(), w, pipeline.FromSlice(recs...))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, w.Close())
	b, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, "pk,name\n1,\"a,b\"\n2,\n", string(b))

	jsonPath := "file://" + filepath.ToSlash(filepath.Join(dir, "out.jsonl"))
	w, err = NewWriter(Config{Name: "json", URL: jsonPath})
	require.NoError(t, err)
	_, err = WriteAll(context.Background(), w, pipeline.FromSlice(recs...))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	b, err = os.ReadFile(filepath.Join(dir, "out.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, `{"pk":"1","name":"a,b"}`+"\n"+`{"pk":"2","name":null}`+"\n", string(b))

	_, err = NewWriter(Config{URL: "http://example.com/out.csv"})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("NDJSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}
