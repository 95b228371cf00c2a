package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sif/sched"
	"github.com/stretchr/testify/require"
)

func TestJSONLSplitParser(t *testing.T) {
	data := `{"id": "a", "bucket": 1, "payload": {"file": "a.orc", "offset": 0}}
# skipped
{"id": "b", "bucket": 0}

{"id": "c", "payload": [1, 2]}`
	parser := CreateParser(&ParserConf{Comment: '#'})
	splits, err := parser.ParseSplits(strings.NewReader(data))
	require.Nil(t, err)
	require.Len(t, splits, 3)
	require.Equal(t, "a", splits[0].ID)
	require.Equal(t, 1, splits[0].Bucket)
	require.JSONEq(t, `{"file": "a.orc", "offset": 0}`, string(splits[0].Payload))
	require.Equal(t, 0, splits[1].Bucket)
	require.Nil(t, splits[1].Payload)
	require.Equal(t, sched.NoBucket, splits[2].Bucket)
	require.Equal(t, "[1, 2]", string(splits[2].Payload))
}

func TestJSONLSplitParserCustomFields(t *testing.T) {
	data := "header\n{\"meta\": {\"name\": \"x\", \"b\": 2}}"
	parser := CreateParser(&ParserConf{HeaderLines: 1, IDField: "meta.name", BucketField: "meta.b"})
	splits, err := parser.ParseSplits(strings.NewReader(data))
	require.Nil(t, err)
	require.Len(t, splits, 1)
	require.Equal(t, "x", splits[0].ID)
	require.Equal(t, 2, splits[0].Bucket)
}

func TestJSONLSplitParserErrors(t *testing.T) {
	parser := CreateParser(&ParserConf{})
	_, err := parser.ParseSplits(strings.NewReader(`{"id": "a"}` + "\n" + `{"bucket": 1}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")

	_, err = parser.ParseSplits(strings.NewReader(`{"id": "a", "bucket": "one"}`))
	require.Error(t, err)

	_, err = parser.ParseSplits(strings.NewReader(`{"id": "a"}` + "\n" + `{"id": "a"}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	_, err = parser.ParseSplits(strings.NewReader(`not json`))
	require.Error(t, err)
}

func TestCreateSplitSourceFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splits.jsonl")
	data := `{"id": "a", "bucket": 0}
{"id": "b", "bucket": 1}
{"id": "c", "bucket": 1}`
	require.Nil(t, os.WriteFile(path, []byte(data), 0644))

	source, err := CreateSplitSourceFromFile(path, 2, &ParserConf{})
	require.Nil(t, err)
	require.Equal(t, 3, source.NumSplits())

	batch, err := source.NextBatch(sched.BucketPartitionHandle{Bucket: 1}, sched.DriverGroup(1), 10).Get()
	require.Nil(t, err)
	require.True(t, batch.LastBatch)
	require.Len(t, batch.Splits, 2)
	require.Equal(t, sched.DriverGroup(1), batch.Splits[0].Lifespan)

	_, err = CreateSplitSourceFromFile(filepath.Join(t.TempDir(), "missing.jsonl"), 2, &ParserConf{})
	require.Error(t, err)
}

func TestDefaultParserConf(t *testing.T) {
	splits, err := CreateParser(nil).ParseSplits(strings.NewReader(`{"id": "a", "bucket": 3}`))
	require.Nil(t, err)
	require.Equal(t, "a", splits[0].ID)
	require.Equal(t, 3, splits[0].Bucket)

	source, err := CreateSplitSource(strings.NewReader(`{"id": "a"}`+"\n"+`{"id": "b"}`), 0, nil)
	require.Nil(t, err)
	require.Equal(t, 2, source.NumSplits())

	// defaults are not written back into the caller's conf
	conf := &ParserConf{}
	CreateParser(conf)
	require.Equal(t, "", conf.IDField)
}
