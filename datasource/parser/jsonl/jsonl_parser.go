package jsonl

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/go-sif/sched"
	"github.com/go-sif/sched/datasource/memory"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ParserConf configures a JSONL Parser, suitable for JSON lines split descriptors
type ParserConf struct {
	IDField       string // gjson path of the split ID. Defaults to "id".
	BucketField   string // gjson path of the split bucket. Defaults to "bucket". Missing buckets are left unassigned.
	PayloadField  string // gjson path of the split payload, kept as raw JSON. Defaults to "payload".
	HeaderLines   int    // The number of lines to ignore from the beginning of each file. Defaults to 0.
	Comment       rune   // Lines beginning with the comment character are ignored. Defaults to no comment character.
	MaxBufferSize int    // Maximum size in bytes of the buffer used to read lines from the file
}

// Parser produces Splits from JSONL data
type Parser struct {
	conf *ParserConf
}

// CreateParser returns a new JSONL Parser. A nil conf uses the defaults.
func CreateParser(conf *ParserConf) *Parser {
	if conf == nil {
		conf = &ParserConf{}
	} else {
		copied := *conf
		conf = &copied
	}
	if conf.IDField == "" {
		conf.IDField = "id"
	}
	if conf.BucketField == "" {
		conf.BucketField = "bucket"
	}
	if conf.PayloadField == "" {
		conf.PayloadField = "payload"
	}
	if conf.MaxBufferSize == 0 {
		conf.MaxBufferSize = bufio.MaxScanTokenSize
	}
	return &Parser{conf: conf}
}

// ParseSplits reads one split descriptor per line. Blank lines are ignored.
func (p *Parser) ParseSplits(r io.Reader) ([]sched.Split, error) {
	// start parsing by creating a scanner
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), p.conf.MaxBufferSize)
	// ignore header lines, if configured to do so
	for i := 0; i < p.conf.HeaderLines; i++ {
		scanner.Scan()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	var splits []sched.Split
	seen := make(map[string]bool)
	lineNum := p.conf.HeaderLines
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || (p.conf.Comment != 0 && strings.HasPrefix(line, string(p.conf.Comment))) {
			continue
		}
		split, err := p.parseLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		if seen[split.ID] {
			return nil, errors.Errorf("line %d: duplicate split id %q", lineNum, split.ID)
		}
		seen[split.ID] = true
		splits = append(splits, split)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading split descriptors")
	}
	return splits, nil
}

func (p *Parser) parseLine(line string) (sched.Split, error) {
	if !gjson.Valid(line) {
		return sched.Split{}, errors.New("invalid JSON")
	}
	id := gjson.Get(line, p.conf.IDField)
	if !id.Exists() || id.String() == "" {
		return sched.Split{}, errors.Errorf("missing split id at %q", p.conf.IDField)
	}
	split := sched.Split{ID: id.String(), Bucket: sched.NoBucket}
	if bucket := gjson.Get(line, p.conf.BucketField); bucket.Exists() {
		if bucket.Type != gjson.Number || bucket.Int() < 0 {
			return sched.Split{}, errors.Errorf("bucket of split %s must be a non-negative number, was %s", split.ID, bucket.Raw)
		}
		split.Bucket = int(bucket.Int())
	}
	if payload := gjson.Get(line, p.conf.PayloadField); payload.Exists() {
		split.Payload = []byte(payload.Raw)
	}
	return split, nil
}

// CreateSplitSource parses split descriptors into a memory SplitSource
func CreateSplitSource(r io.Reader, numBuckets int, conf *ParserConf) (*memory.SplitSource, error) {
	splits, err := CreateParser(conf).ParseSplits(r)
	if err != nil {
		return nil, err
	}
	return memory.CreateSplitSource(splits, numBuckets), nil
}

// CreateSplitSourceFromFile parses a JSONL file of split descriptors into a memory SplitSource
func CreateSplitSourceFromFile(path string, numBuckets int, conf *ParserConf) (*memory.SplitSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening split file %s", path)
	}
	defer f.Close()
	source, err := CreateSplitSource(f, numBuckets, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing split file %s", path)
	}
	return source, nil
}
