package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/runtrace/runtrace/internal/geo"
)

// TailConfig configures a JSONL tail feed.
type TailConfig struct {
	Path         string
	PollInterval time.Duration
	FromStart    bool // deliver lines already in the file on subscribe
}

// Tail is a Feed that polls a JSONL file of point records, one per line,
// and delivers lines appended since the last poll. A line of the form
// {"error":"reason"} is delivered as an error notification.
type Tail struct {
	cfg TailConfig
	hub hub
}

// NewTail returns a tail feed. A zero poll interval means 500ms.
func NewTail(cfg TailConfig) *Tail {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Tail{cfg: cfg}
}

func (t *Tail) Name() string { return "tail" }

func (t *Tail) Subscribe(onFix FixFunc, onError ErrorFunc) (Handle, error) {
	info, err := os.Stat(t.cfg.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrUnavailable, t.cfg.Path)
	}

	var offset int64
	if !t.cfg.FromStart {
		offset = info.Size()
	}

	h, sub, ctx := t.hub.add(onFix, onError)
	go t.run(ctx, sub, offset)
	return h, nil
}

func (t *Tail) Unsubscribe(h Handle) {
	t.hub.remove(h)
}

func (t *Tail) run(ctx context.Context, sub *subscription, offset int64) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.poll(sub, &offset)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.poll(sub, &offset)
		}
	}
}

func (t *Tail) poll(sub *subscription, offset *int64) {
	// A file shorter than our offset was truncated or replaced.
	if info, err := os.Stat(t.cfg.Path); err == nil && info.Size() < *offset {
		*offset = 0
	}

	records, next, err := ReadFixRecords(t.cfg.Path, *offset)
	*offset = next
	for _, rec := range records {
		if rec.Reason != "" {
			sub.fail(rec.Reason)
			continue
		}
		sub.fix(rec.Fix)
	}
	if err != nil {
		sub.fail(err.Error())
	}
}

// FixRecord is one parsed line: a fix, or an error reason when Reason is
// non-empty.
type FixRecord struct {
	Fix    geo.Fix
	Reason string
}

type errorLine struct {
	Error string `json:"error"`
}

// ReadFixRecords reads complete lines from path starting at offset. It
// returns the parsed records and the offset just past the last complete
// line. A trailing line without a newline is left for the next call.
// Malformed lines are reported as records with a Reason and skipped.
func ReadFixRecords(path string, offset int64) ([]FixRecord, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, offset, err
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, offset, err
		}
	}

	var records []FixRecord
	reader := bufio.NewReader(f)
	parsedOffset := offset

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return records, parsedOffset, err
		}
		if len(line) == 0 {
			break
		}

		// Incomplete line: the writer has not finished it yet.
		if line[len(line)-1] != '\n' {
			break
		}

		lineStart := parsedOffset
		parsedOffset += int64(len(line))

		data := line[:len(line)-1]
		if len(data) > 0 && data[len(data)-1] == '\r' {
			data = data[:len(data)-1]
		}
		if len(data) == 0 {
			continue
		}

		records = append(records, parseFixLine(data, lineStart))

		if err == io.EOF {
			break
		}
	}

	return records, parsedOffset, nil
}

func parseFixLine(data []byte, at int64) FixRecord {
	var probe errorLine
	if err := json.Unmarshal(data, &probe); err != nil {
		return FixRecord{Reason: fmt.Sprintf("malformed fix at offset %d: %v", at, err)}
	}
	if probe.Error != "" {
		return FixRecord{Reason: probe.Error}
	}

	var fix geo.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return FixRecord{Reason: fmt.Sprintf("malformed fix at offset %d: %v", at, err)}
	}
	if err := fix.Validate(); err != nil {
		return FixRecord{Reason: fmt.Sprintf("malformed fix at offset %d: %v", at, err)}
	}
	return FixRecord{Fix: fix}
}
