package command

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-service"

	"github.com/pixil98/go-realm/internal/audit"
)

// AuditConfig picks where movement rejections go besides the log.
type AuditConfig struct {
	JSONL  *JSONLConfig  `json:"jsonl,omitempty"`
	SQLite *SQLiteConfig `json:"sqlite,omitempty"`
}

type JSONLConfig struct {
	Dir    string `json:"dir"`
	Prefix string `json:"prefix,omitempty"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

func (c *AuditConfig) validate() error {
	el := errors.NewErrorList()

	if c.JSONL != nil && c.JSONL.Dir == "" {
		el.Add(fmt.Errorf("audit jsonl dir is required"))
	}
	if c.SQLite != nil && c.SQLite.Path == "" {
		el.Add(fmt.Errorf("audit sqlite path is required"))
	}

	return el.Err()
}

// buildRecorder returns the combined recorder and the workers that own the
// sinks' lifetimes.
func (c *AuditConfig) buildRecorder() (audit.Recorder, service.WorkerList, error) {
	recorders := audit.Multi{audit.LogRecorder{}}
	workers := service.WorkerList{}

	if c.JSONL != nil {
		prefix := c.JSONL.Prefix
		if prefix == "" {
			prefix = "rejections"
		}
		w := audit.NewJSONLZstdWriter(c.JSONL.Dir, prefix)
		recorders = append(recorders, w)
		workers["audit-jsonl"] = w
	}

	if c.SQLite != nil {
		idx, err := audit.OpenSQLite(c.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit index: %w", err)
		}
		recorders = append(recorders, idx)
		workers["audit-sqlite"] = idx
	}

	return recorders, workers, nil
}
