// Package source loads raw task records from an inbox directory of JSON
// files. This is the boundary where legacy field fallbacks and free-form
// dates are normalized; everything downstream sees canonical records only.
//
// Two file shapes are accepted:
//
//	{"section": "today", "tasks": [{"text": "buy milk"}, ...]}
//	{"today": [{"text": "buy milk"}], "weekly": [...]}
//
// A bare JSON array is also accepted, with the file name (minus extension)
// as the section.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/daybook-app/daybook/internal/model"
)

// Source produces raw task records for migration.
type Source interface {
	// Load reads and normalizes every available record.
	Load(ctx context.Context) ([]model.RawTask, error)
}

// DirSource reads an inbox directory of *.json task files.
type DirSource struct {
	dir    string
	parser *when.Parser
	now    func() time.Time
	logger *log.Logger
}

// NewDirSource creates a source over the given inbox directory.
// Pass nil logger for the default.
func NewDirSource(dir string, logger *log.Logger) *DirSource {
	if logger == nil {
		logger = log.New(os.Stderr, "[source] ", log.LstdFlags)
	}
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return &DirSource{
		dir:    dir,
		parser: parser,
		now:    time.Now,
		logger: logger,
	}
}

// sectionFile is the explicit inbox file shape.
type sectionFile struct {
	Section string          `json:"section"`
	Tasks   []model.RawTask `json:"tasks"`
}

// Load reads every *.json file in the inbox directory. Unreadable or
// malformed files are logged and skipped so one bad export cannot block the
// rest of the inbox.
func (s *DirSource) Load(ctx context.Context) ([]model.RawTask, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox %s: %w", s.dir, err)
	}

	var records []model.RawTask
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		fileRecords, err := s.loadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Printf("Skipping inbox file %s: %v", name, err)
			continue
		}
		records = append(records, fileRecords...)
	}

	for i := range records {
		s.normalize(&records[i])
	}
	return records, nil
}

// loadFile parses one inbox file, trying the three accepted shapes in order.
func (s *DirSource) loadFile(path string) ([]model.RawTask, error) {
	data, err := os.ReadFile(path) // #nosec G304 - inbox dir comes from config
	if err != nil {
		return nil, err
	}

	var file sectionFile
	if err := json.Unmarshal(data, &file); err == nil && len(file.Tasks) > 0 {
		for i := range file.Tasks {
			if file.Tasks[i].Section == "" {
				file.Tasks[i].Section = file.Section
			}
		}
		return file.Tasks, nil
	}

	var bySection map[string][]model.RawTask
	if err := json.Unmarshal(data, &bySection); err == nil && len(bySection) > 0 {
		var records []model.RawTask
		for section, tasks := range bySection {
			for i := range tasks {
				if tasks[i].Section == "" {
					tasks[i].Section = section
				}
			}
			records = append(records, tasks...)
		}
		return records, nil
	}

	var list []model.RawTask
	if err := json.Unmarshal(data, &list); err == nil {
		section := strings.TrimSuffix(filepath.Base(path), ".json")
		for i := range list {
			if list[i].Section == "" {
				list[i].Section = section
			}
		}
		return list, nil
	}

	return nil, fmt.Errorf("unrecognized inbox file format")
}

// normalize resolves the legacy text fallback and the free-form date so the
// record leaves the boundary canonical.
func (s *DirSource) normalize(record *model.RawTask) {
	record.Text = record.EffectiveText()
	record.Task = ""
	record.Date = s.normalizeDate(record.Date)
}

// normalizeDate maps a human date string onto YYYY-MM-DD. Canonical dates
// pass through; anything else goes through natural-language parsing
// ("tomorrow", "next friday"). Unparseable dates are dropped with a log line
// rather than guessed at.
func (s *DirSource) normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := time.Parse(model.DateLayout, raw); err == nil {
		return raw
	}

	result, err := s.parser.Parse(raw, s.now())
	if err != nil || result == nil {
		s.logger.Printf("Dropping unparseable date %q", raw)
		return ""
	}
	return result.Time.Format(model.DateLayout)
}
