// Package processing runs uploaded documents through the registered
// processing plugins and persists the aggregated results.
package processing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/db"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/logger"
	"github.com/finbridge/finbridge/plugin"
)

// PluginSource yields the live processing plugins. The manager implements
// it; the indirection keeps the processor testable without a full host.
type PluginSource interface {
	ProcessingPlugins() []plugin.ProcessingPlugin
}

// Result is the outcome of processing one document.
type Result struct {
	DocumentID int64                  `json:"document_id"`
	Filename   string                 `json:"filename"`
	Success    bool                   `json:"success"`
	Plugins    []plugin.ProcessResult `json:"plugins,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Duration   time.Duration          `json:"duration_ns"`
}

// Processor validates, stores, and processes uploaded documents.
type Processor struct {
	uploadDir string
	maxSize   int64
	allowed   map[string]bool
	plugins   PluginSource
	store     *db.Store
	log       *zap.SugaredLogger
}

// New builds a processor from the host configuration. A nil store skips
// persistence; results are still returned to the caller.
func New(cfg config.ProcessingConfig, plugins PluginSource, store *db.Store) *Processor {
	allowed := make(map[string]bool)
	for _, ext := range strings.Split(cfg.AllowedExtensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if ext != "" {
			allowed[ext] = true
		}
	}
	return &Processor{
		uploadDir: cfg.UploadFolder,
		maxSize:   cfg.MaxFileSize,
		allowed:   allowed,
		plugins:   plugins,
		store:     store,
		log:       logger.Named("processing"),
	}
}

// ValidateFilename checks the extension against the allowed set.
func (p *Processor) ValidateFilename(filename string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return errors.Mark(errors.Newf("%s: missing file extension", filename), errors.ErrValidation)
	}
	if len(p.allowed) > 0 && !p.allowed[ext] {
		return errors.Mark(errors.Newf("%s: extension %q not allowed", filename, ext), errors.ErrValidation)
	}
	return nil
}

// Store writes an upload into the configured folder under a collision-free
// name, records it as pending, and returns the document id and stored path.
func (p *Processor) Store(ctx context.Context, filename string, size int64, content io.Reader) (int64, string, error) {
	if err := p.ValidateFilename(filename); err != nil {
		return 0, "", err
	}
	if p.maxSize > 0 && size > p.maxSize {
		return 0, "", errors.Mark(
			errors.Newf("%s: %d bytes exceeds limit %d", filename, size, p.maxSize),
			errors.ErrValidation)
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return 0, "", errors.Wrap(err, "create upload folder")
	}

	base := filepath.Base(filename)
	stored := filepath.Join(p.uploadDir, uuid.NewString()+"_"+base)
	f, err := os.Create(stored)
	if err != nil {
		return 0, "", errors.Wrapf(err, "store %s", base)
	}
	written, err := io.Copy(f, io.LimitReader(content, p.limit()))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(stored)
		return 0, "", errors.Wrapf(err, "write %s", base)
	}
	if p.maxSize > 0 && written > p.maxSize {
		os.Remove(stored)
		return 0, "", errors.Mark(errors.Newf("%s: upload exceeds limit %d", base, p.maxSize), errors.ErrValidation)
	}

	var id int64
	if p.store != nil {
		id, err = p.store.InsertDocument(ctx, base, stored, written)
		if err != nil {
			os.Remove(stored)
			return 0, "", err
		}
	}
	return id, stored, nil
}

func (p *Processor) limit() int64 {
	if p.maxSize <= 0 {
		return 1 << 30
	}
	return p.maxSize + 1
}

// Process runs every matching processing plugin over the stored document
// and aggregates their fields. Individual plugin failures are recorded in
// the result; the run fails only when no plugin succeeds.
func (p *Processor) Process(ctx context.Context, documentID int64, path string, meta map[string]interface{}) *Result {
	start := time.Now()
	result := &Result{
		DocumentID: documentID,
		Filename:   filepath.Base(path),
		Fields:     make(map[string]interface{}),
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	matched := 0
	for _, proc := range p.plugins.ProcessingPlugins() {
		if !handlesFormat(proc, ext) {
			continue
		}
		matched++
		name := proc.Info().Name

		pr, err := proc.ProcessDocument(ctx, path, meta)
		if err != nil {
			p.log.Warnw("plugin processing failed", "plugin", name, "document", result.Filename, "error", err)
			result.Plugins = append(result.Plugins, plugin.ProcessResult{
				Plugin: name,
				Error:  err.Error(),
			})
			continue
		}
		result.Plugins = append(result.Plugins, *pr)
		if pr.Success {
			result.Success = true
			for k, v := range pr.Fields {
				result.Fields[k] = v
			}
		}
	}

	switch {
	case matched == 0:
		result.Error = errors.Newf("no plugin handles %q files", ext).Error()
	case !result.Success:
		result.Error = "all plugins failed"
	}
	result.Duration = time.Since(start)

	p.persist(ctx, result)
	return result
}

func (p *Processor) persist(ctx context.Context, result *Result) {
	if p.store == nil || result.DocumentID == 0 {
		return
	}
	var err error
	if result.Success {
		err = p.store.MarkProcessed(ctx, result.DocumentID, result.Fields)
	} else {
		err = p.store.MarkFailed(ctx, result.DocumentID, errors.Mark(errors.New(result.Error), errors.ErrProcessing))
	}
	if err != nil {
		p.log.Errorw("persist processing result failed", "document", result.DocumentID, "error", err)
	}
}

func handlesFormat(proc plugin.ProcessingPlugin, ext string) bool {
	formats := proc.SupportedFormats()
	if len(formats) == 0 {
		return true
	}
	for _, f := range formats {
		if strings.EqualFold(strings.TrimPrefix(f, "."), ext) {
			return true
		}
	}
	return false
}
