package processing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/errors"
	"github.com/finbridge/finbridge/plugin"
)

type stubProcessor struct {
	plugin.Base
	formats []string
	fields  map[string]interface{}
	fail    error
	calls   int
}

func (s *stubProcessor) SupportedFormats() []string { return s.formats }

func (s *stubProcessor) ProcessDocument(ctx context.Context, path string, meta map[string]interface{}) (*plugin.ProcessResult, error) {
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	return &plugin.ProcessResult{Success: true, Plugin: s.Info().Name, Fields: s.fields}, nil
}

func (s *stubProcessor) Initialize(ctx context.Context, host *plugin.HostContext) error { return nil }

type stubSource struct {
	procs []plugin.ProcessingPlugin
}

func (s *stubSource) ProcessingPlugins() []plugin.ProcessingPlugin { return s.procs }

func newProcessor(t *testing.T, procs ...plugin.ProcessingPlugin) *Processor {
	t.Helper()
	return New(config.ProcessingConfig{
		UploadFolder:      t.TempDir(),
		MaxFileSize:       1024,
		AllowedExtensions: "pdf,txt",
	}, &stubSource{procs: procs}, nil)
}

func TestValidateFilename(t *testing.T) {
	p := newProcessor(t)
	assert.NoError(t, p.ValidateFilename("scan.pdf"))
	assert.NoError(t, p.ValidateFilename("SCAN.PDF"))

	err := p.ValidateFilename("malware.exe")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	assert.Error(t, p.ValidateFilename("noextension"))
}

func TestStoreWritesUpload(t *testing.T) {
	p := newProcessor(t)
	_, stored, err := p.Store(context.Background(), "receipt.txt", 12, strings.NewReader("Total: $9.99"))
	require.NoError(t, err)

	raw, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "Total: $9.99", string(raw))
	assert.Contains(t, filepath.Base(stored), "receipt.txt")
}

func TestStoreRejectsOversize(t *testing.T) {
	p := newProcessor(t)
	_, _, err := p.Store(context.Background(), "big.pdf", 4096, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestStoreRejectsOversizeStream(t *testing.T) {
	// declared size lies; the written byte count is what matters
	p := newProcessor(t)
	_, _, err := p.Store(context.Background(), "big.txt", 10, strings.NewReader(strings.Repeat("x", 2048)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestProcessAggregatesFields(t *testing.T) {
	a := &stubProcessor{
		Base:    plugin.NewBase("extractor-a", "1.0.0"),
		formats: []string{"txt"},
		fields:  map[string]interface{}{"amounts": []string{"42"}},
	}
	b := &stubProcessor{
		Base:    plugin.NewBase("extractor-b", "1.0.0"),
		fields:  map[string]interface{}{"dates": []string{"2024-01-15"}},
	}
	p := newProcessor(t, a, b)

	result := p.Process(context.Background(), 0, "/tmp/doc.txt", nil)
	assert.True(t, result.Success)
	assert.Len(t, result.Plugins, 2)
	assert.Contains(t, result.Fields, "amounts")
	assert.Contains(t, result.Fields, "dates")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestProcessSkipsNonMatchingFormats(t *testing.T) {
	a := &stubProcessor{Base: plugin.NewBase("pdf-only", "1.0.0"), formats: []string{"pdf"}}
	p := newProcessor(t, a)

	result := p.Process(context.Background(), 0, "/tmp/doc.txt", nil)
	assert.False(t, result.Success)
	assert.Equal(t, 0, a.calls)
	assert.Contains(t, result.Error, "no plugin handles")
}

func TestProcessToleratesPluginFailure(t *testing.T) {
	bad := &stubProcessor{
		Base: plugin.NewBase("broken", "1.0.0"),
		fail: errors.Mark(errors.New("ocr backend down"), errors.ErrOCR),
	}
	good := &stubProcessor{
		Base:   plugin.NewBase("working", "1.0.0"),
		fields: map[string]interface{}{"amounts": []string{"7"}},
	}
	p := newProcessor(t, bad, good)

	result := p.Process(context.Background(), 0, "/tmp/doc.txt", nil)
	assert.True(t, result.Success)
	require.Len(t, result.Plugins, 2)
	assert.NotEmpty(t, result.Plugins[0].Error)
	assert.True(t, result.Plugins[1].Success)
}

func TestProcessAllPluginsFailed(t *testing.T) {
	bad := &stubProcessor{
		Base: plugin.NewBase("broken", "1.0.0"),
		fail: errors.New("boom"),
	}
	p := newProcessor(t, bad)

	result := p.Process(context.Background(), 0, "/tmp/doc.txt", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "all plugins failed", result.Error)
}
