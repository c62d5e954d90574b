package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"

	"github.com/ridopark/algoreplay/pkg/backtester"
	"github.com/ridopark/algoreplay/pkg/logging"
	"github.com/ridopark/algoreplay/pkg/status"
)

// Options configures the destinations a Publisher can write to. A
// destination requested without its option set fails.
type Options struct {
	OutputDir  string
	CachePath  string
	BucketDir  string
	WebhookURL string
	Timeout    time.Duration
}

// Publisher stores run artifacts. It implements backtester.ArtifactStore.
type Publisher struct {
	opts     Options
	cache    *SQLiteCache
	notifier *WebhookNotifier
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a publisher, opening the cache database when a cache path is set
func New(opts Options) (*Publisher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	p := &Publisher{
		opts:   opts,
		now:    time.Now,
		logger: logging.GetLogger("publish"),
	}
	if opts.CachePath != "" {
		cache, err := NewSQLiteCache(opts.CachePath)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	if opts.WebhookURL != "" {
		p.notifier = NewWebhookNotifier(opts.WebhookURL, opts.Timeout)
	}
	return p, nil
}

// Store writes payload as JSON to every requested destination. All requested
// destinations are attempted; the code of the first failure is returned.
func (p *Publisher) Store(ctx context.Context, req backtester.PublishRequest, payload any) status.Code {
	if !req.Destinations.Any() {
		return status.NotRun
	}

	logger := p.logger.With().Str("label", req.Label).Logger()
	label := sanitizeLabel(req.Label)
	if label == "" {
		logger.Error().Msg("Refusing to publish without a label")
		return status.InvalidInput
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode artifact")
		return status.Failed
	}
	if req.Compress {
		if data, err = Compress(data); err != nil {
			logger.Error().Err(err).Msg("Failed to compress artifact")
			return status.Failed
		}
	}
	name := label + ".json"
	if req.Compress {
		name += ".zz"
	}

	result := status.Success
	fail := func(code status.Code, err error, dest string) {
		logger.Error().Err(err).Str("destination", dest).Msg("Failed to store artifact")
		if result == status.Success {
			result = code
		}
	}

	d := req.Destinations
	if d.File {
		if err := p.writeFile(p.opts.OutputDir, name, data); err != nil {
			fail(status.FileFailed, err, "file")
		}
	}
	if d.Cache {
		if err := p.writeCache(ctx, label, req.Compress, data); err != nil {
			fail(status.CacheFailed, err, "cache")
		}
	}
	if d.ObjectStore {
		if err := p.writeObject(name, data); err != nil {
			fail(status.ObjectStoreFailed, err, "object_store")
		}
	}
	if d.Notify {
		if err := p.notify(ctx, req.Label, payload); err != nil {
			fail(status.NotifyFailed, err, "notify")
		}
	}

	logger.Debug().Int("bytes", len(data)).Str("status", result.String()).Msg("Stored artifact")
	return result
}

// Close releases the cache database
func (p *Publisher) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

// Cache returns the SQLite cache, or nil when none is configured
func (p *Publisher) Cache() *SQLiteCache {
	return p.cache
}

func (p *Publisher) writeFile(dir, name string, data []byte) error {
	if dir == "" {
		return fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (p *Publisher) writeCache(ctx context.Context, label string, compressed bool, data []byte) error {
	if p.cache == nil {
		return fmt.Errorf("no cache configured")
	}
	return p.cache.Put(ctx, label, compressed, data)
}

// writeObject stores the artifact under a date-partitioned key:
// <BucketDir>/YYYY/MM/DD/<name>
func (p *Publisher) writeObject(name string, data []byte) error {
	if p.opts.BucketDir == "" {
		return fmt.Errorf("no bucket directory configured")
	}
	return p.writeFile(filepath.Join(p.opts.BucketDir, p.now().UTC().Format("2006/01/02")), name, data)
}

func (p *Publisher) notify(ctx context.Context, label string, payload any) error {
	if p.notifier == nil {
		return fmt.Errorf("no webhook configured")
	}
	text := fmt.Sprintf("stored artifact %s", label)
	if s, ok := payload.(interface{ Summary() string }); ok {
		text = fmt.Sprintf("*%s*\n```%s```", label, s.Summary())
	}
	return p.notifier.Send(ctx, text)
}

func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, label)
}

// Compress zlib-compresses data
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress
func Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var _ backtester.ArtifactStore = (*Publisher)(nil)
