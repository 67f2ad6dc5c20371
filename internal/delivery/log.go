package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scrypster/lifecache/pkg/types"
)

// LogChannel appends one JSON line per delivery to a file. It is the default
// channel and the record of what the scheduler has fired.
type LogChannel struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	file *os.File
	core zapcore.Core
}

// NewLogChannel returns a log channel writing to path. The file is opened on
// first delivery so an unwritable location surfaces as a delivery failure.
func NewLogChannel(path string) *LogChannel {
	return &LogChannel{path: path, now: time.Now}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Deliver implements Channel.
func (c *LogChannel) Deliver(ctx context.Context, rec *types.Record, report *types.AnalysisReport) error {
	if err := ctx.Err(); err != nil {
		return wrapError(c.Name(), rec, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.open(); err != nil {
		return wrapError(c.Name(), rec, err)
	}

	p := NewPayload(rec, report)
	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    c.now(),
		Message: deliveryLine(p),
	}
	fields := []zapcore.Field{
		zap.String("record_id", p.RecordID),
		zap.String("owner", p.Owner),
		zap.String("title", p.Title),
		zap.String("recipient", p.Recipient),
		zap.String("message", p.Message),
		zap.Time("delivery_at", p.DeliveryAt),
		zap.String("dominant_emotion", p.DominantEmotion),
		zap.Strings("summary", p.Summary),
	}

	// Writing through the core directly returns write errors instead of
	// routing them to zap's error output.
	if err := c.core.Write(entry, fields); err != nil {
		return wrapError(c.Name(), rec, fmt.Errorf("write delivery log: %w", err))
	}
	if err := c.core.Sync(); err != nil {
		return wrapError(c.Name(), rec, fmt.Errorf("sync delivery log: %w", err))
	}
	return nil
}

// Close releases the log file.
func (c *LogChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.core = nil
	return err
}

func (c *LogChannel) open() error {
	if c.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create delivery log directory: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open delivery log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	c.file = f
	c.core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	return nil
}

// deliveryLine reads "Deliver capsule <id> (<title>) to <recipient>"; the
// title part is left out for untitled memories.
func deliveryLine(p Payload) string {
	if p.Title == "" {
		return fmt.Sprintf("Deliver capsule %s to %s", p.RecordID, recipientOrOwner(p))
	}
	return fmt.Sprintf("Deliver capsule %s (%s) to %s", p.RecordID, p.Title, recipientOrOwner(p))
}

func recipientOrOwner(p Payload) string {
	if p.Recipient != "" {
		return p.Recipient
	}
	return p.Owner
}
