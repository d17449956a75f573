package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OutboxSender appends messages to a JSONL file instead of delivering them.
type OutboxSender struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

type outboxRecord struct {
	Message
	QueuedAt time.Time `json:"queued_at"`
}

func NewOutboxSender(path string) *OutboxSender {
	return &OutboxSender{path: path, now: time.Now}
}

// Send appends msg as one JSON line.
func (o *OutboxSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}

	line, err := json.Marshal(outboxRecord{Message: msg, QueuedAt: o.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	dir := filepath.Dir(o.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create outbox dir: %w", err)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	file, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush outbox: %w", err)
	}
	return nil
}
