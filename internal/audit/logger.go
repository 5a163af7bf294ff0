// Package audit records security-relevant events to the audit_log table
// and a JSON-lines file.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/amirk1998/univ-erp/internal/logger"
)

type Logger struct {
	db         *sql.DB
	logFile    *os.File
	asyncMode  bool
	eventQueue chan *Event
	wg         sync.WaitGroup
	fileMu     sync.Mutex
	mu         sync.RWMutex // guards closed against in-flight Log calls
	closed     bool
	log        logger.Logger
	writeCtx   context.Context
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewLogger creates a new audit logger
func NewLogger(ctx context.Context, db *sql.DB, logFilePath string, asyncMode bool) (*Logger, error) {
	// Initialize audit log table
	schema := `
    CREATE TABLE IF NOT EXISTS audit_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        level TEXT NOT NULL,
        user_id INTEGER,
        action TEXT NOT NULL,
        resource TEXT NOT NULL,
        ip_address TEXT,
        success BOOLEAN NOT NULL,
        error_msg TEXT,
        metadata TEXT,
        FOREIGN KEY (user_id) REFERENCES accounts(id) ON DELETE SET NULL
    );

    CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
    CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_log(user_id);
    CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
    CREATE INDEX IF NOT EXISTS idx_audit_level ON audit_log(level);
    `

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create audit log table: %w", err)
	}

	// Ensure log directory exists
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	writeCtx := context.WithoutCancel(ctx)
	workerCtx, cancel := context.WithCancel(writeCtx)

	al := &Logger{
		db:        db,
		logFile:   logFile,
		asyncMode: asyncMode,
		log:       logger.FromContext(ctx).With("component", "audit"),
		writeCtx:  writeCtx,
		ctx:       workerCtx,
		cancel:    cancel,
	}

	if asyncMode {
		al.eventQueue = make(chan *Event, 1000)
		al.startAsyncLogger()
	}

	return al, nil
}

// Log records an audit event. A nil Logger discards the event.
func (al *Logger) Log(event *Event) error {
	if al == nil {
		return nil
	}

	al.mu.RLock()
	defer al.mu.RUnlock()
	if al.closed {
		return fmt.Errorf("audit logger is closed")
	}

	event.Timestamp = time.Now().UTC()

	if al.asyncMode {
		select {
		case al.eventQueue <- event:
			return nil
		default:
			al.log.Warn("audit queue full, event dropped", "action", event.Action)
			return fmt.Errorf("audit log queue is full")
		}
	}

	return al.writeEvent(event)
}

// writeEvent writes event to database and file
func (al *Logger) writeEvent(event *Event) error {
	query := `
        INSERT INTO audit_log (
            timestamp, level, user_id, action, resource,
            ip_address, success, error_msg, metadata
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	result, err := al.db.ExecContext(al.writeCtx, query,
		event.Timestamp,
		event.Level,
		event.UserID,
		event.Action,
		event.Resource,
		event.IPAddress,
		event.Success,
		event.ErrorMsg,
		event.Metadata,
	)

	if err != nil {
		// The file copy is still written
		al.log.Error("failed to write audit event to database", "action", event.Action, "error", err)
	} else {
		event.ID, _ = result.LastInsertId()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	al.fileMu.Lock()
	defer al.fileMu.Unlock()
	if _, err := al.logFile.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	return nil
}

// startAsyncLogger starts async logging worker
func (al *Logger) startAsyncLogger() {
	al.wg.Add(1)
	go func() {
		defer al.wg.Done()
		for {
			select {
			case event := <-al.eventQueue:
				if err := al.writeEvent(event); err != nil {
					al.log.Error("failed to write audit event", "error", err)
				}
			case <-al.ctx.Done():
				// Drain remaining events
				for {
					select {
					case event := <-al.eventQueue:
						_ = al.writeEvent(event)
					default:
						return
					}
				}
			}
		}
	}()
}

// QueryLogs queries audit logs with filters, newest first
func (al *Logger) QueryLogs(ctx context.Context, filters QueryFilters) ([]*Event, error) {
	builder := sq.Select(
		"id", "timestamp", "level", "user_id", "action", "resource",
		"COALESCE(ip_address, '')", "success", "COALESCE(error_msg, '')", "COALESCE(metadata, '')",
	).From("audit_log")

	if filters.StartTime != nil {
		builder = builder.Where(sq.GtOrEq{"timestamp": filters.StartTime.UTC()})
	}
	if filters.EndTime != nil {
		builder = builder.Where(sq.LtOrEq{"timestamp": filters.EndTime.UTC()})
	}
	if filters.UserID != nil {
		builder = builder.Where(sq.Eq{"user_id": *filters.UserID})
	}
	if filters.Action != "" {
		builder = builder.Where(sq.Eq{"action": filters.Action})
	}
	if filters.Success != nil {
		builder = builder.Where(sq.Eq{"success": *filters.Success})
	}
	if filters.Level != "" {
		builder = builder.Where(sq.Eq{"level": filters.Level})
	}

	if filters.Limit <= 0 {
		filters.Limit = 100
	}
	builder = builder.OrderBy("timestamp DESC", "id DESC").Limit(uint64(filters.Limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	rows, err := al.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.Level,
			&event.UserID,
			&event.Action,
			&event.Resource,
			&event.IPAddress,
			&event.Success,
			&event.ErrorMsg,
			&event.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return events, nil
}

// Close flushes pending events and closes the file
func (al *Logger) Close() error {
	if al == nil {
		return nil
	}

	al.mu.Lock()
	if al.closed {
		al.mu.Unlock()
		return nil
	}
	al.closed = true
	al.mu.Unlock()

	al.cancel()
	al.wg.Wait()

	return al.logFile.Close()
}
