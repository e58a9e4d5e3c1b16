package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/john/lastemote/internal/overlay"
)

// Entry is one journal line
type Entry struct {
	Session   string           `json:"session"`
	Timestamp string           `json:"timestamp"` // RFC3339Nano (UTC)
	Platform  string           `json:"platform"`
	Channel   string           `json:"channel"`
	Snapshot  overlay.Snapshot `json:"snapshot"`
}

// journalFile is the currently open JSONL file
type journalFile struct {
	file     *os.File
	writer   *bufio.Writer
	opened   time.Time
	written  int64
	pending  []Entry
	filename string
}

// Recorder journals overlay snapshots to rotating JSONL files. Render
// never blocks the engine: snapshots are queued and written by Start.
type Recorder struct {
	outputDir   string
	platform    string
	channel     string
	session     string
	bufferSize  int
	rotateAfter time.Duration
	rotateBytes int64
	log         *zap.SugaredLogger

	queue   chan Entry
	current *journalFile
	now     func() time.Time
}

// New creates a new recorder
func New(outputDir, platform, channel string, bufferSize, rotateMinutes, rotateMegabytes int, logger *zap.SugaredLogger) *Recorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Recorder{
		outputDir:   outputDir,
		platform:    platform,
		channel:     channel,
		session:     uuid.NewString(),
		bufferSize:  bufferSize,
		rotateAfter: time.Duration(rotateMinutes) * time.Minute,
		rotateBytes: int64(rotateMegabytes) * 1024 * 1024,
		log:         logger,
		queue:       make(chan Entry, bufferSize*4),
		now:         time.Now,
	}
}

// Session returns the id stamped on every entry of this run
func (r *Recorder) Session() string {
	return r.session
}

// Render queues a snapshot for the journal, dropping it if the queue is full
func (r *Recorder) Render(s overlay.Snapshot) {
	entry := Entry{
		Session:   r.session,
		Timestamp: r.now().UTC().Format(time.RFC3339Nano),
		Platform:  r.platform,
		Channel:   r.channel,
		Snapshot:  s,
	}
	select {
	case r.queue <- entry:
	default:
		r.log.Warnf("Journal queue full, dropping snapshot (generation %d)", s.Generation)
	}
}

// Start writes queued snapshots until ctx is cancelled. Closed files are
// sent to fileChan for archiving.
func (r *Recorder) Start(ctx context.Context, fileChan chan<- string) error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case entry := <-r.queue:
			if err := r.record(entry); err != nil {
				r.log.Errorf("Error recording snapshot: %v", err)
			}

		case <-ticker.C:
			r.checkRotation(fileChan)

		case <-ctx.Done():
			r.log.Infof("Recorder shutting down, flushing journal...")
			r.drain()
			r.closeCurrent(fileChan, "final")
			return ctx.Err()
		}
	}
}

// drain records whatever is still queued
func (r *Recorder) drain() {
	for {
		select {
		case entry := <-r.queue:
			if err := r.record(entry); err != nil {
				r.log.Errorf("Error recording snapshot: %v", err)
			}
		default:
			return
		}
	}
}

func (r *Recorder) record(entry Entry) error {
	if r.current == nil {
		jf, err := r.open()
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		r.current = jf
	}

	r.current.pending = append(r.current.pending, entry)
	if len(r.current.pending) >= r.bufferSize {
		if err := r.flush(r.current); err != nil {
			return fmt.Errorf("flush journal: %w", err)
		}
	}
	return nil
}

// open creates a journal named platform_channel_YYYYMMDD_HHMM.jsonl. A
// short session suffix keeps restarts within the same minute apart.
func (r *Recorder) open() (*journalFile, error) {
	opened := r.now()
	filename := fmt.Sprintf("%s_%s_%s_%s.jsonl", r.platform, r.channel, r.session[:8], opened.UTC().Format("20060102_1504"))
	path := filepath.Join(r.outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	r.log.Infof("Created new journal file: %s", filename)

	return &journalFile{
		file:     file,
		writer:   bufio.NewWriter(file),
		opened:   opened,
		pending:  make([]Entry, 0, r.bufferSize),
		filename: filename,
	}, nil
}

func (r *Recorder) flush(jf *journalFile) error {
	for _, entry := range jf.pending {
		data, err := json.Marshal(entry)
		if err != nil {
			r.log.Errorf("Error marshaling snapshot: %v", err)
			continue
		}
		data = append(data, '\n')
		n, err := jf.writer.Write(data)
		jf.written += int64(n)
		if err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}
	jf.pending = jf.pending[:0]
	return jf.writer.Flush()
}

func (r *Recorder) checkRotation(fileChan chan<- string) {
	if r.current == nil {
		return
	}
	switch {
	case r.now().Sub(r.current.opened) >= r.rotateAfter:
		r.closeCurrent(fileChan, "time limit")
	case r.current.written >= r.rotateBytes:
		r.closeCurrent(fileChan, "size limit")
	}
}

// closeCurrent flushes and closes the open journal and queues it for upload.
// The next snapshot opens a fresh file.
func (r *Recorder) closeCurrent(fileChan chan<- string, reason string) {
	jf := r.current
	if jf == nil {
		return
	}
	r.current = nil
	r.log.Infof("Closing journal %s (%s)", jf.filename, reason)

	if err := r.flush(jf); err != nil {
		r.log.Errorf("Error flushing journal %s: %v", jf.filename, err)
	}
	if err := jf.file.Close(); err != nil {
		r.log.Errorf("Error closing journal %s: %v", jf.filename, err)
	}

	if fileChan == nil {
		return
	}
	path := filepath.Join(r.outputDir, jf.filename)
	select {
	case fileChan <- path:
		r.log.Infof("Queued journal for upload: %s", jf.filename)
	default:
		r.log.Warnf("Upload queue full, journal will be uploaded on next start: %s", jf.filename)
	}
}
