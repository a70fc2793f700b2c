// Package recordlog journals every extracted strike record as JSON lines,
// one file per cycle under a date directory.
package recordlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/odax_crawler/internal/chain"
)

const subDir = "records"

// ErrBufferFull is returned when the writer falls behind; the record is
// dropped.
var ErrBufferFull = errors.New("record journal buffer full")

// Record is one journal line.
type Record struct {
	CycleID      string             `json:"cycle_id"`
	CapturedAt   time.Time          `json:"captured_at"`
	Expiration   string             `json:"expiration"`
	ContractType string             `json:"contract_type"`
	Index        int                `json:"index"`
	Strike       chain.StrikeRecord `json:"strike"`
}

type item struct {
	cycle string
	rec   Record
}

// Journal handles async writing of records to date-organized files.
type Journal struct {
	baseDir   string
	maxSizeMB int
	now       func() time.Time

	writeCh chan item
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	cycle       string
	logger      *lumberjack.Logger
}

// New starts a journal writing under baseDir.
func New(baseDir string, bufferSize, maxSizeMB int) *Journal {
	j := &Journal{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		now:       time.Now,
		writeCh:   make(chan item, bufferSize),
		done:      make(chan struct{}),
	}

	j.wg.Add(1)
	go j.writeLoop()

	return j
}

// Write queues a record without blocking.
func (j *Journal) Write(rec Record) error {
	select {
	case <-j.done:
		return fmt.Errorf("journal is closed")
	default:
	}
	select {
	case j.writeCh <- item{cycle: rec.CycleID, rec: rec}:
		return nil
	default:
		slog.Warn("record journal buffer full, dropping record",
			"cycle_id", rec.CycleID, "strike", rec.Strike.Strike.Text)
		return ErrBufferFull
	}
}

// Close flushes pending records and closes the current file.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logger != nil {
		return j.logger.Close()
	}
	return nil
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()

	for {
		select {
		case it := <-j.writeCh:
			j.writeRecord(it)
		case <-j.done:
			timeout := time.After(5 * time.Second)
			for {
				select {
				case it := <-j.writeCh:
					j.writeRecord(it)
				case <-timeout:
					slog.Warn("record journal close timeout, some records may be lost")
					return
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) writeRecord(it item) {
	data, err := json.Marshal(it.rec)
	if err != nil {
		slog.Error("failed to marshal record", "error", err, "cycle_id", it.cycle)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := j.now().UTC().Format("2006-01-02")
	if j.logger == nil || date != j.currentDate || it.cycle != j.cycle {
		if err := j.rotate(date, it.cycle); err != nil {
			slog.Error("failed to open record journal", "error", err, "cycle_id", it.cycle)
			return
		}
	}

	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write record", "error", err, "cycle_id", it.cycle)
	}
}

func (j *Journal) rotate(date, cycle string) error {
	if j.logger != nil {
		j.logger.Close()
		j.logger = nil
	}

	dir := filepath.Join(j.baseDir, date, subDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := cycle
	if name == "" {
		name = fmt.Sprintf("%d", j.now().Unix())
	}
	filename := filepath.Join(dir, name+".jsonl")
	j.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    j.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}
	j.currentDate = date
	j.cycle = cycle
	slog.Info("opened record journal", "file", filename)
	return nil
}

// Path returns the journal file of a cycle written on date.
func Path(baseDir string, date time.Time, cycle string) string {
	return filepath.Join(baseDir, date.UTC().Format("2006-01-02"), subDir, cycle+".jsonl")
}
