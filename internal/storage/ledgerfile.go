package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"fintrack/internal/core"
)

var (
	// ErrInvalidUser is returned for user IDs that cannot name a ledger file.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrRecordTooLong marks a ledger line longer than any valid record.
	ErrRecordTooLong = errors.New("record too long")
)

// maxRecordLength is well above the longest line a valid transaction
// produces.
const maxRecordLength = 4096

// indirection for tests
var syncFile = (*os.File).Sync

// LoadResult is what survived of a ledger file. Skipped counts blank and
// malformed lines, which produce no warning.
type LoadResult struct {
	Transactions []core.Transaction
	Warnings     []*core.PersistenceWarning
	Skipped      int
}

// LedgerFiles keeps one append-only text file per user under dir. Each line
// is "date,category,merchant,amount".
type LedgerFiles struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedgerFiles(dir string) *LedgerFiles {
	return &LedgerFiles{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// Path returns the ledger file for userID.
func (f *LedgerFiles) Path(userID string) (string, error) {
	if !core.ValidUserID(userID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return filepath.Join(f.dir, "transactions_"+userID+".txt"), nil
}

func (f *LedgerFiles) lockFor(userID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		f.locks[userID] = l
	}
	return l
}

// Load reads every record of userID's ledger in file order. A missing file
// is an empty ledger. Lines that fail validation are skipped and reported
// as warnings; only I/O failures are returned as errors.
func (f *LedgerFiles) Load(ctx context.Context, userID string) (LoadResult, error) {
	path, err := f.Path(userID)
	if err != nil {
		return LoadResult{}, err
	}

	l := f.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.DebugContext(ctx, "No ledger file yet", "user_id", userID, "path", path)
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	var res LoadResult
	reader := bufio.NewReader(file)
	lineNo := 0
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return LoadResult{}, fmt.Errorf("read ledger: %w", readErr)
		}
		if raw == "" {
			break
		}
		if err := ctx.Err(); err != nil {
			return LoadResult{}, err
		}
		lineNo++
		line := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
		if len(line) == 0 {
			res.Skipped++
			continue
		}
		if len(line) > maxRecordLength {
			res.Warnings = append(res.Warnings, &core.PersistenceWarning{
				UserID: userID,
				Line:   lineNo,
				Op:     "parse",
				Err:    fmt.Errorf("%w: %d bytes", ErrRecordTooLong, len(line)),
			})
			continue
		}

		t, err := core.ParseRecord(line)
		switch {
		case errors.Is(err, core.ErrMalformedRecord):
			res.Skipped++
			slog.DebugContext(ctx, "Skipping malformed ledger line", "user_id", userID, "line", lineNo)
		case err != nil:
			res.Warnings = append(res.Warnings, &core.PersistenceWarning{
				UserID: userID,
				Line:   lineNo,
				Op:     "parse",
				Err:    err,
			})
		default:
			res.Transactions = append(res.Transactions, t)
		}
	}

	slog.InfoContext(ctx, "Ledger loaded",
		"user_id", userID,
		"transactions", len(res.Transactions),
		"warnings", len(res.Warnings),
		"skipped", res.Skipped)

	return res, nil
}

// Append writes t as one line at the end of userID's ledger, creating the
// file if needed. On failure the file is truncated back to its previous
// size, so the record is either fully written or absent.
func (f *LedgerFiles) Append(ctx context.Context, userID string, t core.Transaction) error {
	path, err := f.Path(userID)
	if err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	l := f.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	size, prefix, err := inspectTail(file)
	if err != nil {
		return fmt.Errorf("inspect ledger: %w", err)
	}

	line := core.FormatRecord(t) + "\n"
	if prefix {
		line = "\n" + line
	}
	if _, err := file.WriteString(line); err != nil {
		return rollback(file, size, fmt.Errorf("append ledger: %w", err))
	}
	if err := syncFile(file); err != nil {
		return rollback(file, size, fmt.Errorf("sync ledger: %w", err))
	}

	slog.DebugContext(ctx, "Transaction appended",
		"user_id", userID,
		"category", t.Category,
		"amount", t.Amount.String())
	return nil
}

// inspectTail returns the file size and whether a non-empty file is missing
// its final line terminator.
func inspectTail(file *os.File) (int64, bool, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, false, err
	}
	size := info.Size()
	if size == 0 {
		return 0, false, nil
	}
	buf := make([]byte, 1)
	if _, err := file.ReadAt(buf, size-1); err != nil && !errors.Is(err, io.EOF) {
		return 0, false, err
	}
	return size, buf[0] != '\n', nil
}

// rollback drops whatever a failed append left past size.
func rollback(file *os.File, size int64, cause error) error {
	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("%w (truncate to %d bytes: %v)", cause, size, err)
	}
	return cause
}
