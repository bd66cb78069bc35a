package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

// FileName is the per-user ledger file inside the user's directory.
const FileName = "transactions.jsonl"

const maxLineSize = 1 << 20

// FileLog stores one JSON object per line in <root>/<user_id>/transactions.jsonl.
type FileLog struct {
	root string
	mu   sync.Mutex
	log  zerolog.Logger
}

// NewFileLog creates a file-backed ledger rooted at root.
func NewFileLog(root string, log zerolog.Logger) *FileLog {
	return &FileLog{root: root, log: log}
}

// Path returns the ledger file for userID.
func (l *FileLog) Path(userID string) string {
	return filepath.Join(l.root, userID, FileName)
}

// Append writes tx as a single line at the end of the user's file.
func (l *FileLog) Append(ctx context.Context, tx *domain.Transaction) error {
	const op = "FileLog.Append"
	if err := checkAppend(op, tx); err != nil {
		return err
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return apperr.E(apperr.KindLedger, op, "encode transaction", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.Path(tx.UserID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.E(apperr.KindLedger, op, "create user directory", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return apperr.E(apperr.KindLedger, op, "open ledger", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return apperr.E(apperr.KindLedger, op, "write ledger", err)
	}
	if err := f.Close(); err != nil {
		return apperr.E(apperr.KindLedger, op, "close ledger", err)
	}
	return nil
}

// List returns the user's transactions in the order they were appended.
// A user with no file has no transactions. Lines that fail to decode are
// skipped with a warning rather than hiding the rest of the history.
func (l *FileLog) List(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	const op = "FileLog.List"
	if err := domain.CheckUserID(op, userID); err != nil {
		return nil, err
	}

	f, err := os.Open(l.Path(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return []*domain.Transaction{}, nil
	}
	if err != nil {
		return nil, apperr.E(apperr.KindLedger, op, "open ledger", err)
	}
	defer f.Close()

	txs := []*domain.Transaction{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var tx domain.Transaction
		if err := json.Unmarshal(line, &tx); err != nil {
			l.log.Warn().
				Err(err).
				Str("user_id", userID).
				Int("line", lineNo).
				Msg("Skipping malformed ledger line")
			continue
		}
		txs = append(txs, &tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.E(apperr.KindLedger, op, fmt.Sprintf("read ledger at line %d", lineNo), err)
	}
	return txs, nil
}

var _ Log = (*FileLog)(nil)
