// Package ledger implements the append-only approval log: a JSONL
// file with SHA-256 hash chaining. Each line's prev_hash is the hash
// of the previous line, forming a tamper-evident chain. Lines are
// never rewritten; consumption is an appended marker line.
//
// The ledger is the sole source of truth for audit, so every append
// is fsynced before the call returns, and cross-process mutual
// exclusion is enforced with an exclusive advisory lock on a sidecar
// lock file.
package ledger

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// GenesisHash is the prev_hash for the first line of a new ledger.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

var (
	// ErrDuplicateID is returned when appending an approval whose id
	// is already present.
	ErrDuplicateID = errors.New("approval id already present")
	// ErrNotFound is returned when an approval id is absent.
	ErrNotFound = errors.New("approval not found")
	// ErrAlreadyConsumed is returned when marking an approval that a
	// consume line already covers.
	ErrAlreadyConsumed = errors.New("approval already consumed")
	// ErrCorrupt is returned when the ledger fails to parse or its
	// hash chain is broken. The ledger is never repaired in place;
	// corruption forces manual intervention.
	ErrCorrupt = errors.New("ledger is corrupt")
)

// Ledger is a handle on the approval log file. Open it at process
// start, pass it to the operations that need it, and let it go at
// process end; it holds no open file descriptor between calls.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// Open returns a Ledger backed by the given file path, creating the
// parent directory if needed. The file itself is created lazily on
// first append.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &Ledger{path: path}, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Append adds an approval entry, preserving insertion order. Fails
// with ErrDuplicateID if the id is already present. The line is
// chained to the current tail and synced to disk before return.
func (l *Ledger) Append(id, reason, issuedBy string, expiresAt *time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	unlock, err := l.flock()
	if err != nil {
		return err
	}
	defer unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}
	for _, e := range lines {
		if e.Kind == KindApproval && e.ID == id {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
	}

	entry := Entry{
		Kind:      KindApproval,
		ID:        id,
		Timestamp: time.Now().UTC().Format(TimeFormat),
		Reason:    reason,
		IssuedBy:  issuedBy,
	}
	if expiresAt != nil {
		entry.ExpiresAt = expiresAt.UTC().Format(TimeFormat)
	}

	return l.writeEntry(entry)
}

// MarkConsumed appends a consume line for id, transitioning the
// approval from unconsumed to consumed. Fails with ErrNotFound if the
// id was never issued and ErrAlreadyConsumed if a consume line
// already exists.
func (l *Ledger) MarkConsumed(id, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	unlock, err := l.flock()
	if err != nil {
		return err
	}
	defer unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}

	found := false
	for _, e := range lines {
		switch {
		case e.Kind == KindApproval && e.ID == id:
			found = true
		case e.Kind == KindConsume && e.ID == id:
			return fmt.Errorf("%w: %s", ErrAlreadyConsumed, id)
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return l.writeEntry(Entry{
		Kind:      KindConsume,
		ID:        id,
		Timestamp: time.Now().UTC().Format(TimeFormat),
		Action:    action,
	})
}

// FindByID returns the assembled state of one approval. Lookup is by
// structured field match, never substring, so an id that happens to
// be a prefix of another can never satisfy it.
func (l *Ledger) FindByID(id string) (*Approval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return nil, err
	}

	approvals := assemble(lines)
	for i := range approvals {
		if approvals[i].ID == id {
			return &approvals[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Contains reports whether an approval id has been issued.
func (l *Ledger) Contains(id string) (bool, error) {
	_, err := l.FindByID(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all approvals in issuance order.
func (l *Ledger) List() ([]Approval, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return nil, err
	}
	return assemble(lines), nil
}

// assemble joins approval lines with their consume lines, preserving
// issuance order.
func assemble(lines []Entry) []Approval {
	var out []Approval
	index := make(map[string]int)

	for _, e := range lines {
		switch e.Kind {
		case KindApproval:
			a := Approval{
				ID:       e.ID,
				Reason:   e.Reason,
				IssuedBy: e.IssuedBy,
			}
			if t, err := time.Parse(TimeFormat, e.Timestamp); err == nil {
				a.IssuedAt = t
			}
			if e.ExpiresAt != "" {
				if t, err := time.Parse(TimeFormat, e.ExpiresAt); err == nil {
					a.ExpiresAt = &t
				}
			}
			index[e.ID] = len(out)
			out = append(out, a)
		case KindConsume:
			i, ok := index[e.ID]
			if !ok {
				continue
			}
			out[i].Consumed = true
			out[i].ConsumedAction = e.Action
			if t, err := time.Parse(TimeFormat, e.Timestamp); err == nil {
				out[i].ConsumedAt = &t
			}
		}
	}
	return out
}

// readLines parses the whole ledger, validating the hash chain as it
// goes. Any parse failure or chain break is ErrCorrupt.
func (l *Ledger) readLines() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var entries []Entry
	prevHash := GenesisHash
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNo, err)
		}
		if e.PrevHash != prevHash {
			return nil, fmt.Errorf("%w: chain break at line %d", ErrCorrupt, lineNo)
		}
		prevHash = HashLine(line)
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return entries, nil
}

// writeEntry chains entry to the current tail and appends it with an
// fsync before returning. Callers hold the flock.
func (l *Ledger) writeEntry(entry Entry) error {
	tail, err := l.tailHash()
	if err != nil {
		return err
	}
	entry.PrevHash = tail

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// tailHash returns the hash of the last line, or GenesisHash for an
// empty or absent ledger.
func (l *Ledger) tailHash() (string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	tail := GenesisHash
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		tail = HashLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return tail, nil
}

// flock takes an exclusive advisory lock on the sidecar lock file,
// serializing appends across concurrently running CLI invocations.
func (l *Ledger) flock() (func(), error) {
	lf, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open ledger lock: %w", err)
	}
	if err := unix.Flock(int(lf.Fd()), unix.LOCK_EX); err != nil {
		lf.Close()
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	return func() {
		_ = unix.Flock(int(lf.Fd()), unix.LOCK_UN)
		lf.Close()
	}, nil
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
