package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// VerifyChain reads the ledger and validates the hash chain.
// Returns Valid=true if the chain is intact, or details about the
// first broken link. An absent ledger verifies trivially.
func (l *Ledger) VerifyChain() VerifyResult {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return VerifyResult{Valid: true}
		}
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	prevHash := GenesisHash

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return VerifyResult{
				Error:     fmt.Sprintf("parse error: %v", err),
				ErrorLine: lineNum,
			}
		}
		if e.PrevHash != prevHash {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", prevHash, e.PrevHash),
				ErrorLine: lineNum,
			}
		}
		prevHash = HashLine(line)
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Lines: lineNum}
}
