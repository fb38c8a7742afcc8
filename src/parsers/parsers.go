// backend/src/parsers/parsers.go
package parsers

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/username/tradefolio/backend/src/models"
)

// Sentinel errors returned by Normalize. Callers decide whether a record is
// counted as malformed or skipped silently.
var (
	// ErrMalformedRecord means required fields are missing or invalid. The
	// record is counted and skipped; it never aborts the batch.
	ErrMalformedRecord = errors.New("malformed trade record")
	// ErrNotExecution means the record is a valid broker record that simply
	// is not a trade execution (dividend, journal entry, ...). Skipped
	// without counting.
	ErrNotExecution = errors.New("record is not a trade execution")
)

// Parser converts one broker-specific raw trade record into a canonical
// Execution.
type Parser interface {
	Source() string
	Normalize(raw models.RawTrade) (models.Execution, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Parser)
)

// Register makes a parser available by its source name. Called at startup.
func Register(p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(p.Source())] = p
}

// GetParser returns the parser registered for the given source.
func GetParser(source string) (Parser, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[strings.ToLower(source)]
	if !ok {
		return nil, fmt.Errorf("no parser registered for source: %s", source)
	}
	return p, nil
}
