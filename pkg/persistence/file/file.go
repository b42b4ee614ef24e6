// Package file provides a file-based persistence implementation used by
// tests and local runs.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/finwatch/sentinel/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// One mutex serializes writers; counters are read-modify-write under it.
type Persistence struct {
	root string
	mu   sync.Mutex

	policyRepo      *PolicyRepository
	transactionRepo *TransactionRepository
	fraudModelRepo  *FraudModelRepository
	fraudAlertRepo  *FraudAlertRepository
	traceRepo       *TraceRepository
	scheduleRepo    *ScheduleRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.policyRepo = &PolicyRepository{p: p}
	p.transactionRepo = &TransactionRepository{p: p}
	p.fraudModelRepo = &FraudModelRepository{p: p}
	p.fraudAlertRepo = &FraudAlertRepository{p: p}
	p.traceRepo = &TraceRepository{p: p}
	p.scheduleRepo = &ScheduleRepository{p: p}

	return p
}

func (p *Persistence) PolicyRepository() persistence.PolicyRepository {
	return p.policyRepo
}

func (p *Persistence) TransactionRepository() persistence.TransactionRepository {
	return p.transactionRepo
}

func (p *Persistence) FraudModelRepository() persistence.FraudModelRepository {
	return p.fraudModelRepo
}

func (p *Persistence) FraudAlertRepository() persistence.FraudAlertRepository {
	return p.fraudAlertRepo
}

func (p *Persistence) TraceRepository() persistence.TraceRepository {
	return p.traceRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup; nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) dir(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

func (p *Persistence) writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

func (p *Persistence) readJSON(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, value)
}

// readAll decodes every JSON file in a directory into values produced by
// newValue, skipping the directory entirely when it does not exist yet.
func readAll[T any](p *Persistence, dir string) ([]*T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	items := make([]*T, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		item := new(T)
		if err := p.readJSON(filepath.Join(dir, entry.Name()), item); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}
