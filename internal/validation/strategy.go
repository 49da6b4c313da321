package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/pkg/models"
)

// StrategyStore holds the validated per-category strategies and resolves
// every other category from the collection defaults.
type StrategyStore struct {
	validator  *SchemaValidator
	defaults   *collection.Defaults
	logger     *logrus.Logger
	mu         sync.RWMutex
	strategies map[string]models.CollectionStrategy
}

func NewStrategyStore(validator *SchemaValidator, defaults *collection.Defaults, logger *logrus.Logger) *StrategyStore {
	return &StrategyStore{
		validator:  validator,
		defaults:   defaults,
		logger:     logger,
		strategies: make(map[string]models.CollectionStrategy),
	}
}

// Strategy implements collection.StrategyProvider.
func (s *StrategyStore) Strategy(categoryID string) models.CollectionStrategy {
	s.mu.RLock()
	strategy, ok := s.strategies[categoryID]
	s.mu.RUnlock()
	if !ok {
		return s.defaults.Strategy(categoryID)
	}
	return s.defaults.Apply(strategy)
}

// Lookup reports whether a category has a stored strategy document.
func (s *StrategyStore) Lookup(categoryID string) (models.CollectionStrategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[categoryID]
	return strategy, ok
}

// Put validates one document and replaces the stored strategy of its
// category. The returned result is non-nil when validation failed.
func (s *StrategyStore) Put(data []byte) (models.CollectionStrategy, *ValidationResult) {
	result := s.validator.Validate(StrategySchema, data)
	if !result.Valid {
		return models.CollectionStrategy{}, result
	}

	strategy := models.CollectionStrategy{Enabled: true}
	if err := json.Unmarshal(data, &strategy); err != nil {
		return models.CollectionStrategy{}, &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "document",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	s.mu.Lock()
	s.strategies[strategy.CategoryID] = strategy
	s.mu.Unlock()
	return strategy, nil
}

// LoadDir loads every *.json document in dir. A missing dir is not an
// error. Invalid documents are skipped and reported together.
func (s *StrategyStore) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.WithField("dir", dir).Info("No strategy directory, using collection defaults")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read strategy dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		loaded int
		errs   []error
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		strategy, result := s.Put(data)
		if result != nil {
			s.logger.WithFields(logrus.Fields{
				"file":   name,
				"errors": result.FieldErrors(),
			}).Warn("Rejected invalid strategy document")
			errs = append(errs, fmt.Errorf("%s: %w", name, result.Err()))
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"file":        name,
			"category_id": strategy.CategoryID,
			"enabled":     strategy.Enabled,
		}).Debug("Loaded strategy")
		loaded++
	}

	return loaded, errors.Join(errs...)
}
