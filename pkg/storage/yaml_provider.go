package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
	"github.com/CesarCosmico/fishing-stats/pkg/errors"
)

// recordFile is the on-disk shape of a player record:
//
//	name: "PlayerName"
//	contexts:
//	  recycling:
//	    common:
//	      total: 28
//	      items:
//	        bamboo: 28
//	  competition:
//	    suma_total:
//	      total: 11
type recordFile struct {
	Name     string                             `yaml:"name"`
	Contexts map[string]map[string]categoryFile `yaml:"contexts,omitempty"`
}

type categoryFile struct {
	Total int            `yaml:"total"`
	Items map[string]int `yaml:"items,omitempty"`
}

// YAMLProvider stores one YAML file per player (<uuid>.yml) under a data
// directory.
type YAMLProvider struct {
	dataDir     string
	resolveName NameResolver
	logger      *slog.Logger
}

// NewYAMLProvider creates a YAML-file record provider. The data directory is
// created if missing. resolveName may be nil.
func NewYAMLProvider(dataDir string, resolveName NameResolver, logger *slog.Logger) (*YAMLProvider, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &YAMLProvider{
		dataDir:     dataDir,
		resolveName: resolveName,
		logger:      logger,
	}, nil
}

// Load reads a player's record file. Missing or unreadable files degrade to
// a freshly synthesized empty record so a load failure never aborts the
// caller; unreadable files are logged.
func (p *YAMLProvider) Load(ctx context.Context, playerID uuid.UUID) (*domain.PlayerRecord, error) {
	data, err := os.ReadFile(p.recordPath(playerID))
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Error("Failed to read player record, synthesizing empty",
				"player_id", playerID, "error", err)
		}
		return p.emptyRecord(playerID), nil
	}

	var file recordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		p.logger.Error("Failed to parse player record, synthesizing empty",
			"player_id", playerID, "error", err)
		return p.emptyRecord(playerID), nil
	}

	record := domain.NewPlayerRecord(playerID, file.Name)
	if record.Name == "" {
		record.Name = p.bestEffortName(playerID)
	}
	for statType, categories := range file.Contexts {
		typeData := make(map[string]map[string]int, len(categories))
		for category, cat := range categories {
			categoryData := make(map[string]int, len(cat.Items)+1)
			categoryData[domain.TotalSlot] = cat.Total
			for itemID, count := range cat.Items {
				categoryData[itemID] = count
			}
			typeData[category] = categoryData
		}
		record.Contexts[statType] = typeData
	}
	return record, nil
}

// Save writes the record to a temp file and renames it into place so a crash
// mid-write never leaves a truncated record.
func (p *YAMLProvider) Save(ctx context.Context, record *domain.PlayerRecord) error {
	file := recordFile{
		Name:     record.Name,
		Contexts: make(map[string]map[string]categoryFile),
	}
	for statType, typeData := range record.Contexts {
		categories := make(map[string]categoryFile, len(typeData))
		for category, categoryData := range typeData {
			cat := categoryFile{Total: categoryData[domain.TotalSlot]}
			for slot, count := range categoryData {
				if slot == domain.TotalSlot {
					continue
				}
				if cat.Items == nil {
					cat.Items = make(map[string]int)
				}
				cat.Items[slot] = count
			}
			// Empty categories are omitted from the persisted shape.
			if cat.Total == 0 && len(cat.Items) == 0 {
				continue
			}
			categories[category] = cat
		}
		if len(categories) > 0 {
			file.Contexts[statType] = categories
		}
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return errors.ErrSaveFailed(record.ID.String(), err)
	}

	path := p.recordPath(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.ErrSaveFailed(record.ID.String(), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.ErrSaveFailed(record.ID.String(), err)
	}
	return nil
}

// Delete removes a player's record file. A missing file is a no-op.
func (p *YAMLProvider) Delete(ctx context.Context, playerID uuid.UUID) error {
	if err := os.Remove(p.recordPath(playerID)); err != nil && !os.IsNotExist(err) {
		return errors.ErrDeleteFailed(playerID.String(), err)
	}
	return nil
}

// ListIDs enumerates player IDs from the data directory listing. Files that
// do not parse as "<uuid>.yml" are skipped.
func (p *YAMLProvider) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	entries, err := os.ReadDir(p.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.ErrListFailed(err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yml") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, ".yml"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *YAMLProvider) recordPath(playerID uuid.UUID) string {
	return filepath.Join(p.dataDir, playerID.String()+".yml")
}

func (p *YAMLProvider) emptyRecord(playerID uuid.UUID) *domain.PlayerRecord {
	return domain.NewPlayerRecord(playerID, p.bestEffortName(playerID))
}

func (p *YAMLProvider) bestEffortName(playerID uuid.UUID) string {
	if p.resolveName != nil {
		return p.resolveName(playerID)
	}
	return ""
}
