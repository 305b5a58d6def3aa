package store

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// SeedFile is the YAML layout of an operator-supplied stop list:
//
//	stops:
//	  - name: 津新町駅前
//	    code: "4101"
type SeedFile struct {
	Stops []SeedStop `yaml:"stops" validate:"required,min=1,dive"`
}

// SeedStop is one stop entry in a SeedFile.
type SeedStop struct {
	Name string `yaml:"name" validate:"required"`
	Code string `yaml:"code" validate:"required,numeric"`
}

// ParseSeed decodes and validates a YAML stop list.
func ParseSeed(data []byte) ([]domain.Stop, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode stops yaml: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate stops yaml: %w", err)
	}
	out := make([]domain.Stop, len(f.Stops))
	for i, s := range f.Stops {
		out[i] = domain.Stop{Name: s.Name, Code: s.Code}
	}
	return out, nil
}

// ImportSeedFile reads a YAML stop list from path and upserts it.
// It returns the number of stops imported.
func ImportSeedFile(ctx context.Context, repo Repo, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	stops, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if err := repo.UpsertStops(ctx, stops); err != nil {
		return 0, err
	}
	return len(stops), nil
}
