package provider

import (
	"context"
	"facilitywatch/internal/models"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog is the YAML document backing StaticProvider.
type Catalog struct {
	Facilities []CatalogFacility `yaml:"facilities"`
}

// CatalogFacility is a facility plus its availability keyed by date.
type CatalogFacility struct {
	models.Facility `yaml:",inline"`
	Availability    map[string][]models.Slot `yaml:"availability"`
}

// StaticProvider serves a fixed catalog. It backs development setups and tests
// where no upstream API key is available.
type StaticProvider struct {
	facilities map[string]CatalogFacility
	order      []string
}

// LoadStaticProvider reads a YAML catalog from path.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return NewStaticProvider(catalog)
}

// NewStaticProvider builds a provider from an in-memory catalog.
func NewStaticProvider(catalog Catalog) (*StaticProvider, error) {
	p := &StaticProvider{facilities: make(map[string]CatalogFacility, len(catalog.Facilities))}
	for _, f := range catalog.Facilities {
		if f.ID == "" {
			return nil, fmt.Errorf("catalog facility %q has no id", f.Name)
		}
		if _, dup := p.facilities[f.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog facility id %s", f.ID)
		}
		p.facilities[f.ID] = f
		p.order = append(p.order, f.ID)
	}
	sort.Strings(p.order)
	return p, nil
}

func (p *StaticProvider) Search(ctx context.Context, query, state string, limit int) ([]models.Facility, error) {
	query = strings.ToLower(query)
	results := make([]models.Facility, 0)
	for _, id := range p.order {
		f := p.facilities[id].Facility
		if state != "" && !strings.EqualFold(f.State, state) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(f.Name), query) &&
			!strings.Contains(strings.ToLower(f.City), query) {
			continue
		}
		results = append(results, f)
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

func (p *StaticProvider) Facility(ctx context.Context, id string) (*models.Facility, error) {
	f, ok := p.facilities[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}
	facility := f.Facility
	return &facility, nil
}

// Availability returns the catalog slots for date. Dates missing from the
// catalog report no slots rather than an error.
func (p *StaticProvider) Availability(ctx context.Context, id, date string) (*models.Availability, error) {
	f, ok := p.facilities[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}

	slots := append([]models.Slot{}, f.Availability[date]...)
	avail := &models.Availability{
		FacilityID: id,
		Date:       date,
		Slots:      slots,
		FetchedAt:  time.Now().UTC(),
	}
	avail.Recount()
	return avail, nil
}
