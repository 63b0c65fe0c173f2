package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Catalog is the YAML seed document.
type Catalog struct {
	Categories  []CategorySeed   `yaml:"categories"`
	Tournaments []TournamentSeed `yaml:"tournaments"`
}

type CategorySeed struct {
	Name     string        `yaml:"name"`
	Slug     string        `yaml:"slug"`
	Products []ProductSeed `yaml:"products"`
}

type ProductSeed struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Price           string `yaml:"price"`
	DiscountedPrice string `yaml:"discounted_price"`
	Stock           int    `yaml:"stock"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active"`
}

type TournamentSeed struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Mode        string    `yaml:"mode"`
	Type        string    `yaml:"type"`
	StartsAt    time.Time `yaml:"starts_at"`
	EndsAt      time.Time `yaml:"ends_at"`
	Reward      string    `yaml:"reward"`
	EntryPrice  string    `yaml:"entry_price"`
}

// LoadFile reads and validates a seed file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a seed document. Unknown keys are rejected so typos do not
// silently drop data.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parsing seed YAML: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	slugs := map[string]bool{}
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = strings.TrimSpace(cat.Name)
		if cat.Name == "" {
			return fmt.Errorf("category %d: name is required", i)
		}
		if cat.Slug == "" {
			cat.Slug = slug.Make(cat.Name)
		}
		if slugs[cat.Slug] {
			return fmt.Errorf("category %q: duplicate slug %q", cat.Name, cat.Slug)
		}
		slugs[cat.Slug] = true
		for j := range cat.Products {
			if err := cat.Products[j].validate(); err != nil {
				return fmt.Errorf("category %q product %d: %w", cat.Name, j, err)
			}
		}
	}
	for i := range c.Tournaments {
		if err := c.Tournaments[i].validate(); err != nil {
			return fmt.Errorf("tournament %d: %w", i, err)
		}
	}
	return nil
}

func (p *ProductSeed) validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	price, err := p.price()
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	if _, err := p.discountedPrice(); err != nil {
		return err
	}
	if p.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	return nil
}

func (p ProductSeed) price() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q", p.Price)
	}
	return v, nil
}

func (p ProductSeed) discountedPrice() (*decimal.Decimal, error) {
	raw := strings.TrimSpace(p.DiscountedPrice)
	if raw == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid discounted_price %q", p.DiscountedPrice)
	}
	return &v, nil
}

func (p ProductSeed) active() bool {
	return p.Active == nil || *p.Active
}

func (t *TournamentSeed) validate() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := enums.ParseTournamentMode(t.Mode); err != nil {
		return err
	}
	if t.Type != "" {
		if _, err := enums.ParseTournamentType(t.Type); err != nil {
			return err
		}
	}
	if t.StartsAt.IsZero() || t.EndsAt.IsZero() {
		return fmt.Errorf("starts_at and ends_at are required")
	}
	if !t.EndsAt.After(t.StartsAt) {
		return fmt.Errorf("ends_at must be after starts_at")
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(t.EntryPrice)); err != nil {
		return fmt.Errorf("invalid entry_price %q", t.EntryPrice)
	}
	return nil
}
