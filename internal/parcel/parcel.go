// Package parcel resolves a parcel identifier to exactly one parcel feature.
package parcel

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/source"
)

var (
	// ErrNotFound is returned when no parcel carries the identifier.
	ErrNotFound = eris.New("parcel identifier not found")
	// ErrDuplicate is returned in strict mode when several parcels share it.
	ErrDuplicate = eris.New("parcel identifier is not unique")
	// ErrEmptyIdentifier is returned for a blank identifier.
	ErrEmptyIdentifier = eris.New("parcel identifier is empty")
)

// Parcel is one property boundary.
type Parcel struct {
	ID   string
	Name string
	Geom geom.T
	CRS  source.CRS
}

// Fields names the identifier and display-name attributes of the collection.
type Fields struct {
	ID   string
	Name string
}

// Locator finds parcels by identifier.
type Locator struct {
	fields           Fields
	rejectDuplicates bool
}

// Option configures a Locator.
type Option func(*Locator)

// RejectDuplicates makes duplicate identifiers an error instead of returning
// the first match.
func RejectDuplicates() Option {
	return func(l *Locator) {
		l.rejectDuplicates = true
	}
}

// NewLocator creates a Locator.
func NewLocator(fields Fields, opts ...Option) *Locator {
	l := &Locator{fields: fields}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check verifies that the collection carries the identifier field.
func (l *Locator) Check(c *source.Collection) error {
	return c.RequireFields(l.fields.ID)
}

// Locate returns the parcel whose identifier equals id exactly (case-sensitive,
// no partial matching). With duplicates, the first in source order wins unless
// the Locator rejects duplicates.
func (l *Locator) Locate(c *source.Collection, id string) (*Parcel, error) {
	if id == "" {
		return nil, ErrEmptyIdentifier
	}
	idField, ok := c.Field(l.fields.ID)
	if !ok {
		return nil, eris.Wrapf(source.ErrSchemaMismatch, "parcel: identifier field %q not found in %s", l.fields.ID, c.Name)
	}
	nameField, _ := c.Field(l.fields.Name)

	var found *Parcel
	matches := 0
	for _, f := range c.Features {
		if f.Attrs[idField] != id {
			continue
		}
		matches++
		if found == nil {
			found = &Parcel{ID: id, Geom: f.Geom, CRS: c.CRS}
			if nameField != "" {
				found.Name = f.Attrs[nameField]
			}
		}
	}

	if found == nil {
		return nil, eris.Wrapf(ErrNotFound, "parcel: %q", id)
	}
	if matches > 1 {
		if l.rejectDuplicates {
			return nil, eris.Wrapf(ErrDuplicate, "parcel: %q matches %d features", id, matches)
		}
		zap.L().Warn("parcel: duplicate identifier, using first match",
			zap.String("component", "parcel.locate"),
			zap.String("id", id),
			zap.Int("matches", matches),
		)
	}
	return found, nil
}

// Locate finds id in c with the default duplicate policy.
func Locate(c *source.Collection, fields Fields, id string) (*Parcel, error) {
	return NewLocator(fields).Locate(c, id)
}
