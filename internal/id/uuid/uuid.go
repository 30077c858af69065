// Package uuid hands out identifiers for sync runs and catalog objects.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator implements domain.IDGenerator. Version 7 ids embed their creation
// time, so run ids and object names sort in the order they were made.
type Generator struct{}

// New returns a Generator.
func New() *Generator { return &Generator{} }

// NewID returns the next id in canonical string form.
func (Generator) NewID() (string, error) {
	v7, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("new run id: %w", err)
	}
	return v7.String(), nil
}
