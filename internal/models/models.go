// package models defines the data model for the media transfer control panel
package models

import "time"

// Record is a persisted row with a generated ID and a per-table sequence number.
type Record interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is the data access surface shared by record stores.
//
// List accepts store-specific criteria; unknown keys are ignored.
type Repository[T Record] interface {
	Create(record T) error
	Get(id string) (T, error)
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
	Count() (int, error)
}

var _ Record = (*SessionEvent)(nil)
