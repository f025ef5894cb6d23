package models

import "github.com/google/uuid"

// ensureID fills a zero primary key so rows can be created without a database default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// ensureOrderedID is ensureID with a time-ordered (v7) value, so append-only
// tables can be replayed by primary key when timestamps tie.
func ensureOrderedID(id *uuid.UUID) error {
	if *id != uuid.Nil {
		return nil
	}
	v7, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = v7
	return nil
}
