package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a relation field the backend sends either as a bare ID string or as
// the embedded document when the relation was populated. It is decoded once
// here so callers never inspect the raw JSON shape.
type Ref[T any] struct {
	id  string
	doc *T
}

// RefTo builds a populated reference.
func RefTo[T any](id string, doc *T) Ref[T] {
	return Ref[T]{id: id, doc: doc}
}

// RefID builds an unpopulated reference.
func RefID[T any](id string) Ref[T] {
	return Ref[T]{id: id}
}

// ID returns the referenced document's ID, or "" for an empty reference.
func (r Ref[T]) ID() string { return r.id }

// Resolved returns the embedded document when the backend populated it.
func (r Ref[T]) Resolved() (*T, bool) {
	return r.doc, r.doc != nil
}

// IsZero reports whether the reference is absent.
func (r Ref[T]) IsZero() bool { return r.id == "" && r.doc == nil }

type idOnly struct {
	ID string `json:"_id"`
}

func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}

	switch data[0] {
	case '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref[T]{id: id}
		return nil
	case '{':
		var key idOnly
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		doc := new(T)
		if err := json.Unmarshal(data, doc); err != nil {
			return err
		}
		*r = Ref[T]{id: key.ID, doc: doc}
		return nil
	default:
		return fmt.Errorf("fleet: reference must be a string or an object, got %s", data)
	}
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.doc != nil {
		return json.Marshal(r.doc)
	}
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}
