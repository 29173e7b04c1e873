// Copyright (c) 2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objects

import (
	"github.com/pborman/uuid"
)

// Registry is a caller owned, append-only, ordered collection of cats
// constructed during one logical session. Every constructed cat is appended
// exactly once, at construction time, and is never removed; the registry
// preserves construction order and CatOps.SaveAll replays it.
//
// A Registry is owned by one session and is not safe for concurrent use.
type Registry struct {
	// session identifies this registry in logs
	session string
	cats    []*CatObject
}

// NewRegistry returns an empty cat registry for one logical session.
func NewRegistry() *Registry {
	return &Registry{
		session: uuid.New(),
	}
}

// NewCat constructs a cat with the given attributes and appends it to the
// registry before anything else can happen to it. The identifier stays unset
// until the cat is first saved.
func NewCat(r *Registry, name, breed string, age int64) *CatObject {
	cat := &CatObject{
		Name:  name,
		Breed: breed,
		Age:   age,
	}
	r.add(cat)
	return cat
}

// add appends one cat to the registry.
func (r *Registry) add(cat *CatObject) {
	r.cats = append(r.cats, cat)
}

// Session returns the session identifier of this registry.
func (r *Registry) Session() string {
	return r.session
}

// Len returns the number of cats constructed in this session.
func (r *Registry) Len() int {
	return len(r.cats)
}

// List returns the registered cats in construction order. The returned slice
// is a copy; the registry itself stays append-only.
func (r *Registry) List() []*CatObject {
	cats := make([]*CatObject, len(r.cats))
	copy(cats, r.cats)
	return cats
}
