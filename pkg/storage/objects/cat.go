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
	"context"
	"time"

	"github.com/uber/petstore/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"
)

// CatObject corresponds to a row in the cats table. The id column is
// assigned by the store on first create and written back onto the object;
// it stays nil until then.
type CatObject struct {
	// base.Object DB specific annotations.
	base.Object `sql:"name=cats, primaryKey=((id))"`
	// Identifier assigned by the store.
	ID *base.OptionalUInt64 `column:"name=id"`
	// Name of the cat.
	Name string `column:"name=name"`
	// Breed of the cat.
	Breed string `column:"name=breed"`
	// Age of the cat in years.
	Age int64 `column:"name=age"`
}

// transform will convert all the values from DB into the corresponding types
// in the ORM object to be interpreted by base store client
func (o *CatObject) transform(row map[string]interface{}) {
	o.ID = base.NewOptionalUInt64(row["id"])
	o.Name, _ = row["name"].(string)
	o.Breed, _ = row["breed"].(string)
	o.Age, _ = row["age"].(int64)
}

// CatOps provides methods for manipulating the cats table.
type CatOps interface {
	// Create inserts one cat as a new row in the cats table. On success
	// the store assigned identifier is written back onto the object.
	Create(ctx context.Context, cat *CatObject) error

	// Get retrieves the cat with the given identifier.
	Get(ctx context.Context, id uint64) (*CatObject, error)

	// GetAll retrieves all cats, ordered on their identifier.
	GetAll(ctx context.Context) ([]*CatObject, error)

	// Update writes the given fields of an already saved cat back to its
	// row.
	Update(ctx context.Context, cat *CatObject, fieldsToUpdate ...string) error

	// Delete removes the row of the cat with the given identifier.
	Delete(ctx context.Context, id uint64) error

	// SaveAll saves every cat of the registry in construction order.
	// Saving is fail-fast: the first failure aborts the remaining saves
	// and is returned to the caller; rows already inserted are kept.
	SaveAll(ctx context.Context, r *Registry) error
}

// catOps implements CatOps using a particular Store.
type catOps struct {
	store *Store
}

// init adds a CatObject instance to the global list of storage objects.
func init() {
	Objs = append(Objs, &CatObject{})
}

// Default catOps implementation.
var _ CatOps = (*catOps)(nil)

// NewCatOps constructs a CatOps object for provided Store.
func NewCatOps(s *Store) CatOps {
	return &catOps{store: s}
}

// Create inserts one cat into the cats table
func (c *catOps) Create(ctx context.Context, cat *CatObject) error {
	if err := c.store.oClient.Create(ctx, cat); err != nil {
		c.store.metrics.CatMetrics.CatCreateFail.Inc(1)
		return err
	}
	c.store.metrics.CatMetrics.CatCreate.Inc(1)
	return nil
}

// Get retrieves the cat with the given identifier
func (c *catOps) Get(ctx context.Context, id uint64) (*CatObject, error) {
	catObject := &CatObject{
		ID: base.NewOptionalUInt64(id),
	}
	if err := c.store.oClient.Get(ctx, catObject); err != nil {
		if yarpcerrors.IsNotFound(err) {
			c.store.metrics.CatMetrics.CatNotFound.Inc(1)
		} else {
			c.store.metrics.CatMetrics.CatGetFail.Inc(1)
		}
		return nil, err
	}
	c.store.metrics.CatMetrics.CatGet.Inc(1)
	return catObject, nil
}

// GetAll returns every saved cat, ordered on the store assigned identifier
// so that rows come back in the order they were first saved.
func (c *catOps) GetAll(ctx context.Context) ([]*CatObject, error) {
	rows, err := c.store.oClient.GetAll(ctx, &CatObject{})
	if err != nil {
		c.store.metrics.CatMetrics.CatGetAllFail.Inc(1)
		return nil, err
	}

	resultObjs := []*CatObject{}
	for _, row := range rows {
		catObject := &CatObject{}
		catObject.transform(row)
		resultObjs = append(resultObjs, catObject)
	}

	c.store.metrics.CatMetrics.CatGetAll.Inc(1)
	return resultObjs, nil
}

// Update writes the given fields of an already saved cat back to its row
func (c *catOps) Update(
	ctx context.Context, cat *CatObject, fieldsToUpdate ...string) error {
	if err := c.store.oClient.Update(ctx, cat, fieldsToUpdate...); err != nil {
		c.store.metrics.CatMetrics.CatUpdateFail.Inc(1)
		return err
	}
	c.store.metrics.CatMetrics.CatUpdate.Inc(1)
	return nil
}

// SaveAll saves every registered cat in construction order using the same
// store handle
func (c *catOps) SaveAll(ctx context.Context, r *Registry) error {
	callStart := time.Now()
	cats := r.List()
	for i, cat := range cats {
		if err := c.Create(ctx, cat); err != nil {
			c.store.metrics.CatMetrics.CatSaveAllFail.Inc(1)
			log.WithFields(log.Fields{
				"session": r.Session(),
				"name":    cat.Name,
			}).WithError(err).Error("save aborted")
			return errors.Wrapf(err,
				"saving cat %d of %d", i+1, len(cats))
		}
	}

	c.store.metrics.CatMetrics.CatSaveAll.Inc(1)
	c.store.metrics.CatMetrics.CatSaveAllDuration.Record(time.Since(callStart))
	log.WithFields(log.Fields{
		"session": r.Session(),
		"count":   len(cats),
	}).Debug("saved registry")
	return nil
}

// Delete removes the row of the cat with the given identifier
func (c *catOps) Delete(ctx context.Context, id uint64) error {
	catObject := &CatObject{
		ID: base.NewOptionalUInt64(id),
	}
	if err := c.store.oClient.Delete(ctx, catObject); err != nil {
		c.store.metrics.CatMetrics.CatDeleteFail.Inc(1)
		return err
	}
	c.store.metrics.CatMetrics.CatDelete.Inc(1)
	return nil
}
