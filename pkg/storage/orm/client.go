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

package orm

import (
	"context"
	"reflect"

	"github.com/uber/petstore/pkg/storage/objects/base"

	"go.uber.org/yarpc/yarpcerrors"
)

// Client defines the methods to operate with storage objects
type Client interface {
	// CreateIfNotExists creates the storage object in the database if it
	// doesn't already exist
	CreateIfNotExists(ctx context.Context, e base.Object) error
	// Create creates the storage object in the database. On success the
	// store assigned identifier is written back onto the object if its key
	// column was unset.
	Create(ctx context.Context, e base.Object) error
	// Get fetches the storage object from the database by primary key
	Get(ctx context.Context, e base.Object) error
	// GetAll fetches all rows matching the object's partition key. An
	// object with an unset partition key fetches every row of the table.
	GetAll(ctx context.Context, e base.Object) ([]map[string]interface{}, error)
	// Update updates the given fields of the storage object in the database
	Update(ctx context.Context, e base.Object, fieldsToUpdate ...string) error
	// Delete deletes the storage object from the database
	Delete(ctx context.Context, e base.Object) error
}

type client struct {
	objectIndex map[reflect.Type]*Table
	connector   Connector
}

// NewClient returns a new ORM client for the storage objects and connector
// provided.
func NewClient(conn Connector, objects ...base.Object) (Client, error) {
	oi, err := BuildObjectIndex(objects)
	if err != nil {
		return nil, err
	}
	return &client{
		objectIndex: oi,
		connector:   conn,
	}, nil
}

// getTable gets the base Table structure that matches the object instance
// provided. Return an error when not found.
func (c *client) getTable(e base.Object) (*Table, error) {
	t := reflect.TypeOf(e).Elem()
	table, ok := c.objectIndex[t]
	if !ok {
		return nil, yarpcerrors.NotFoundErrorf(
			"Table not found for storage object: %q", t.Name())
	}
	return table, nil
}

// CreateIfNotExists creates the storage object in the database if a row with
// the same primary key doesn't already exist
func (c *client) CreateIfNotExists(ctx context.Context, e base.Object) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	row := table.GetRowFromObject(e)
	return c.connector.CreateIfNotExists(ctx, &table.Definition, row)
}

// Create creates the storage object in the database
func (c *client) Create(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// translate the storage object into a row (list of column)
	row := table.GetRowFromObject(e)

	// Tell the connector to create a row in the DB using this row
	id, err := c.connector.Create(ctx, &table.Definition, row)
	if err != nil {
		return err
	}

	// propagate the store assigned identifier onto the object so that a
	// repeated create of the same object carries its key explicitly
	table.SetAssignedKey(e, id)
	return nil
}

// Get fetches an object by primary key. The object provided must contain
// values for all components of its primary key for the operation to succeed.
func (c *client) Get(ctx context.Context, e base.Object) error {

	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object
	keyRow := table.GetKeyRowFromObject(e)

	row, err := c.connector.Get(ctx, &table.Definition, keyRow)
	if err != nil {
		return err
	}

	// build a storage object from the row
	table.SetObjectFromRow(e, row)

	return nil
}

// GetAll fetches all rows matching the object's partition key
func (c *client) GetAll(
	ctx context.Context, e base.Object) ([]map[string]interface{}, error) {
	table, err := c.getTable(e)
	if err != nil {
		return nil, err
	}

	keyRow := table.GetPartitionKeyRowFromObject(e)
	return c.connector.GetAll(ctx, &table.Definition, keyRow)
}

// Update updates the given fields of the storage object in the database
func (c *client) Update(
	ctx context.Context, e base.Object, fieldsToUpdate ...string) error {
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	keyRow := table.GetKeyRowFromObject(e)

	// exclude key columns from the update set, they identify the row
	keyCols := map[string]bool{}
	for _, k := range keyRow {
		keyCols[k.Name] = true
	}
	row := []base.Column{}
	for _, col := range table.GetRowFromObject(e, fieldsToUpdate...) {
		if !keyCols[col.Name] {
			row = append(row, col)
		}
	}

	return c.connector.Update(ctx, &table.Definition, row, keyRow)
}

// Delete deletes the storage object in the database
func (c *client) Delete(ctx context.Context, e base.Object) error {
	// lookup if a table exists for this object, return error if not found
	table, err := c.getTable(e)
	if err != nil {
		return err
	}

	// build a primary key row from storage object
	keyRow := table.GetKeyRowFromObject(e)

	// Tell the connector to delete the row in the DB using this keyRow
	return c.connector.Delete(ctx, &table.Definition, keyRow)
}
