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

package orm_test

import (
	"github.com/uber/petstore/pkg/storage/objects/base"
	"github.com/uber/petstore/pkg/storage/orm"
)

// ValidObject is a representation of the orm annotations
type ValidObject struct {
	base.Object `sql:"name=valid_object, primaryKey=((id), name)"`
	ID          uint64 `column:"name=id"`
	Name        string `column:"name=name"`
	Data        string `column:"name=data"`
}

// ValidObjectWithOptKey is a representation of the orm annotations
// with a primary key whose value is assigned by the store
type ValidObjectWithOptKey struct {
	base.Object `sql:"name=valid_object_opt, primaryKey=((id))"`
	ID          *base.OptionalUInt64 `column:"name=id"`
	Data        string               `column:"name=data"`
}

// InvalidObject1 has primary key as empty
type InvalidObject1 struct {
	base.Object `sql:"name=valid_object, primaryKey=()"`
	ID          uint64 `column:"name=id"`
	Name        string `column:"name=name"`
}

// InvalidObject2 has invalid orm tag
type InvalidObject2 struct {
	base.Object `randomstring:"name=valid_object, primaryKey=((id), name)"`
	ID          uint64 `column:"name=id"`
	Name        string `column:"name=name"`
}

// InvalidObject3 has invalid orm tag on ID field
type InvalidObject3 struct {
	base.Object `sql:"name=valid_object, primaryKey=((id), name)"`
	ID          uint64 `randomstring:"name=id"`
	Name        string `column:"name=name"`
}

// TestTableFromObject tests creating orm.Table from given base object
// This is meant to test that only entities annotated in a certain format
// will be successfully converted to orm tables
func (suite *ORMTestSuite) TestTableFromObject() {
	table, err := orm.TableFromObject(&ValidObject{})
	suite.NoError(err)
	suite.Equal("valid_object", table.Name)
	suite.Equal([]string{"id"}, table.Key.PartitionKeys)
	suite.Len(table.Key.ClusteringKeys, 1)
	suite.Equal("name", table.Key.ClusteringKeys[0].Name)

	tt := []base.Object{
		&InvalidObject1{}, &InvalidObject2{}, &InvalidObject3{}}
	for _, t := range tt {
		_, err := orm.TableFromObject(t)
		suite.Error(err)
	}
}

// TestGetRowFromObject tests building a row (list of base.Column) from base
// object
func (suite *ORMTestSuite) TestGetRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	row := table.GetRowFromObject(e)
	suite.ensureRowsEqual(row, testRow)

	fieldsToUpdate := []string{"ID", "Name"}
	selectedFieldsRow := table.GetRowFromObject(e, fieldsToUpdate...)
	suite.ensureRowsEqual(selectedFieldsRow, keyRow)
}

// TestGetRowFromObjectWithOptKey tests building a row from a base object
// whose key is assigned by the store. An unset key column is omitted from
// the row so the store can assign it.
func (suite *ORMTestSuite) TestGetRowFromObjectWithOptKey() {
	e := &ValidObjectWithOptKey{
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	row := table.GetRowFromObject(e)
	suite.ensureRowsEqual(
		row,
		[]base.Column{
			{
				Name:  "data",
				Value: "testdata",
			},
		},
	)

	// once the key is set it shows up in the row as a raw value
	e.ID = &base.OptionalUInt64{Value: 7}
	row = table.GetRowFromObject(e)
	suite.ensureRowsEqual(
		row,
		[]base.Column{
			{
				Name:  "id",
				Value: uint64(7),
			},
			{
				Name:  "data",
				Value: "testdata",
			},
		},
	)
}

// TestGetKeyRowFromObject tests getting primary key row (list of primary key
// base.Column) from base object
func (suite *ORMTestSuite) TestGetKeyRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "junk",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	keyRow := table.GetKeyRowFromObject(e)
	suite.Equal(e.ID, keyRow[0].Value)
	suite.Equal(e.Name, keyRow[1].Value)
	suite.Equal(len(keyRow), 2)
}

// TestGetPartitionKeyRowFromObject tests getting partition key row
// (list of partition key base.Column) from base object
func (suite *ORMTestSuite) TestGetPartitionKeyRowFromObject() {
	e := &ValidObject{
		ID:   uint64(1),
		Name: "test",
		Data: "junk",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	keyRow := table.GetPartitionKeyRowFromObject(e)
	suite.Equal(e.ID, keyRow[0].Value)
	suite.Equal(len(keyRow), 1)
}

// TestGetPartitionKeyRowFromObjectWithOptKey tests getting partition key row
// from a base object whose store assigned key is still unset
func (suite *ORMTestSuite) TestGetPartitionKeyRowFromObjectWithOptKey() {
	e := &ValidObjectWithOptKey{
		ID:   &base.OptionalUInt64{Value: 3},
		Data: "testdata",
	}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	keyRow := table.GetPartitionKeyRowFromObject(e)
	suite.Equal(uint64(3), keyRow[0].Value)
	suite.Len(keyRow, 1)

	// If the key is not assigned yet, the key row is empty
	e = &ValidObjectWithOptKey{
		Data: "testdata",
	}
	table, err = orm.TableFromObject(e)
	suite.NoError(err)

	keyRow = table.GetPartitionKeyRowFromObject(e)
	suite.Len(keyRow, 0)
}

// TestSetObjectFromRow tests populating object fields from a row map as
// read from the DB
func (suite *ORMTestSuite) TestSetObjectFromRow() {
	e := &ValidObject{}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	table.SetObjectFromRow(e, map[string]interface{}{
		"id":   uint64(1),
		"name": "test",
		"data": "testdata",
	})
	suite.Equal(uint64(1), e.ID)
	suite.Equal("test", e.Name)
	suite.Equal("testdata", e.Data)

	opt := &ValidObjectWithOptKey{}
	table, err = orm.TableFromObject(opt)
	suite.NoError(err)

	table.SetObjectFromRow(opt, map[string]interface{}{
		"id":   uint64(5),
		"data": "testdata",
	})
	suite.Equal(&base.OptionalUInt64{Value: 5}, opt.ID)
	suite.Equal("testdata", opt.Data)
}

// TestSetAssignedKey tests writing the store assigned identifier back onto
// the object key field
func (suite *ORMTestSuite) TestSetAssignedKey() {
	e := &ValidObjectWithOptKey{Data: "testdata"}
	table, err := orm.TableFromObject(e)
	suite.NoError(err)

	table.SetAssignedKey(e, 42)
	suite.Equal(&base.OptionalUInt64{Value: 42}, e.ID)

	// an already assigned key is left alone
	table.SetAssignedKey(e, 43)
	suite.Equal(&base.OptionalUInt64{Value: 42}, e.ID)

	// objects whose key is supplied by the caller are left alone
	v := &ValidObject{ID: 1, Name: "test"}
	table, err = orm.TableFromObject(v)
	suite.NoError(err)

	table.SetAssignedKey(v, 42)
	suite.Equal(uint64(1), v.ID)
}
