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
	"reflect"
	"strings"

	"github.com/uber/petstore/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// name of the embedded base.Object field carrying the table annotation
	_objectFieldName = "Object"
	// tag key describing table name and primary key on the embedded field
	_sqlTag = "sql"
	// tag key describing the column name on every other field
	_columnTag = "column"

	_namePrefix       = "name="
	_primaryKeyPrefix = "primaryKey="
)

// Table is the ORM representation of one storage object type. It holds the
// schema Definition used by connectors as well as the mapping from column
// names back to the object's struct fields.
type Table struct {
	base.Definition

	// ColToField maps a column name to the storage object field name
	ColToField map[string]string
}

// TableFromObject creates a Table from a storage object by parsing its
// annotations. An object is only usable with the ORM client if its embedded
// base.Object carries a `sql` annotation with a non-empty table name and
// primary key, and every other field carries a `column` annotation.
func TableFromObject(e base.Object) (*Table, error) {
	elem := reflect.TypeOf(e).Elem()
	if elem.Kind() != reflect.Struct {
		return nil, errors.Errorf(
			"storage object %q is not a struct", elem.Name())
	}

	table := &Table{
		Definition: base.Definition{
			ColumnToType: map[string]reflect.Type{},
		},
		ColToField: map[string]string{},
	}

	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)

		if field.Name == _objectFieldName {
			tag, ok := field.Tag.Lookup(_sqlTag)
			if !ok {
				return nil, errors.Errorf(
					"storage object %q has no %q annotation",
					elem.Name(), _sqlTag)
			}
			name, key, err := parseObjectTag(tag)
			if err != nil {
				return nil, errors.Wrapf(err,
					"storage object %q", elem.Name())
			}
			table.Name = name
			table.Key = key
			continue
		}

		tag, ok := field.Tag.Lookup(_columnTag)
		if !ok {
			return nil, errors.Errorf(
				"field %q of storage object %q has no %q annotation",
				field.Name, elem.Name(), _columnTag)
		}
		col := strings.TrimPrefix(strings.TrimSpace(tag), _namePrefix)
		if col == tag || col == "" {
			return nil, errors.Errorf(
				"field %q of storage object %q has malformed %q annotation",
				field.Name, elem.Name(), _columnTag)
		}
		table.ColumnToType[col] = field.Type
		table.ColToField[col] = field.Name
	}

	if table.Name == "" || table.Key == nil {
		return nil, errors.Errorf(
			"storage object %q has no table annotation", elem.Name())
	}
	for _, pk := range table.Key.PartitionKeys {
		if _, ok := table.ColToField[pk]; !ok {
			return nil, errors.Errorf(
				"partition key %q of storage object %q has no column",
				pk, elem.Name())
		}
	}
	for _, ck := range table.Key.ClusteringKeys {
		if _, ok := table.ColToField[ck.Name]; !ok {
			return nil, errors.Errorf(
				"clustering key %q of storage object %q has no column",
				ck.Name, elem.Name())
		}
	}
	return table, nil
}

// parseObjectTag parses the `sql` annotation of the embedded base.Object
// field. The expected format is:
//   name=<table>, primaryKey=((PK1,PK2..), CK1, CK2..)
func parseObjectTag(tag string) (string, *base.PrimaryKey, error) {
	parts := strings.SplitN(tag, ",", 2)
	if len(parts) != 2 {
		return "", nil, errors.Errorf("malformed annotation %q", tag)
	}

	name := strings.TrimPrefix(strings.TrimSpace(parts[0]), _namePrefix)
	if name == strings.TrimSpace(parts[0]) || name == "" {
		return "", nil, errors.Errorf("missing table name in %q", tag)
	}

	pkPart := strings.TrimSpace(parts[1])
	pkStr := strings.TrimPrefix(pkPart, _primaryKeyPrefix)
	if pkStr == pkPart {
		return "", nil, errors.Errorf("missing primary key in %q", tag)
	}

	key, err := parsePrimaryKey(pkStr)
	if err != nil {
		return "", nil, err
	}
	return name, key, nil
}

// parsePrimaryKey parses a primary key of form ((PK1,PK2..), CK1, CK2..)
func parsePrimaryKey(s string) (*base.PrimaryKey, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "((") || !strings.HasSuffix(s, ")") {
		return nil, errors.Errorf("malformed primary key %q", s)
	}

	closeIdx := strings.Index(s, ")")
	partitionPart := s[len("(("):closeIdx]

	var partitionKeys []string
	for _, pk := range strings.Split(partitionPart, ",") {
		if pk = strings.TrimSpace(pk); pk != "" {
			partitionKeys = append(partitionKeys, pk)
		}
	}
	if len(partitionKeys) == 0 {
		return nil, errors.Errorf("empty partition key in %q", s)
	}

	rest := strings.TrimSuffix(s[closeIdx+1:], ")")
	var clusteringKeys []*base.ClusteringKey
	for _, ck := range strings.Split(rest, ",") {
		if ck = strings.TrimSpace(ck); ck != "" {
			clusteringKeys = append(clusteringKeys, &base.ClusteringKey{
				Name: ck,
			})
		}
	}

	return &base.PrimaryKey{
		PartitionKeys:  partitionKeys,
		ClusteringKeys: clusteringKeys,
	}, nil
}

// BuildObjectIndex builds a map of storage object type to Table. The ORM
// client uses this index to look up the schema of any object instance
// handed to it.
func BuildObjectIndex(
	objects []base.Object) (map[reflect.Type]*Table, error) {
	objectIndex := map[reflect.Type]*Table{}
	for _, o := range objects {
		table, err := TableFromObject(o)
		if err != nil {
			return nil, err
		}
		objectIndex[reflect.TypeOf(o).Elem()] = table
	}
	return objectIndex, nil
}

// GetRowFromObject builds a row (list of base.Column) from a storage object.
// Fields holding a nil optional value are omitted so that the store can
// assign them. If fieldsToUpdate is provided, only those object fields are
// included in the row.
func (t *Table) GetRowFromObject(
	e base.Object, fieldsToUpdate ...string) []base.Column {
	v := reflect.ValueOf(e).Elem()

	var selected map[string]bool
	if len(fieldsToUpdate) > 0 {
		selected = map[string]bool{}
		for _, f := range fieldsToUpdate {
			selected[f] = true
		}
	}

	row := []base.Column{}
	for col, fieldName := range t.ColToField {
		if selected != nil && !selected[fieldName] {
			continue
		}
		value, ok := columnValue(v.FieldByName(fieldName))
		if !ok {
			continue
		}
		row = append(row, base.Column{
			Name:  col,
			Value: value,
		})
	}
	return row
}

// GetKeyRowFromObject builds a primary key row (list of primary key
// base.Column) from a storage object. Key columns holding a nil optional
// value are omitted.
func (t *Table) GetKeyRowFromObject(e base.Object) []base.Column {
	keyRow := t.GetPartitionKeyRowFromObject(e)
	v := reflect.ValueOf(e).Elem()
	for _, ck := range t.Key.ClusteringKeys {
		value, ok := columnValue(v.FieldByName(t.ColToField[ck.Name]))
		if !ok {
			continue
		}
		keyRow = append(keyRow, base.Column{
			Name:  ck.Name,
			Value: value,
		})
	}
	return keyRow
}

// GetPartitionKeyRowFromObject builds a partition key row (list of partition
// key base.Column) from a storage object.
func (t *Table) GetPartitionKeyRowFromObject(
	e base.Object) []base.Column {
	v := reflect.ValueOf(e).Elem()
	keyRow := []base.Column{}
	for _, pk := range t.Key.PartitionKeys {
		value, ok := columnValue(v.FieldByName(t.ColToField[pk]))
		if !ok {
			continue
		}
		keyRow = append(keyRow, base.Column{
			Name:  pk,
			Value: value,
		})
	}
	return keyRow
}

// columnValue extracts the DB value of one object field. Optional types are
// unwrapped to their raw value; a nil optional yields ok == false and the
// column is left for the store to assign.
func columnValue(v reflect.Value) (interface{}, bool) {
	if base.IsOfTypeOptional(v) {
		if v.IsNil() {
			return nil, false
		}
		return base.ConvertFromOptionalToRawType(v), true
	}
	return v.Interface(), true
}

// SetObjectFromRow populates storage object fields from a row map as read
// from the DB. Columns missing from the row are left untouched.
func (t *Table) SetObjectFromRow(
	e base.Object, row map[string]interface{}) {
	v := reflect.ValueOf(e).Elem()

	for col, value := range row {
		fieldName, ok := t.ColToField[col]
		if !ok || value == nil {
			continue
		}
		fv := v.FieldByName(fieldName)
		typ := t.ColumnToType[col]

		if base.IsOfTypeOptional(fv) {
			rv := reflect.ValueOf(value)
			if rv.Kind() == reflect.Ptr {
				fv.Set(base.ConvertFromRawToOptionalType(rv, typ))
			} else {
				// raw value fetched by value, take its address for
				// the optional conversion
				pv := reflect.New(rv.Type())
				pv.Elem().Set(rv)
				fv.Set(base.ConvertFromRawToOptionalType(pv, typ))
			}
			continue
		}

		rv := reflect.ValueOf(value)
		if !rv.Type().ConvertibleTo(fv.Type()) {
			// This should only happen if we start using a new SQL type
			// without adding to the translation layer
			log.WithFields(log.Fields{"type": rv.Kind(), "column": col}).
				Infof("type not found")
			continue
		}
		fv.Set(rv.Convert(fv.Type()))
	}
}

// SetAssignedKey writes the store assigned identifier back onto the object's
// key field after a successful create. It is a no-op for objects whose key
// is supplied by the caller rather than assigned by the store.
func (t *Table) SetAssignedKey(e base.Object, id int64) {
	if len(t.Key.PartitionKeys) != 1 || len(t.Key.ClusteringKeys) != 0 {
		return
	}
	col := t.Key.PartitionKeys[0]
	if t.ColumnToType[col] != reflect.TypeOf(&base.OptionalUInt64{}) {
		return
	}
	fv := reflect.ValueOf(e).Elem().FieldByName(t.ColToField[col])
	if !fv.IsNil() {
		return
	}
	fv.Set(reflect.ValueOf(&base.OptionalUInt64{Value: uint64(id)}))
}
