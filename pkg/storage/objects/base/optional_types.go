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

package base

import (
	"reflect"
)

// OptionalString type can be used for primary key of type string
// to be evaluated as either nil or some string value
// different than empty string
type OptionalString struct {
	Value string
}

// NewOptionalString returns either new *OptionalString or nil
func NewOptionalString(v interface{}) *OptionalString {
	s, ok := v.(string)
	if ok && len(s) > 0 {
		return &OptionalString{Value: s}
	}
	return nil
}

// String for *OptionalString type
func (s *OptionalString) String() string {
	return s.Value
}

// OptionalUInt64 type can be used for primary key of type uint64
// to be evaluated as either nil or some store assigned value.
// The identifier column of a storage object stays nil until the
// store assigns it on first create.
type OptionalUInt64 struct {
	Value uint64
}

// NewOptionalUInt64 returns either new *OptionalUInt64 or nil
func NewOptionalUInt64(v interface{}) *OptionalUInt64 {
	switch i := v.(type) {
	case uint64:
		return &OptionalUInt64{Value: i}
	case int64:
		return &OptionalUInt64{Value: uint64(i)}
	case int:
		return &OptionalUInt64{Value: uint64(i)}
	}
	return nil
}

// UInt64 for *OptionalUInt64 type
func (u *OptionalUInt64) UInt64() uint64 {
	return u.Value
}

// IsOfTypeOptional returns whether a value is of type custom optional
func IsOfTypeOptional(value reflect.Value) bool {
	switch value.Type() {
	case reflect.TypeOf(&OptionalString{}), reflect.TypeOf(&OptionalUInt64{}):
		return true
	default:
		return false
	}
}

// ConvertFromOptionalToRawType returns an interface of raw type
// understandable by the DB layer, extracted from a custom
// optional type
func ConvertFromOptionalToRawType(value reflect.Value) interface{} {
	switch value.Type() {
	case reflect.TypeOf(&OptionalUInt64{}):
		return value.Interface().(*OptionalUInt64).UInt64()
	default:
		return value.Interface().(*OptionalString).String()
	}
}

// ConvertFromRawToOptionalType returns a value representing an
// optional type built from the raw type fetched from DB
func ConvertFromRawToOptionalType(
	value reflect.Value, typ reflect.Type) reflect.Value {
	if typ == reflect.TypeOf(&OptionalUInt64{}) {
		return reflect.ValueOf(
			&OptionalUInt64{
				Value: reflect.Indirect(value).Uint(),
			})
	}
	return reflect.ValueOf(
		&OptionalString{
			Value: reflect.Indirect(value).String(),
		})
}
