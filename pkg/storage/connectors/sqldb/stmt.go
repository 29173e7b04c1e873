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

package sqldb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

const (
	// table is used to substitute Table in template with actual table name
	table = "Table"
	// values is used to substitute Values in template with column values
	values = "Values"
	// columns is used to substitute Columns in template with column names
	columns = "Columns"
	// conditions is used to indicate = conditions in the query
	conditions = "Conditions"
	// updates is used to indicate the SET clause of an update query
	updates = "Updates"
	// order is used to indicate the ORDER BY clause of a select query
	order = "Order"
	// ifNotExist is used to make an insert tolerate an existing row
	ifNotExist = "IfNotExist"
	// dialect selects identifier quoting and the insert conflict clause
	dialect = "Dialect"

	// mysqlDialect quotes identifiers with backticks and renders
	// INSERT IGNORE for the conflict clause
	mysqlDialect = "mysql"
	// ansiDialect quotes identifiers with double quotes and renders the
	// sqlite INSERT OR IGNORE conflict clause
	ansiDialect = "ansi"

	// insertTemplate is used to construct an insert statement. Values are
	// never substituted into the statement text, only ? placeholders.
	insertTemplate = `INSERT{{IgnoreFunc .IfNotExist .Dialect}}` +
		` INTO {{QuoteFunc .Table .Dialect}}` +
		` ({{ColumnFunc .Columns .Dialect ", "}})` +
		` VALUES ({{QuestionMark .Values ", "}});`

	// selectTemplate is used to construct a select statement
	selectTemplate = `SELECT {{ColumnFunc .Columns .Dialect ", "}}` +
		` FROM {{QuoteFunc .Table .Dialect}}` +
		`{{WhereFunc .Conditions}}` +
		`{{ConditionsFunc .Conditions .Dialect " AND "}}` +
		`{{OrderFunc .Order .Dialect}};`

	// updateTemplate is used to construct an update statement
	updateTemplate = `UPDATE {{QuoteFunc .Table .Dialect}}` +
		` SET {{ConditionsFunc .Updates .Dialect ", "}}` +
		`{{WhereFunc .Conditions}}` +
		`{{ConditionsFunc .Conditions .Dialect " AND "}};`

	// deleteTemplate is used to construct a delete statement
	deleteTemplate = `DELETE FROM {{QuoteFunc .Table .Dialect}}` +
		`{{WhereFunc .Conditions}}` +
		`{{ConditionsFunc .Conditions .Dialect " AND "}};`
)

var (
	// function map for populating SQL templates
	funcMap = template.FuncMap{
		"QuoteFunc":      quoteIdentifier,
		"ColumnFunc":     columnFunc,
		"QuestionMark":   questionMarkFunc,
		"ConditionsFunc": conditionsFunc,
		"WhereFunc":      whereFunc,
		"OrderFunc":      orderFunc,
		"IgnoreFunc":     ignoreFunc,
	}

	// insert SQL statement template implementation
	insertTmpl = template.Must(
		template.New("insert").Funcs(funcMap).Parse(insertTemplate))
	// select SQL statement template implementation
	selectTmpl = template.Must(
		template.New("select").Funcs(funcMap).Parse(selectTemplate))
	// update SQL statement template implementation
	updateTmpl = template.Must(
		template.New("update").Funcs(funcMap).Parse(updateTemplate))
	// delete SQL statement template implementation
	deleteTmpl = template.Must(
		template.New("delete").Funcs(funcMap).Parse(deleteTemplate))
)

// quoteIdentifier quotes one identifier for the given dialect. MySQL parses
// double quoted identifiers as string literals unless the session sets
// ANSI_QUOTES, so it gets backticks.
func quoteIdentifier(s, d string) string {
	if d == mysqlDialect {
		return "`" + strings.Replace(s, "`", "``", -1) + "`"
	}
	return strconv.Quote(s)
}

// columnFunc quotes and joins a list of column names
func columnFunc(cols []string, d, sep string) string {
	quoCs := make([]string, len(cols))
	for i, c := range cols {
		quoCs[i] = quoteIdentifier(c, d)
	}
	return strings.Join(quoCs, sep)
}

// questionMarkFunc adds ? to the insert statement in place of values to be
// inserted
func questionMarkFunc(qs []interface{}, sep string) string {
	questions := make([]string, len(qs))
	for i := range qs {
		questions[i] = "?"
	}
	return strings.Join(questions, sep)
}

// conditionsFunc adds a =? condition to the statement
func conditionsFunc(conds []string, d, sep string) string {
	cstrs := make([]string, len(conds))
	for i, cond := range conds {
		cstrs[i] = fmt.Sprintf("%s=?", quoteIdentifier(cond, d))
	}
	return strings.Join(cstrs, sep)
}

// whereFunc adds where clause to the statement
func whereFunc(conds []string) string {
	if len(conds) > 0 {
		return " WHERE "
	}
	return ""
}

// orderFunc adds an order by clause to the select statement
func orderFunc(cols []string, d string) string {
	if len(cols) == 0 {
		return ""
	}
	return " ORDER BY " + columnFunc(cols, d, ", ")
}

// ignoreFunc makes the insert statement tolerate an existing row using the
// conflict clause of the dialect
func ignoreFunc(ifNotExist bool, d string) string {
	if !ifNotExist {
		return ""
	}
	if d == mysqlDialect {
		return " IGNORE"
	}
	return " OR IGNORE"
}

// Option to compose a sql statement
type Option map[string]interface{}

// OptFunc is the interface to set option
type OptFunc func(Option)

// Table sets the `table` to the sql statement
func Table(v string) OptFunc {
	return func(opt Option) {
		opt[table] = v
	}
}

// Columns sets the `columns` clause to the sql statement
func Columns(v []string) OptFunc {
	return func(opt Option) {
		opt[columns] = v
	}
}

// Values sets the `values` clause to the sql statement
func Values(v []interface{}) OptFunc {
	return func(opt Option) {
		opt[values] = v
	}
}

// Conditions sets the `where` clause to the sql statement
func Conditions(v []string) OptFunc {
	return func(opt Option) {
		opt[conditions] = v
	}
}

// Updates sets the `set` clause to the sql statement
func Updates(v []string) OptFunc {
	return func(opt Option) {
		opt[updates] = v
	}
}

// OrderBy sets the `order by` clause to the sql statement
func OrderBy(v []string) OptFunc {
	return func(opt Option) {
		opt[order] = v
	}
}

// IfNotExist makes the insert tolerate an existing row
func IfNotExist(v bool) OptFunc {
	return func(opt Option) {
		opt[ifNotExist] = v
	}
}

// Dialect selects the SQL dialect of the statement from the database/sql
// driver name. Drivers other than mysql get ANSI double quoted identifiers.
func Dialect(driver string) OptFunc {
	return func(opt Option) {
		if driver == mysqlDialect {
			opt[dialect] = mysqlDialect
			return
		}
		opt[dialect] = ansiDialect
	}
}

func newOption() Option {
	return Option{
		table:      "",
		columns:    []string{},
		values:     []interface{}{},
		conditions: []string{},
		updates:    []string{},
		order:      []string{},
		ifNotExist: false,
		dialect:    ansiDialect,
	}
}

// InsertStmt creates insert statement
func InsertStmt(opts ...OptFunc) (string, error) {
	var bb bytes.Buffer
	option := newOption()
	for _, opt := range opts {
		opt(option)
	}
	err := insertTmpl.Execute(&bb, option)
	return bb.String(), err
}

// SelectStmt creates select statement
func SelectStmt(opts ...OptFunc) (string, error) {
	var bb bytes.Buffer
	option := newOption()
	for _, opt := range opts {
		opt(option)
	}
	err := selectTmpl.Execute(&bb, option)
	return bb.String(), err
}

// UpdateStmt creates update statement
func UpdateStmt(opts ...OptFunc) (string, error) {
	var bb bytes.Buffer
	option := newOption()
	for _, opt := range opts {
		opt(option)
	}
	err := updateTmpl.Execute(&bb, option)
	return bb.String(), err
}

// DeleteStmt creates delete statement
func DeleteStmt(opts ...OptFunc) (string, error) {
	var bb bytes.Buffer
	option := newOption()
	for _, opt := range opts {
		opt(option)
	}
	err := deleteTmpl.Execute(&bb, option)
	return bb.String(), err
}
