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
	"context"
	"database/sql"
	"database/sql/driver"
	"reflect"
	"strings"
	"time"

	"github.com/uber/petstore/pkg/storage/objects/base"
	"github.com/uber/petstore/pkg/storage/orm"
	"github.com/uber/petstore/pkg/storage/querybuilder"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	// operation tags for metrics
	create = "create"
	ifne   = "create_if_not_exists"
	get    = "get"
	getAll = "get_all"
	update = "update"
	del    = "delete"
)

// MySQL error numbers surfaced as distinct failure kinds. Other backends
// are classified by message since database/sql drivers expose no common
// error type.
const (
	_mysqlErrDupKeyname    = 1022
	_mysqlErrDupEntry      = 1062
	_mysqlErrDupUnique     = 1169
	_mysqlErrNoRefRow      = 1452
	_mysqlErrTruncated     = 1264
	_mysqlErrBadValue      = 1366
	_mysqlErrDataTooLong   = 1406
	_mysqlErrCheckViolated = 3819
)

// Config is the SQL connector config. The DSN and driver are consumed by
// whatever code opens the store handle; the connector itself never opens
// or closes a connection.
type Config struct {
	// Driver is the database/sql driver name, e.g. mysql. It also selects
	// the SQL dialect of composed statements (identifier quoting and the
	// insert conflict clause).
	Driver string `yaml:"driver"`
	// DSN locates the backing store,
	// e.g. petstore:petstore@tcp(localhost:3306)/pets
	DSN string `yaml:"dsn"`
	// StoreName tags metrics emitted for this store
	StoreName string `yaml:"store_name"`
	// DollarPlaceholders selects $N bind placeholders for drivers that do
	// not accept ?
	DollarPlaceholders bool `yaml:"dollar_placeholders"`
}

type sqlConnector struct {
	// implements orm.Connector interface
	orm.Connector
	// DB is the caller owned handle to the backing store
	DB *sqlx.DB
	// scope is the storage scope for metrics
	scope tally.Scope
	// scope is the storage scope for success metrics
	executeSuccessScope tally.Scope
	// scope is the storage scope for failure metrics
	executeFailScope tally.Scope
	// placeholder format applied to every statement before execution
	placeholder querybuilder.PlaceholderFormat

	// Conf is the SQL connector config for this store
	Conf *Config
}

// NewSQLConnector initializes a SQL Connector on a caller owned database
// handle. The caller is responsible for opening the handle before the first
// operation and closing it afterwards; the connector never does either.
func NewSQLConnector(
	db *sqlx.DB,
	config *Config,
	scope tally.Scope,
) orm.Connector {
	// create a storeScope for the store StoreName
	storeScope := scope.SubScope("sql").Tagged(
		map[string]string{"store": config.StoreName})

	placeholder := querybuilder.PlaceholderFormat(querybuilder.Question)
	if config.DollarPlaceholders {
		placeholder = querybuilder.Dollar
	}

	return &sqlConnector{
		DB:    db,
		scope: storeScope,
		executeSuccessScope: storeScope.Tagged(
			map[string]string{"result": "success"}),
		executeFailScope: storeScope.Tagged(
			map[string]string{"result": "fail"}),
		placeholder: placeholder,
		Conf:        config,
	}
}

// ensure that implementation (sqlConnector) satisfies the interface
var _ orm.Connector = (*sqlConnector)(nil)

// classifyError translates a driver error into one of the failure kinds the
// storage layer surfaces: AlreadyExists for uniqueness violations,
// FailedPrecondition for other constraint violations, Unavailable for a
// closed or unreachable handle, InvalidArgument for values the column type
// cannot represent. Anything unrecognized is surfaced unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if yarpcerrors.IsStatus(err) {
		return err
	}
	if err == sql.ErrNoRows {
		return yarpcerrors.NotFoundErrorf("row not found")
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) {
		return yarpcerrors.UnavailableErrorf(
			"store handle unavailable: %v", err)
	}

	var sqlErr *mysql.MySQLError
	if errors.As(err, &sqlErr) {
		switch sqlErr.Number {
		case _mysqlErrDupKeyname, _mysqlErrDupEntry, _mysqlErrDupUnique:
			return yarpcerrors.AlreadyExistsErrorf(
				"constraint violation: %v", err)
		case _mysqlErrNoRefRow, _mysqlErrCheckViolated:
			return yarpcerrors.FailedPreconditionErrorf(
				"constraint violation: %v", err)
		case _mysqlErrTruncated, _mysqlErrBadValue, _mysqlErrDataTooLong:
			return yarpcerrors.InvalidArgumentErrorf(
				"malformed attribute: %v", err)
		}
		return err
	}

	// message based classification for drivers without a common error type
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"),
		strings.Contains(msg, "Duplicate entry"):
		return yarpcerrors.AlreadyExistsErrorf("constraint violation: %v", err)
	case strings.Contains(msg, "constraint failed"):
		return yarpcerrors.FailedPreconditionErrorf(
			"constraint violation: %v", err)
	case strings.Contains(msg, "datatype mismatch"),
		strings.Contains(msg, "converting argument"),
		strings.Contains(msg, "unsupported type"):
		return yarpcerrors.InvalidArgumentErrorf(
			"malformed attribute: %v", err)
	case strings.Contains(msg, "database is closed"),
		strings.Contains(msg, "connection refused"):
		return yarpcerrors.UnavailableErrorf(
			"store handle unavailable: %v", err)
	}
	return err
}

// getSQLErrorTag gets an error tag for metrics based on the classified error.
// We cannot just use err.Error() as a tag because it contains invalid
// characters like = : etc. which will be rejected by M3
func getSQLErrorTag(err error) string {
	switch {
	case yarpcerrors.IsAlreadyExists(err):
		return "already_exists"
	case yarpcerrors.IsFailedPrecondition(err):
		return "constraint_violation"
	case yarpcerrors.IsNotFound(err):
		return "not_found"
	case yarpcerrors.IsUnavailable(err):
		return "unavailable"
	case yarpcerrors.IsInvalidArgument(err):
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// splitColumnNameValue is used to return list of column names and list of
// their corresponding value. Order is very important in this lists as they
// will be used separately when constructing the SQL statement.
func splitColumnNameValue(row []base.Column) (
	colNames []string, colValues []interface{}) {

	// Split row into two lists of column names and column values.
	// So for a location `i` in the list, the colNames[i] and colValues[i]
	// will represent row[i]
	for _, column := range row {
		colNames = append(colNames, column.Name)
		colValues = append(colValues, column.Value)
	}

	return colNames, colValues
}

// CreateIfNotExists creates a new row in DB if a row with the same primary
// key doesn't already exist.
func (c *sqlConnector) CreateIfNotExists(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
) error {
	colNames, colValues := splitColumnNameValue(row)

	stmt, err := InsertStmt(
		Table(e.Name),
		Columns(colNames),
		Values(colValues),
		IfNotExist(true),
		Dialect(c.Conf.Driver),
	)
	if err != nil {
		return err
	}
	stmt, err = c.placeholder.ReplacePlaceholders(stmt)
	if err != nil {
		return err
	}

	callStart := time.Now()
	res, err := c.DB.ExecContext(ctx, stmt, colValues...)
	if err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, ifne, err)
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		sendCounters(c.executeFailScope, e.Name, ifne, nil)
		return yarpcerrors.AlreadyExistsErrorf("item already exists")
	}

	sendLatency(c.scope, e.Name, ifne, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, ifne, nil)
	return nil
}

// Create creates a new row in DB. It returns the row identifier the store
// assigned, which is meaningful only when the key column was omitted from
// the row.
func (c *sqlConnector) Create(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
) (int64, error) {
	// split row into a list of names and values to compose the statement
	// using names and use values as bound arguments in the exec call, so
	// the order needs to be maintained.
	colNames, colValues := splitColumnNameValue(row)

	// Prepare insert statement
	stmt, err := InsertStmt(
		Table(e.Name),
		Columns(colNames),
		Values(colValues),
		Dialect(c.Conf.Driver),
	)
	if err != nil {
		return 0, err
	}
	stmt, err = c.placeholder.ReplacePlaceholders(stmt)
	if err != nil {
		return 0, err
	}

	callStart := time.Now()
	res, err := c.DB.ExecContext(ctx, stmt, colValues...)
	if err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, create, err)
		return 0, err
	}

	// the assigned identifier; drivers without auto assigned keys
	// report 0 here and the ORM layer skips the write back
	id, err := res.LastInsertId()
	if err != nil {
		id = 0
	}

	sendLatency(c.scope, e.Name, create, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, create, nil)
	return id, nil
}

// buildSelectStmt builds a select statement using the object definition and
// key columns. An empty key list selects every row of the table.
func (c *sqlConnector) buildSelectStmt(
	e *base.Definition,
	keyColNames []string,
	colNamesToRead []string,
	ordered bool,
) (string, error) {
	opts := []OptFunc{
		Table(e.Name),
		Columns(colNamesToRead),
		Conditions(keyColNames),
		Dialect(c.Conf.Driver),
	}
	if ordered {
		// order on the partition key so that rows come back in the order
		// the store assigned their identifiers
		opts = append(opts, OrderBy(e.Key.PartitionKeys))
	}

	stmt, err := SelectStmt(opts...)
	if err != nil {
		return "", err
	}
	return c.placeholder.ReplacePlaceholders(stmt)
}

// Get fetches a record from DB using primary keys.
// Returns a map describing a row from DB, key is columnName,
// value is columnValue.
func (c *sqlConnector) Get(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
	colNamesToRead ...string,
) (map[string]interface{}, error) {
	if len(colNamesToRead) == 0 {
		colNamesToRead = e.GetColumnsToRead()
	}

	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	stmt, err := c.buildSelectStmt(e, keyColNames, colNamesToRead, false)
	if err != nil {
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, err
	}

	callStart := time.Now()
	rows, err := c.DB.QueryContext(ctx, stmt, keyColValues...)
	if err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			err = classifyError(err)
			sendCounters(c.executeFailScope, e.Name, get, err)
			return nil, errors.Wrap(err, "row scan failed")
		}
		err = yarpcerrors.NotFoundErrorf(
			"%q has no row for given key", e.Name)
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, err
	}

	result := buildResultRow(e, colNamesToRead)
	if err := rows.Scan(result...); err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, errors.Wrap(err, "row scan failed")
	}

	sendLatency(c.scope, e.Name, get, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, get, nil)
	return getRowFromResult(e, colNamesToRead, result), nil
}

// GetAll fetches all rows from DB matching the given key columns.
// Returns an array of map[string]interface{}; the key of the map is the
// columnName, the value of the map is the columnValue. Rows come back
// ordered on the partition key.
func (c *sqlConnector) GetAll(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
) ([]map[string]interface{}, error) {
	colNamesToRead := e.GetColumnsToRead()

	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	stmt, err := c.buildSelectStmt(e, keyColNames, colNamesToRead, true)
	if err != nil {
		sendCounters(c.executeFailScope, e.Name, getAll, err)
		return nil, err
	}

	callStart := time.Now()
	rows, err := c.DB.QueryContext(ctx, stmt, keyColValues...)
	if err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, getAll, err)
		return nil, err
	}
	defer rows.Close()

	var result []map[string]interface{}
	for rows.Next() {
		row := buildResultRow(e, colNamesToRead)
		if err := rows.Scan(row...); err != nil {
			err = classifyError(err)
			sendCounters(c.executeFailScope, e.Name, getAll, err)
			return nil, errors.Wrap(err, "row scan failed")
		}
		result = append(result, getRowFromResult(e, colNamesToRead, row))
	}
	if err := rows.Err(); err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, getAll, err)
		return nil, err
	}

	sendLatency(c.scope, e.Name, getAll, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, getAll, nil)
	return result, nil
}

// Update updates an existing row in DB.
func (c *sqlConnector) Update(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
	keyCols []base.Column,
) error {
	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	colNames, colValues := splitColumnNameValue(row)

	// Prepare update statement
	stmt, err := UpdateStmt(
		Table(e.Name),
		Updates(colNames),
		Conditions(keyColNames),
		Dialect(c.Conf.Driver),
	)
	if err != nil {
		return err
	}
	stmt, err = c.placeholder.ReplacePlaceholders(stmt)
	if err != nil {
		return err
	}

	// list of values to be supplied in the statement
	updateVals := append(colValues, keyColValues...)

	callStart := time.Now()
	if _, err := c.DB.ExecContext(ctx, stmt, updateVals...); err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, update, err)
		return err
	}

	sendLatency(c.scope, e.Name, update, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, update, nil)
	return nil
}

// Delete deletes a record from DB using primary keys
func (c *sqlConnector) Delete(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
) error {
	keyColNames, keyColValues := splitColumnNameValue(keyCols)

	// Prepare delete statement
	stmt, err := DeleteStmt(
		Table(e.Name),
		Conditions(keyColNames),
		Dialect(c.Conf.Driver),
	)
	if err != nil {
		return err
	}
	stmt, err = c.placeholder.ReplacePlaceholders(stmt)
	if err != nil {
		return err
	}

	callStart := time.Now()
	if _, err := c.DB.ExecContext(ctx, stmt, keyColValues...); err != nil {
		err = classifyError(err)
		sendCounters(c.executeFailScope, e.Name, del, err)
		return err
	}

	sendLatency(c.scope, e.Name, del, time.Since(callStart))
	sendCounters(c.executeSuccessScope, e.Name, del, nil)
	return nil
}

// buildResultRow is used to allocate memory for the row to be populated by
// a SQL read operation based on what object fields are being read
func buildResultRow(e *base.Definition, columns []string) []interface{} {

	results := make([]interface{}, len(columns))

	for i, column := range columns {
		// get the type of the field from the ColumnToType mapping for the
		// object, so that we can allocate appropriate memory for this field
		typ := e.ColumnToType[column]

		switch typ.Kind() {
		case reflect.String:
			var value *string
			results[i] = &value
		case reflect.Int, reflect.Int32, reflect.Int64,
			reflect.Uint32, reflect.Uint64:
			// SQL integer columns scan through int64
			var value *int64
			results[i] = &value
		case reflect.Bool:
			var value *bool
			results[i] = &value
		case reflect.Float64:
			var value *float64
			results[i] = &value
		case reflect.Slice:
			var value *[]byte
			results[i] = &value
		case reflect.Ptr:
			// Special case for custom optional string type:
			// string type used in SQL
			// converted to/from custom type in ORM layer
			if typ == reflect.TypeOf(&base.OptionalString{}) {
				var value *string
				results[i] = &value
				break
			}
			// Special case for custom optional int type:
			// integer type used in SQL
			// converted to/from custom type in ORM layer
			if typ == reflect.TypeOf(&base.OptionalUInt64{}) {
				var value *int64
				results[i] = &value
				break
			}
			// for unrecognized pointer types, fall back to default logging
			fallthrough
		default:
			// This should only happen if we start using a new SQL type
			// without adding to the translation layer
			log.WithFields(log.Fields{"type": typ.Kind(), "column": column}).
				Infof("type not found")
		}
	}

	return results
}

// getRowFromResult translates a row read from SQL into a map keyed on column
// name to be interpreted by the base store client. Integer values of
// unsigned object fields are widened to uint64 the way the ORM layer
// expects them.
func getRowFromResult(
	e *base.Definition, columnNames []string, columnVals []interface{},
) map[string]interface{} {

	row := make(map[string]interface{}, len(columnNames))

	for i, columnName := range columnNames {
		var value interface{}

		switch rv := columnVals[i].(type) {
		case **int64:
			if *rv != nil {
				value = **rv
			}
		case **string:
			if *rv != nil {
				value = **rv
			}
		case **bool:
			if *rv != nil {
				value = **rv
			}
		case **float64:
			if *rv != nil {
				value = **rv
			}
		case **[]byte:
			if *rv != nil {
				value = **rv
			}
		default:
			// This should only happen if we start using a new SQL type
			// without adding to the translation layer
			log.WithFields(log.Fields{
				"data":   columnVals[i],
				"column": columnName}).Infof("type not found")
		}

		if v, ok := value.(int64); ok {
			switch e.ColumnToType[columnName] {
			case reflect.TypeOf(uint64(0)),
				reflect.TypeOf(uint32(0)),
				reflect.TypeOf(&base.OptionalUInt64{}):
				value = uint64(v)
			}
		}

		row[columnName] = value
	}
	return row
}

// helper function to record call latency metric
func sendLatency(
	scope tally.Scope,
	table, operation string,
	d time.Duration,
) {
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
	})
	s.Timer("execute_latency").Record(d)
}

// helper function to record statement success/failure metrics
func sendCounters(
	scope tally.Scope,
	table, operation string,
	err error,
) {
	errMsg := "none"
	if err != nil {
		errMsg = getSQLErrorTag(err)
	}
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
		"error":     errMsg,
	})
	s.Counter("execute").Inc(1)
}
