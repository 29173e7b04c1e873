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
	"testing"

	"github.com/uber/petstore/pkg/storage/objects/base"
	"github.com/uber/petstore/pkg/storage/orm"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally"
	"go.uber.org/yarpc/yarpcerrors"
)

// testCatObject is the storage object used to drive the connector in tests
type testCatObject struct {
	base.Object `sql:"name=test_cats, primaryKey=((id))"`
	ID          *base.OptionalUInt64 `column:"name=id"`
	Name        string               `column:"name=name"`
	Breed       string               `column:"name=breed"`
	Age         int64                `column:"name=age"`
}

type SQLConnectorTestSuite struct {
	suite.Suite
	ctx        context.Context
	db         *sqlx.DB
	connector  orm.Connector
	definition *base.Definition
}

func (suite *SQLConnectorTestSuite) SetupTest() {
	suite.ctx = context.Background()

	db, err := sqlx.Open("sqlite3", ":memory:")
	suite.NoError(err)
	suite.db = db

	_, err = db.Exec(`CREATE TABLE "test_cats" (
		"id" INTEGER PRIMARY KEY AUTOINCREMENT,
		"name" TEXT,
		"breed" TEXT,
		"age" INTEGER)`)
	suite.NoError(err)

	table, err := orm.TableFromObject(&testCatObject{})
	suite.NoError(err)
	suite.definition = &table.Definition

	suite.connector = NewSQLConnector(
		db,
		&Config{Driver: "sqlite3", DSN: ":memory:", StoreName: "test"},
		tally.NoopScope,
	)
}

func (suite *SQLConnectorTestSuite) TearDownTest() {
	suite.db.Close()
}

func TestSQLConnectorTestSuite(t *testing.T) {
	suite.Run(t, new(SQLConnectorTestSuite))
}

func catRow(name, breed string, age int64) []base.Column {
	return []base.Column{
		{Name: "name", Value: name},
		{Name: "breed", Value: breed},
		{Name: "age", Value: age},
	}
}

func keyCols(id uint64) []base.Column {
	return []base.Column{{Name: "id", Value: id}}
}

// TestCreateAndGet tests creating rows with store assigned identifiers and
// reading them back by key
func (suite *SQLConnectorTestSuite) TestCreateAndGet() {
	id, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow("Maru", "scottish fold", 3))
	suite.NoError(err)
	suite.Equal(int64(1), id)

	id, err = suite.connector.Create(
		suite.ctx, suite.definition, catRow("Hana", "tortoiseshell", 1))
	suite.NoError(err)
	suite.Equal(int64(2), id)

	row, err := suite.connector.Get(
		suite.ctx, suite.definition, keyCols(1))
	suite.NoError(err)
	suite.Equal(uint64(1), row["id"])
	suite.Equal("Maru", row["name"])
	suite.Equal("scottish fold", row["breed"])
	suite.Equal(int64(3), row["age"])
}

// TestCreateIfNotExists tests that the conflict tolerant insert executes on
// the sqlite backend, inserts a missing row, and reports an existing one
func (suite *SQLConnectorTestSuite) TestCreateIfNotExists() {
	row := append(
		[]base.Column{{Name: "id", Value: uint64(1)}},
		catRow("Maru", "scottish fold", 3)...)

	err := suite.connector.CreateIfNotExists(suite.ctx, suite.definition, row)
	suite.NoError(err)

	// a second insert of the same key is reported, not executed
	err = suite.connector.CreateIfNotExists(suite.ctx, suite.definition, row)
	suite.Error(err)
	suite.True(yarpcerrors.IsAlreadyExists(err))

	rows, err := suite.connector.GetAll(suite.ctx, suite.definition, nil)
	suite.NoError(err)
	suite.Len(rows, 1)
}

// TestGetNotFound tests that reading a missing key surfaces a not found error
func (suite *SQLConnectorTestSuite) TestGetNotFound() {
	_, err := suite.connector.Get(
		suite.ctx, suite.definition, keyCols(99))
	suite.Error(err)
	suite.True(yarpcerrors.IsNotFound(err))
}

// TestGetSelectedColumns tests reading a subset of columns
func (suite *SQLConnectorTestSuite) TestGetSelectedColumns() {
	_, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow("Maru", "scottish fold", 3))
	suite.NoError(err)

	row, err := suite.connector.Get(
		suite.ctx, suite.definition, keyCols(1), "name", "age")
	suite.NoError(err)
	suite.Len(row, 2)
	suite.Equal("Maru", row["name"])
	suite.Equal(int64(3), row["age"])
}

// TestGetAllOrdered tests that GetAll with no key columns returns every row
// of the table in identifier order
func (suite *SQLConnectorTestSuite) TestGetAllOrdered() {
	names := []string{"Maru", "Hana", "Mimi"}
	for _, n := range names {
		_, err := suite.connector.Create(
			suite.ctx, suite.definition, catRow(n, "mixed", 2))
		suite.NoError(err)
	}

	rows, err := suite.connector.GetAll(
		suite.ctx, suite.definition, nil)
	suite.NoError(err)
	suite.Len(rows, len(names))
	for i, row := range rows {
		suite.Equal(uint64(i+1), row["id"])
		suite.Equal(names[i], row["name"])
	}
}

// TestCreateDuplicateKey tests that inserting a row carrying an already used
// key surfaces a uniqueness violation
func (suite *SQLConnectorTestSuite) TestCreateDuplicateKey() {
	row := append(
		[]base.Column{{Name: "id", Value: uint64(1)}},
		catRow("Maru", "scottish fold", 3)...)

	_, err := suite.connector.Create(suite.ctx, suite.definition, row)
	suite.NoError(err)

	_, err = suite.connector.Create(suite.ctx, suite.definition, row)
	suite.Error(err)
	suite.True(yarpcerrors.IsAlreadyExists(err))
}

// TestHostileValuesAreBound tests that values carrying quote characters or
// statement fragments are stored verbatim and read back unchanged
func (suite *SQLConnectorTestSuite) TestHostileValuesAreBound() {
	name := `O'Malley"; DROP TABLE test_cats; --`
	_, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow(name, "alley", 5))
	suite.NoError(err)

	row, err := suite.connector.Get(
		suite.ctx, suite.definition, keyCols(1))
	suite.NoError(err)
	suite.Equal(name, row["name"])

	// the table survived
	rows, err := suite.connector.GetAll(suite.ctx, suite.definition, nil)
	suite.NoError(err)
	suite.Len(rows, 1)
}

// TestUpdate tests updating selected columns of an existing row
func (suite *SQLConnectorTestSuite) TestUpdate() {
	_, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow("Maru", "scottish fold", 3))
	suite.NoError(err)

	err = suite.connector.Update(
		suite.ctx, suite.definition,
		[]base.Column{{Name: "age", Value: int64(4)}},
		keyCols(1))
	suite.NoError(err)

	row, err := suite.connector.Get(
		suite.ctx, suite.definition, keyCols(1))
	suite.NoError(err)
	suite.Equal(int64(4), row["age"])
	suite.Equal("Maru", row["name"])
}

// TestDelete tests deleting a row by key
func (suite *SQLConnectorTestSuite) TestDelete() {
	_, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow("Maru", "scottish fold", 3))
	suite.NoError(err)

	err = suite.connector.Delete(suite.ctx, suite.definition, keyCols(1))
	suite.NoError(err)

	_, err = suite.connector.Get(suite.ctx, suite.definition, keyCols(1))
	suite.True(yarpcerrors.IsNotFound(err))
}

// TestClosedHandle tests that operations on a closed handle surface an
// unavailable error
func (suite *SQLConnectorTestSuite) TestClosedHandle() {
	suite.NoError(suite.db.Close())

	_, err := suite.connector.Create(
		suite.ctx, suite.definition, catRow("Maru", "scottish fold", 3))
	suite.Error(err)
	suite.True(yarpcerrors.IsUnavailable(err))
}

// TestClassifyError tests translating driver errors into the failure kinds
// the storage layer surfaces
func TestClassifyError(t *testing.T) {
	tt := []struct {
		err   error
		check func(error) bool
		tag   string
	}{
		{
			err:   sql.ErrNoRows,
			check: yarpcerrors.IsNotFound,
			tag:   "not_found",
		},
		{
			err:   sql.ErrConnDone,
			check: yarpcerrors.IsUnavailable,
			tag:   "unavailable",
		},
		{
			err:   driver.ErrBadConn,
			check: yarpcerrors.IsUnavailable,
			tag:   "unavailable",
		},
		{
			err:   mysql.ErrInvalidConn,
			check: yarpcerrors.IsUnavailable,
			tag:   "unavailable",
		},
		{
			err:   &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
			check: yarpcerrors.IsAlreadyExists,
			tag:   "already_exists",
		},
		{
			err:   &mysql.MySQLError{Number: 1452, Message: "no referenced row"},
			check: yarpcerrors.IsFailedPrecondition,
			tag:   "constraint_violation",
		},
		{
			err:   &mysql.MySQLError{Number: 1366, Message: "incorrect value"},
			check: yarpcerrors.IsInvalidArgument,
			tag:   "invalid_argument",
		},
		{
			err:   errors.New("UNIQUE constraint failed: test_cats.id"),
			check: yarpcerrors.IsAlreadyExists,
			tag:   "already_exists",
		},
		{
			err:   errors.New("CHECK constraint failed: age"),
			check: yarpcerrors.IsFailedPrecondition,
			tag:   "constraint_violation",
		},
		{
			err:   errors.New("sql: converting argument $1 type"),
			check: yarpcerrors.IsInvalidArgument,
			tag:   "invalid_argument",
		},
		{
			err:   errors.New("sql: database is closed"),
			check: yarpcerrors.IsUnavailable,
			tag:   "unavailable",
		},
	}

	for _, tc := range tt {
		err := classifyError(tc.err)
		if !tc.check(err) {
			t.Errorf("classifyError(%v) = %v, want %s", tc.err, err, tc.tag)
		}
		if got := getSQLErrorTag(err); got != tc.tag {
			t.Errorf("getSQLErrorTag(%v) = %q, want %q", err, got, tc.tag)
		}
	}

	// nil stays nil, recognized statuses pass through, everything else is
	// surfaced unchanged
	if classifyError(nil) != nil {
		t.Error("classifyError(nil) != nil")
	}
	status := yarpcerrors.AlreadyExistsErrorf("exists")
	if classifyError(status) != status {
		t.Error("classifyError should pass yarpc statuses through")
	}
	unknown := errors.New("something else entirely")
	if classifyError(unknown) != unknown {
		t.Error("classifyError should surface unknown errors unchanged")
	}
	if got := getSQLErrorTag(unknown); got != "unknown" {
		t.Errorf("getSQLErrorTag(unknown) = %q", got)
	}
}

// TestSplitColumnNameValue tests splitting a row into name and value lists
// preserving positions
func TestSplitColumnNameValue(t *testing.T) {
	names, vals := splitColumnNameValue(catRow("Maru", "scottish fold", 3))
	if len(names) != 3 || len(vals) != 3 {
		t.Fatalf("unexpected lengths %d %d", len(names), len(vals))
	}
	for i, want := range []string{"name", "breed", "age"} {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
	if vals[0] != "Maru" || vals[1] != "scottish fold" || vals[2] != int64(3) {
		t.Errorf("unexpected values %v", vals)
	}
}
