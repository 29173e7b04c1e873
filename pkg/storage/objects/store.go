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
	petstore "github.com/uber/petstore/pkg/storage"
	"github.com/uber/petstore/pkg/storage/connectors/sqldb"
	"github.com/uber/petstore/pkg/storage/objects/base"
	"github.com/uber/petstore/pkg/storage/orm"

	"github.com/jmoiron/sqlx"
	"github.com/uber-go/tally"
)

// Objs is a global list of storage objects. Every storage object will be
// added using an init method to this list. This list will be used when
// creating the ORM client.
var Objs []base.Object

// Store contains ORM client as well as metrics
type Store struct {
	oClient orm.Client
	metrics *petstore.Metrics
}

// NewSQLStore creates a new SQL storage client on a caller owned database
// handle. The handle stays owned by the caller: it must be open before the
// first operation and it is never closed by the store.
func NewSQLStore(
	db *sqlx.DB,
	config *sqldb.Config,
	scope tally.Scope,
) (*Store, error) {
	connector := sqldb.NewSQLConnector(db, config, scope)
	oclient, err := orm.NewClient(connector, Objs...)
	if err != nil {
		return nil, err
	}
	return &Store{
		oClient: oclient,
		metrics: petstore.NewMetrics(scope),
	}, nil
}
