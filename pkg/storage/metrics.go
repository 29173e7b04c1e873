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

package storage

import (
	"github.com/uber-go/tally"
)

// CatMetrics tracks counters for the cats table accessed through the ORM
// layer
type CatMetrics struct {
	CatCreate     tally.Counter
	CatCreateFail tally.Counter

	CatGet      tally.Counter
	CatGetFail  tally.Counter
	CatNotFound tally.Counter

	CatGetAll     tally.Counter
	CatGetAllFail tally.Counter

	CatUpdate     tally.Counter
	CatUpdateFail tally.Counter

	CatDelete     tally.Counter
	CatDeleteFail tally.Counter

	CatSaveAll         tally.Counter
	CatSaveAllFail     tally.Counter
	CatSaveAllDuration tally.Timer
}

// Metrics is a struct for tracking all the counters in the storage layer
type Metrics struct {
	CatMetrics *CatMetrics
}

// NewMetrics returns a new Metrics struct, with all metrics initialized and
// rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	catScope := scope.SubScope("cat")
	catSuccessScope := catScope.Tagged(map[string]string{"result": "success"})
	catFailScope := catScope.Tagged(map[string]string{"result": "fail"})
	catNotFoundScope := catScope.Tagged(map[string]string{"result": "not_found"})

	catMetrics := &CatMetrics{
		CatCreate:     catSuccessScope.Counter("create"),
		CatCreateFail: catFailScope.Counter("create"),

		CatGet:      catSuccessScope.Counter("get"),
		CatGetFail:  catFailScope.Counter("get"),
		CatNotFound: catNotFoundScope.Counter("get"),

		CatGetAll:     catSuccessScope.Counter("get_all"),
		CatGetAllFail: catFailScope.Counter("get_all"),

		CatUpdate:     catSuccessScope.Counter("update"),
		CatUpdateFail: catFailScope.Counter("update"),

		CatDelete:     catSuccessScope.Counter("delete"),
		CatDeleteFail: catFailScope.Counter("delete"),

		CatSaveAll:         catSuccessScope.Counter("save_all"),
		CatSaveAllFail:     catFailScope.Counter("save_all"),
		CatSaveAllDuration: catScope.Timer("save_all_duration"),
	}

	return &Metrics{
		CatMetrics: catMetrics,
	}
}
