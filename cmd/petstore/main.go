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

package main

import (
	"context"
	"os"

	"github.com/uber/petstore/pkg/common/config"
	"github.com/uber/petstore/pkg/common/logging"
	"github.com/uber/petstore/pkg/storage/objects"

	_ "github.com/go-sql-driver/mysql" // Pull in MySQL driver for sqlx
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string

	app = kingpin.New("petstore", "Petstore record mapper demo")

	debug = app.Flag(
		"debug", "enable debug mode (print full json responses)").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(
		&logging.LogFieldFormatter{
			Formatter: &log.JSONFormatter{},
			Fields: log.Fields{
				"app": app.Name,
			},
		},
	)

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	log.WithField("files", *cfgFiles).Info("Loading petstore config")
	var cfg Config
	if err := config.Parse(&cfg, *cfgFiles...); err != nil {
		log.WithField("error", err).Fatal("Cannot parse yaml config")
	}

	log.WithField("config", cfg).Info("Loaded petstore configuration")

	// The database handle is owned here: opened before the first storage
	// operation, closed on the way out, never by the storage layer.
	db, err := sqlx.Open(cfg.Storage.SQL.Driver, cfg.Storage.SQL.DSN)
	if err != nil {
		log.WithField("error", err).Fatal("Cannot open database handle")
	}
	defer db.Close()

	store, err := objects.NewSQLStore(db, &cfg.Storage.SQL, tally.NoopScope)
	if err != nil {
		log.WithField("error", err).Fatal("Cannot create store")
	}

	ctx := context.Background()
	catOps := objects.NewCatOps(store)

	registry := objects.NewRegistry()
	objects.NewCat(registry, "Maru", "scottish fold", 3)
	objects.NewCat(registry, "Hana", "tortoiseshell", 1)

	if err := catOps.SaveAll(ctx, registry); err != nil {
		log.WithField("error", err).Fatal("Cannot save registry")
	}

	cats, err := catOps.GetAll(ctx)
	if err != nil {
		log.WithField("error", err).Fatal("Cannot list cats")
	}
	for _, cat := range cats {
		log.WithFields(log.Fields{
			"id":    cat.ID.UInt64(),
			"name":  cat.Name,
			"breed": cat.Breed,
			"age":   cat.Age,
		}).Info("cat")
	}
}
