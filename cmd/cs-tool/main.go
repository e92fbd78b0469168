// Copyright 2022 ColStream Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/colstream/colstream/pkg/common/moerr"
	"github.com/colstream/colstream/pkg/config"
	"github.com/colstream/colstream/pkg/logutil"
	"github.com/colstream/colstream/pkg/vm/engine/kvstore"

	"github.com/fagongzi/util/format"
)

const defaultConfigFile = "./cs.toml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(-1)
	}

	var err error
	switch os.Args[1] {
	case "load":
		err = runLoad(os.Args[2:])
	case "tables":
		err = runTables(os.Args[2:])
	case "distinct":
		err = runDistinct(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Printf("unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(-1)
	}
	if err != nil {
		logutil.Errorf("cs-tool %s: %v", os.Args[1], err)
		os.Exit(-1)
	}
}

func usage() {
	fmt.Printf("usage:\n")
	fmt.Printf("  cs-tool load -cfg cs.toml [-table t] file.csv ...\n")
	fmt.Printf("  cs-tool tables -cfg cs.toml\n")
	fmt.Printf("  cs-tool distinct -cfg cs.toml [-keys a,b] [-out file.csv] [input ...]\n")
}

// loadConfig parses the file and points the global logger at the
// configured sink, so everything after it logs the configured way.
func loadConfig(file string) (*config.Config, error) {
	cfg, err := config.ParseConfig(file)
	if err != nil {
		return nil, err
	}
	logutil.SetupLogger(&cfg.Log)
	return cfg, nil
}

func openStore(cfg *config.Config) (*kvstore.Store, error) {
	if cfg.Store.Path == "" {
		return nil, moerr.NewBadConfigNoCtx("no store path")
	}
	return kvstore.Open(cfg.Store.Path)
}

// runTables lists every table of the store in name order, one line per
// table with its column schema and block count.
func runTables(args []string) error {
	flags := flag.NewFlagSet("tables", flag.ExitOnError)
	configFile := flags.String("cfg", defaultConfigFile, "toml configuration of the tool")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	for _, def := range store.Tables() {
		blocks, err := store.BlockCount(ctx, def.Name)
		if err != nil {
			return err
		}
		cols := make([]string, len(def.Attrs))
		for i, attr := range def.Attrs {
			cols[i] = attr + " " + def.Types[i].String()
		}
		fmt.Printf("%s (%s), %s blocks\n",
			def.Name, strings.Join(cols, ", "), format.Uint64ToString(blocks))
	}
	return nil
}
