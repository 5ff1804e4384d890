// Copyright 2020 duyanghao
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	"github.com/duyanghao/qhelper/lib/client"
	_ "github.com/duyanghao/qhelper/lib/client/qbittorrent"
	"github.com/duyanghao/qhelper/pkg/constants"
	"github.com/duyanghao/qhelper/pkg/utils/history"
	"github.com/duyanghao/qhelper/pkg/utils/process"
	"github.com/duyanghao/qhelper/scheduler"
	log "github.com/sirupsen/logrus"
)

// Options locates the on-disk state and console of the process.
type Options struct {
	SettingsFile   string
	PortRecordFile string
	Stdin          io.Reader
	Stdout         io.Writer
}

func DefaultOptions() *Options {
	return &Options{
		SettingsFile:   constants.SettingsFile,
		PortRecordFile: constants.PortRecordFile,
		Stdin:          os.Stdin,
		Stdout:         os.Stdout,
	}
}

// setupLogging configures the global logger and returns the history
// every entry is recorded into.
func setupLogging(config *Config, out io.Writer) (*history.History, error) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if config.Verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	h, err := history.NewHistory(config.HistorySize)
	if err != nil {
		return nil, err
	}
	log.AddHook(history.NewHook(h))
	if config.Redraw {
		// the console clock repaints from history
		log.SetOutput(ioutil.Discard)
	} else {
		log.SetOutput(out)
	}
	return h, nil
}

// Run starts the queue helper and returns the process exit code.
func Run(opts *Options) int {
	// create config
	log.Infof("Start to load config %s ...", opts.SettingsFile)
	config, err := LoadConfig(opts.SettingsFile)
	if err != nil {
		log.Errorf("Failed to load config: %v", err)
		return constants.CodeExitConfig
	}
	log.Infof("Load config %s successfully", opts.SettingsFile)

	h, err := setupLogging(config, opts.Stdout)
	if err != nil {
		log.Errorf("Failed to set up logging: %v", err)
		return constants.CodeExitConfig
	}

	record, err := LoadPortRecord(opts.PortRecordFile, opts.Stdin, opts.Stdout)
	if err != nil {
		log.Errorf("Failed to load port record: %v", err)
		return constants.CodeExitConfig
	}
	log.Infof("Using qBittorrent port: %d", record.Port)
	config.ClientCfg.Port = record.Port

	// start client gateway
	log.Infof("Start %s client ...", config.ClientCfg.Backend)
	c, err := client.GetClientBackend(config.ClientCfg.Backend, config.ClientCfg)
	if err != nil {
		log.Errorf("Start %s client failure: %v", config.ClientCfg.Backend, err)
		if client.IsTransportError(err) {
			return constants.CodeExitTransport
		}
		return constants.CodeExitConfig
	}
	log.Infof("Start %s client successfully", config.ClientCfg.Backend)

	var clock *process.ConsoleClock
	if config.Redraw {
		clock = process.NewConsoleClock(opts.Stdout, h, constants.DefaultRedrawLines)
	} else {
		clock = process.NewConsoleClock(opts.Stdout, nil, 0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := scheduler.NewController(c, clock, config.schedulerConfig())
	err = controller.Run(ctx)
	if ctx.Err() != nil {
		log.Infof("Stop queue helper successfully")
		return constants.CodeExitOK
	}
	log.Errorf("Queue helper exited: %v", err)
	return constants.CodeExitTransport
}
