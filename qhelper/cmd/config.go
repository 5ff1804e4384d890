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
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/duyanghao/qhelper/pkg/constants"
	"github.com/duyanghao/qhelper/pkg/utils/ratelimiter"
	"github.com/duyanghao/qhelper/scheduler"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

type ClientCfg struct {
	Backend      string `yaml:"backend,omitempty"`
	Host         string `yaml:"host,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	UseStartStop bool   `yaml:"useStartStop,omitempty"`
	RequestRate  string `yaml:"requestRate,omitempty"`
	Timeout      int    `yaml:"timeout,omitempty"`
}

type QueueCfg struct {
	CycleInterval  int                     `yaml:"cycleInterval,omitempty"`
	WarmupDuration int                     `yaml:"warmupDuration,omitempty"`
	ShutdownGrace  int                     `yaml:"shutdownGrace,omitempty"`
	WarmupScope    string                  `yaml:"warmupScope,omitempty"`
	Scoring        scheduler.ScoringPolicy `yaml:"scoring,omitempty"`
}

type Config struct {
	Verbose     bool      `yaml:"verbose,omitempty"`
	Redraw      bool      `yaml:"redraw,omitempty"`
	HistorySize int       `yaml:"historySize,omitempty"`
	ClientCfg   ClientCfg `yaml:"clientCfg,omitempty"`
	QueueCfg    QueueCfg  `yaml:"queueCfg,omitempty"`
}

// DefaultConfig returns the settings used when no settings file exists
func DefaultConfig() *Config {
	return &Config{
		HistorySize: constants.DefaultHistorySize,
		ClientCfg: ClientCfg{
			Backend:     "qbittorrent",
			Host:        constants.DefaultHost,
			RequestRate: constants.DefaultRequestRate,
			Timeout:     constants.DefaultRequestTimeout,
		},
		QueueCfg: QueueCfg{
			CycleInterval:  int(constants.DefaultCycleInterval / time.Second),
			WarmupDuration: int(constants.DefaultWarmupDuration / time.Second),
			ShutdownGrace:  int(constants.DefaultShutdownGrace / time.Second),
			WarmupScope:    string(scheduler.WarmupPaused),
			Scoring:        scheduler.DefaultScoringPolicy(),
		},
	}
}

// validate the configuration
func (c *Config) validate() error {
	if c.HistorySize <= 0 {
		return fmt.Errorf("Invalid history size (%d), please check ...", c.HistorySize)
	}
	if c.ClientCfg.Backend == "" || c.ClientCfg.Host == "" || c.ClientCfg.Timeout <= 0 {
		return fmt.Errorf("Invalid client configurations, please check ...")
	}
	if !ratelimiter.ValidateRateLimiter(c.ClientCfg.RequestRate) {
		return fmt.Errorf("Invalid request rate format, please check ...")
	}
	if c.QueueCfg.CycleInterval <= 0 || c.QueueCfg.WarmupDuration <= 0 || c.QueueCfg.ShutdownGrace <= 0 {
		return fmt.Errorf("Invalid queue intervals, please check ...")
	}
	if _, err := scheduler.ParseWarmupScope(c.QueueCfg.WarmupScope); err != nil {
		return err
	}
	return c.QueueCfg.Scoring.Validate()
}

func (c *Config) schedulerConfig() scheduler.Config {
	scope, _ := scheduler.ParseWarmupScope(c.QueueCfg.WarmupScope)
	return scheduler.Config{
		CycleInterval:  time.Duration(c.QueueCfg.CycleInterval) * time.Second,
		WarmupDuration: time.Duration(c.QueueCfg.WarmupDuration) * time.Second,
		ShutdownGrace:  time.Duration(c.QueueCfg.ShutdownGrace) * time.Second,
		WarmupScope:    scope,
		Scoring:        c.QueueCfg.Scoring,
	}
}

// LoadConfig parses the settings file over the defaults and returns
// an initialized Config object and an error object if any. A missing
// settings file is not an error.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to read configuration file: %s,error: %s", path, err)
		}
		log.Infof("Configuration file %s not found, using defaults", path)
	} else if err = yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("Failed to parse configuration,error: %s", err)
	}
	if err = c.validate(); err != nil {
		return nil, fmt.Errorf("Invalid configuration,error: %s", err)
	}
	return c, nil
}
