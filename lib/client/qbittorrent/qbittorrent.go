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
package qbittorrent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/duyanghao/qhelper/lib/client"
	"github.com/duyanghao/qhelper/pkg/constants"
	"github.com/duyanghao/qhelper/pkg/utils/ratelimiter"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"
)

const _qbittorrent = "qbittorrent"

func init() {
	client.Register(_qbittorrent, &factory{})
}

// Config holds connection settings of a qBittorrent WebUI.
type Config struct {
	Host         string `yaml:"host,omitempty"`
	Port         int    `yaml:"port,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	UseStartStop bool   `yaml:"useStartStop,omitempty"`
	RequestRate  string `yaml:"requestRate,omitempty"`
	Timeout      int    `yaml:"timeout,omitempty"`
}

type factory struct{}

func (f *factory) Create(confRaw interface{}) (client.Client, error) {
	confBytes, err := yaml.Marshal(confRaw)
	if err != nil {
		return nil, errors.New("marshal qbittorrent config")
	}
	var config Config
	if err := yaml.Unmarshal(confBytes, &config); err != nil {
		return nil, errors.New("unmarshal qbittorrent config")
	}
	c, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	if config.Username != "" {
		ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
		defer cancel()
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Client implements a client.Client for the qBittorrent WebUI API.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option allows setting optional Client parameters.
type Option func(c *Client)

// WithHTTPClient replaces the default http client. Its cookie jar, if any,
// carries the login session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Client for qBittorrent.
func NewClient(config Config, opts ...Option) (*Client, error) {
	if config.Host == "" {
		config.Host = constants.DefaultHost
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, fmt.Errorf("Invalid qbittorrent port (%d)", config.Port)
	}
	if config.RequestRate == "" {
		config.RequestRate = constants.DefaultRequestRate
	}
	if !ratelimiter.ValidateRateLimiter(config.RequestRate) {
		return nil, fmt.Errorf("Invalid request rate (%s)", config.RequestRate)
	}
	if config.Timeout <= 0 {
		config.Timeout = constants.DefaultRequestTimeout
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	c := &Client{
		config:  config,
		baseURL: fmt.Sprintf("http://%s:%d/api/v2", config.Host, config.Port),
		limiter: ratelimiter.NewLimiter(config.RequestRate, 1),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: time.Duration(config.Timeout) * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	log.Debugf("qbittorrent client endpoint: %s", c.baseURL)
	return c, nil
}

func (c *Client) pauseEndpoint() string {
	if c.config.UseStartStop {
		return "/torrents/stop"
	}
	return "/torrents/pause"
}

func (c *Client) resumeEndpoint() string {
	if c.config.UseStartStop {
		return "/torrents/start"
	}
	return "/torrents/resume"
}
