// Copyright (c) 2016-2019 Uber Technologies, Inc.
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
package client

import (
	"context"
	"fmt"
)

var _factories = make(map[string]ClientFactory)

// ClientFactory creates torrent client gateway given its name.
type ClientFactory interface {
	Create(config interface{}) (Client, error)
}

// Register registers new Factory with corresponding client backend name.
func Register(name string, factory ClientFactory) {
	_factories[name] = factory
}

// getFactory returns client factory given backend name.
func getFactory(name string) (ClientFactory, error) {
	factory, ok := _factories[name]
	if !ok {
		return nil, fmt.Errorf("no client backend defined with name %s", name)
	}
	return factory, nil
}

func GetClientBackend(name string, config interface{}) (Client, error) {
	factory, err := getFactory(name)
	if err != nil {
		return nil, fmt.Errorf("get client backend factory: %s", err)
	}
	c, err := factory.Create(config)
	if err != nil {
		return nil, fmt.Errorf("create client backend: %w", err)
	}
	return c, nil
}

// Client defines the operations the queue controller consumes from a
// remote torrent client. The remote client is the single source of truth;
// implementations hold no torrent state of their own.
//
// Every failure, whatever its cause, is reported as *TransportError.
// All calls are synchronous.
type Client interface {
	// ListItems returns a snapshot of every item known to the client.
	// The snapshot may be empty.
	ListItems(ctx context.Context) ([]Item, error)

	// GetPreferences returns the client-wide preferences. Missing keys
	// fall back to the defaults documented on Preferences.
	GetPreferences(ctx context.Context) (Preferences, error)

	// Pause stops transfer of ids. An empty set never reaches the remote.
	Pause(ctx context.Context, ids []string) error

	// Resume starts transfer of ids. An empty set never reaches the
	// remote. Resuming an already active item is a no-op.
	Resume(ctx context.Context, ids []string) error
}
