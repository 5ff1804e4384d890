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
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/duyanghao/qhelper/lib/client"
	"github.com/duyanghao/qhelper/pkg/constants"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var _ client.Client = &Client{}

// ListItems fetches /torrents/info
func (c *Client) ListItems(ctx context.Context) ([]client.Item, error) {
	const endpoint = "/torrents/info"
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeItems(endpoint, body)
}

// GetPreferences fetches /app/preferences
func (c *Client) GetPreferences(ctx context.Context) (client.Preferences, error) {
	const endpoint = "/app/preferences"
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return client.Preferences{}, err
	}
	return decodePreferences(endpoint, body)
}

// Pause stops ids; an empty set sends nothing
func (c *Client) Pause(ctx context.Context, ids []string) error {
	return c.command(ctx, c.pauseEndpoint(), ids)
}

// Resume starts ids; an empty set sends nothing
func (c *Client) Resume(ctx context.Context, ids []string) error {
	return c.command(ctx, c.resumeEndpoint(), ids)
}

// Login opens a WebUI session; the SID cookie is kept in the client's jar.
func (c *Client) Login(ctx context.Context) error {
	const endpoint = "/auth/login"
	form := url.Values{
		"username": {c.config.Username},
		"password": {c.config.Password},
	}
	body, err := c.do(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) != "Ok." {
		return &client.TransportError{Op: http.MethodPost, Endpoint: endpoint, Err: errors.New("login rejected")}
	}
	log.Infof("Login to qbittorrent as %s successfully", c.config.Username)
	return nil
}

func (c *Client) command(ctx context.Context, endpoint string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	form := url.Values{"hashes": {strings.Join(ids, "|")}}
	_, err := c.do(ctx, http.MethodPost, endpoint, form)
	return err
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	fail := func(status int, err error) error {
		return &client.TransportError{Op: method, Endpoint: endpoint, StatusCode: status, Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(0, err)
	}
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fail(0, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Referer", c.baseURL)
	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	// close the connection to reuse it
	defer rsp.Body.Close()
	body, err := ioutil.ReadAll(rsp.Body)
	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		return nil, fail(rsp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}
	if err != nil {
		return nil, fail(rsp.StatusCode, err)
	}
	log.Debugf("%s %s: %d", method, endpoint, rsp.StatusCode)
	return body, nil
}

func decodeItems(endpoint string, body []byte) ([]client.Item, error) {
	malformed := func(err error) error {
		return &client.TransportError{Op: http.MethodGet, Endpoint: endpoint, Err: fmt.Errorf("malformed payload: %v", err)}
	}
	if !gjson.ValidBytes(body) {
		return nil, malformed(errors.New("invalid json"))
	}
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, malformed(errors.New("expected an array"))
	}
	var (
		items   []client.Item
		itemErr error
	)
	result.ForEach(func(_, t gjson.Result) bool {
		item, err := decodeItem(t)
		if err != nil {
			itemErr = err
			return false
		}
		items = append(items, item)
		return true
	})
	if itemErr != nil {
		return nil, malformed(itemErr)
	}
	return items, nil
}

func decodeItem(t gjson.Result) (client.Item, error) {
	if !t.IsObject() {
		return client.Item{}, errors.New("expected an object")
	}
	var h metainfo.Hash
	if err := h.FromHexString(t.Get("hash").String()); err != nil {
		return client.Item{}, fmt.Errorf("bad hash %q: %v", t.Get("hash").String(), err)
	}
	item := client.Item{
		ID:           h.HexString(),
		Name:         t.Get("name").String(),
		State:        client.State(t.Get("state").String()),
		Progress:     t.Get("progress").Float(),
		Availability: t.Get("availability").Float(),
		ETA:          constants.UnknownETA,
		Size:         t.Get("size").Int(),
		Ratio:        t.Get("ratio").Float(),
	}
	if eta := t.Get("eta"); eta.Exists() {
		item.ETA = eta.Int()
	}
	return item, nil
}

func decodePreferences(endpoint string, body []byte) (client.Preferences, error) {
	malformed := func(err error) error {
		return &client.TransportError{Op: http.MethodGet, Endpoint: endpoint, Err: fmt.Errorf("malformed payload: %v", err)}
	}
	if !gjson.ValidBytes(body) {
		return client.Preferences{}, malformed(errors.New("invalid json"))
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return client.Preferences{}, malformed(errors.New("expected an object"))
	}
	prefs := client.DefaultPreferences()
	if v := result.Get("max_active_downloads"); v.Exists() {
		if v.Type != gjson.Number {
			return client.Preferences{}, malformed(fmt.Errorf("max_active_downloads %q is not a number", v.Raw))
		}
		prefs.MaxActiveDownloads = int(v.Int())
	}
	if result.Get("max_ratio_enabled").Bool() {
		v := result.Get("max_ratio")
		if v.Exists() && v.Type != gjson.Number {
			return client.Preferences{}, malformed(fmt.Errorf("max_ratio %q is not a number", v.Raw))
		}
		if v.Exists() && v.Float() >= 0 {
			prefs.MaxRatio = v.Float()
		}
	}
	return prefs, nil
}
