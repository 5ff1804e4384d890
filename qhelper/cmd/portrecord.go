package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// PortRecord is the persisted WebUI port, stored as {"port": <integer>}
type PortRecord struct {
	Port int `json:"port"`
}

func validPort(port int64) bool {
	return port > 0 && port <= 65535
}

// LoadPortRecord reads the record at path. When the file or its port is
// missing the operator is asked on in and the answer is written once,
// keeping any other keys of an existing record.
func LoadPortRecord(path string, in io.Reader, out io.Writer) (*PortRecord, error) {
	fields := map[string]json.RawMessage{}
	contents, err := ioutil.ReadFile(path)
	switch {
	case err == nil:
		if !gjson.ValidBytes(contents) {
			return nil, fmt.Errorf("Failed to parse port record: %s", path)
		}
		// older records stored the port as a string
		if port := gjson.GetBytes(contents, "port"); port.Exists() {
			if !validPort(port.Int()) {
				return nil, fmt.Errorf("Invalid port %q in %s", port.String(), path)
			}
			return &PortRecord{Port: int(port.Int())}, nil
		}
		if err := json.Unmarshal(contents, &fields); err != nil {
			return nil, fmt.Errorf("Port record %s is not an object,error: %s", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("Failed to read port record: %s,error: %s", path, err)
	}

	port, err := promptPort(in, out)
	if err != nil {
		return nil, err
	}
	record := &PortRecord{Port: port}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields["port"] = json.RawMessage(strconv.Itoa(port))
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("Failed to write port record: %s,error: %s", path, err)
	}
	log.Infof("Port record %s written", path)
	return record, nil
}

func promptPort(in io.Reader, out io.Writer) (int, error) {
	fmt.Fprint(out, "Enter qBittorrent port: ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, err
		}
		return 0, errors.New("no port entered")
	}
	answer := strings.TrimSpace(scanner.Text())
	port, err := strconv.ParseInt(answer, 10, 64)
	if err != nil || !validPort(port) {
		return 0, fmt.Errorf("Invalid port %q", answer)
	}
	return int(port), nil
}
