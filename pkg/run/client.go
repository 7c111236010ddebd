/*
   Flompy - floppy disk dumper
   Copyright (c) 2021, Alexander Vollschwitz

   This file is part of Flompy.

   Flompy is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Flompy is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Flompy. If not, see <http://www.gnu.org/licenses/>.
*/

package run

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

//
const clientHelpEpilogue = `- When a flag can be set via environment variable, the variable name is given
  in parenthesis at the end of the flag explanation. Note however that a flag,
  when specified overrides an environment variable.
`

// where commands print their results
var stdout io.Writer = os.Stdout

/*
	NewClient creates a base runner for commands that talk to the API server
	of a running serve command.
*/
func NewClient(use, short, long, helpEpilogue string,
	exec func() error) *Client {
	return &Client{
		Command: *NewCommand(
			use, short, long, helpEpilogue, exec),
	}
}

//
type Client struct {
	//
	Command
	//
	Address string
}

//
func (c *Client) AddBaseSettings() {
	c.AddSetting(&c.Address, "address", "a", "FLOMPY_ADDRESS",
		"127.0.0.1:8888", "address of API server", false)
}

//
func (c *Client) apiCall(method, path string, json bool,
	body io.Reader) (io.ReadCloser, error) {

	addr := c.Address
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:8888", addr)
	}

	client := &http.Client{}
	req, err := http.NewRequest(
		method, fmt.Sprintf("http://%s%s", addr, path), body)
	if err != nil {
		return nil, err
	}

	if json {
		req.Header.Add("Content-Type", "application/json")
		req.Header.Add("Accept", "application/json")
	} else {
		req.Header.Add("Content-Type", "text/plain")
		req.Header.Add("Accept", "text/plain")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status,
			strings.TrimSpace(string(msg)))
	}

	return resp.Body, nil
}

//
func (c *Client) print(path string) error {
	resp, err := c.apiCall("GET", path, false, nil)
	if err != nil {
		return err
	}
	defer resp.Close()

	if _, err := io.Copy(stdout, resp); err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	return nil
}
