package agency

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/findy-network/findy-issuer-agent/cmds"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// PingCmd probes a running agency through its version endpoint.
type PingCmd struct {
	BaseAddr string
}

func (c PingCmd) Validate() error {
	if c.BaseAddr == "" {
		return errors.New("server url cannot be empty")
	}
	return nil
}

func (c PingCmd) Exec(w io.Writer) (r cmds.Result, err error) {
	defer err2.Handle(&err, "agency ping")

	response := try.To1(http.Get(c.BaseAddr + "/version"))
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.New("agency ping failed: " + response.Status)
	}

	body := struct {
		Version string `json:"version"`
	}{}
	try.To(json.NewDecoder(response.Body).Decode(&body))

	cmds.Fprintln(w, "ping ok, version:", body.Version)
	return nil, nil
}
