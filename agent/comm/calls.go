package comm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/findy-network/findy-issuer-agent/agent/didcomm"
	"github.com/findy-network/findy-issuer-agent/agent/psm"
	"github.com/findy-network/findy-issuer-agent/agent/utils"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// errorMessageMaxLength is the maximum length of the response body we will
// include into the generated error message
const errorMessageMaxLength = 80

var (
	// SendAndWaitReq is proxy function to route actual call to http or
	// pseudo http in tests.
	SendAndWaitReq = sendAndWaitHTTPRequest

	c = &http.Client{}
)

// SendPL delivers an outbound protocol payload to the other agent's service
// endpoint. The call is bounded by the agency timeout and a deadline failure
// comes back as the retryable timeout error, entity state untouched by the
// caller's contract.
func SendPL(endpoint string, pl *didcomm.Payload) (err error) {
	defer err2.Handle(&err, "send pl")

	glog.V(3).Infoln("===== sending", pl.Type, "to", endpoint)

	_, err = SendAndWaitReq(endpoint, bytes.NewReader(pl.JSON()), utils.Settings.Timeout())
	if errors.Is(err, context.DeadlineExceeded) {
		return psm.ErrTimeout
	}
	return err
}

func sendAndWaitHTTPRequest(urlStr string, msg io.Reader, timeout time.Duration) (data []byte, err error) {
	defer err2.Handle(&err, "call http")

	URL := try.To1(url.Parse(urlStr))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	request := try.To1(http.NewRequestWithContext(ctx, "POST", URL.String(), msg))
	request.Header.Set("Content-Type", "application/json")

	response := try.To1(c.Do(request))
	defer response.Body.Close()

	data = try.To1(io.ReadAll(response.Body))

	if response.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > errorMessageMaxLength {
			msg = msg[:errorMessageMaxLength]
		}
		return nil, errors.New("http request failed: " + msg)
	}
	return data, nil
}
