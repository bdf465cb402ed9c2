package alidns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"

	"github.com/yuriy-kovalchuk/yk-cfst-ddns/internal/dns"
)

// Params is an unsigned Alidns request. Nil values, including nil
// pointers, are dropped before signing.
type Params map[string]any

// Response is a decoded Alidns JSON response, returned verbatim.
type Response map[string]any

// Client signs requests and sends them to the Alidns RPC endpoint.
type Client struct {
	endpoint string
	signer   *Signer
	http     *resty.Client
	log      logr.Logger
}

// NewClient returns a Client posting to endpoint with the given HTTP client.
func NewClient(log logr.Logger, endpoint string, signer *Signer, httpClient *resty.Client) *Client {
	httpClient.SetLogger(restyLogger{log: log})
	return &Client{
		endpoint: endpoint,
		signer:   signer,
		http:     httpClient,
		log:      log,
	}
}

// Request signs params and posts them as a form. A non-2xx status yields a
// *dns.ProviderRequestFailed carrying the raw body.
func (c *Client) Request(ctx context.Context, params Params) (Response, error) {
	action, _ := params["Action"].(string)

	signed := c.signer.Sign(compact(params), http.MethodPost)
	c.log.V(1).Info("sending request", "action", action, "params", redacted(signed))

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(signed).
		Post(c.endpoint)
	if err != nil {
		return nil, &dns.ProviderRequestFailed{Action: action, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &dns.ProviderRequestFailed{
			Action:     action,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &dns.UnexpectedResponseError{Action: action, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out == nil {
		return nil, &dns.UnexpectedResponseError{Action: action, Err: fmt.Errorf("response is not a JSON object")}
	}
	c.log.V(1).Info("received response", "action", action, "status", resp.StatusCode(), "requestId", out["RequestId"])
	return out, nil
}

// compact converts params to strings, dropping nil entries.
func compact(params Params) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if s, ok := paramString(v); ok {
			out[k] = s
		}
	}
	return out
}

func paramString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case *string:
		if t == nil {
			return "", false
		}
		return *t, true
	case int:
		return strconv.Itoa(t), true
	case *int:
		if t == nil {
			return "", false
		}
		return strconv.Itoa(*t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

func redacted(signed map[string]string) map[string]string {
	out := make(map[string]string, len(signed))
	for k, v := range signed {
		out[k] = v
	}
	if _, ok := out[signatureKey]; ok {
		out[signatureKey] = "<redacted>"
	}
	return out
}

// restyLogger routes resty's internal messages to logr.
type restyLogger struct {
	log logr.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(nil, fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Info(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.V(2).Info(fmt.Sprintf(format, v...))
}
