package ipp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	goipp "github.com/phin1x/go-ipp"
)

const (
	contentTypeIPP  = "application/ipp"
	defaultIPPPort  = "631"
	defaultIPPPath  = "/ipp/print"
	maxResponseSize = 1 << 20 // 1 MB, attribute responses are small
)

// statusNames maps the IPP status codes a printer is likely to return.
var statusNames = map[int16]string{
	0x0000: StatusSuccessfulOK,
	0x0001: "successful-ok-ignored-or-substituted-attributes",
	0x0002: "successful-ok-conflicting-attributes",
	0x0400: "client-error-bad-request",
	0x0401: "client-error-forbidden",
	0x0402: "client-error-not-authenticated",
	0x0403: "client-error-not-authorized",
	0x0404: "client-error-not-possible",
	0x0405: "client-error-timeout",
	0x0406: "client-error-not-found",
	0x040B: "client-error-attributes-or-values-not-supported",
	0x0500: "server-error-internal-error",
	0x0501: "server-error-operation-not-supported",
	0x0502: "server-error-service-unavailable",
	0x0503: "server-error-version-not-supported",
	0x0507: "server-error-busy",
}

// StatusName returns the keyword for an IPP status code.
func StatusName(code int16) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return fmt.Sprintf("status-0x%04x", uint16(code))
}

// HTTPTransport speaks IPP over HTTP to one printer. Requests honour the
// context deadline, so a hung printer cannot block the caller past it.
type HTTPTransport struct {
	httpURL    string
	printerURI string
	httpClient *http.Client
	requestID  atomic.Int32
}

// NewHTTPTransport builds a transport for an address such as
// "http://10.0.0.5:631/ipp/print", "ipp://printer.local/ipp/print" or a bare host.
func NewHTTPTransport(address string, httpClient *http.Client) (*HTTPTransport, error) {
	httpURL, printerURI, err := ResolveEndpoint(address)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPTransport{httpURL: httpURL, printerURI: printerURI, httpClient: httpClient}, nil
}

// ResolveEndpoint returns the HTTP URL to POST to and the printer-uri attribute value.
func ResolveEndpoint(address string) (httpURL, printerURI string, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", fmt.Errorf("empty printer address")
	}
	if !strings.Contains(address, "://") {
		address = "ipp://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("parse printer address %q: %w", address, err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("printer address %q has no host", address)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = defaultIPPPath
	}

	httpScheme, ippScheme := "http", "ipp"
	switch u.Scheme {
	case "ipp", "http":
	case "ipps", "https":
		httpScheme, ippScheme = "https", "ipps"
	default:
		return "", "", fmt.Errorf("unsupported scheme %q in printer address", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = u.Hostname() + ":" + defaultIPPPort
	}

	httpU := url.URL{Scheme: httpScheme, Host: host, Path: u.Path, RawQuery: u.RawQuery}
	ippU := url.URL{Scheme: ippScheme, Host: host, Path: u.Path}
	return httpU.String(), ippU.String(), nil
}

// Execute encodes the operation, POSTs it and decodes the printer attributes.
func (t *HTTPTransport) Execute(ctx context.Context, operation string, payload Payload) (*Response, error) {
	if operation != OperationGetPrinterAttributes {
		return nil, fmt.Errorf("%w: unsupported operation %q", ErrProtocol, operation)
	}

	req := goipp.NewRequest(goipp.OperationGetPrinterAttributes, t.requestID.Add(1))
	req.OperationAttributes[goipp.AttributePrinterURI] = t.printerURI
	req.OperationAttributes[goipp.AttributeRequestedAttributes] = payload.OperationAttributes.RequestedAttributes

	body, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrProtocol, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.httpURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrProtocol, err)
	}
	httpReq.Header.Set("Content-Type", contentTypeIPP)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err // classified by the client
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http status %d", ErrProtocol, httpResp.StatusCode)
	}

	ippResp, err := goipp.NewResponseDecoder(io.LimitReader(httpResp.Body, maxResponseSize)).Decode(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrProtocol, err)
	}

	out := &Response{StatusCode: StatusName(ippResp.StatusCode)}
	if len(ippResp.PrinterAttributes) > 0 {
		out.PrinterAttributes = toBag(ippResp.PrinterAttributes[0])
	}
	return out, nil
}

// toBag flattens decoded attributes: one value stays scalar, several become a list.
func toBag(attrs goipp.Attributes) AttributeBag {
	bag := make(AttributeBag, len(attrs))
	for name, values := range attrs {
		switch len(values) {
		case 0:
			continue
		case 1:
			bag[name] = values[0].Value
		default:
			list := make([]any, 0, len(values))
			for _, v := range values {
				list = append(list, v.Value)
			}
			bag[name] = list
		}
	}
	return bag
}
