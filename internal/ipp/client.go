package ipp

import (
	"context"
	"fmt"
)

// Transport executes one protocol operation against a single printer.
type Transport interface {
	Execute(ctx context.Context, operation string, payload Payload) (*Response, error)
}

// Client issues Get-Printer-Attributes queries and classifies failures.
type Client struct {
	transport Transport
}

func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// Query requests the baseline attributes plus the given names and returns the
// printer attribute group unmodified. Errors wrap ErrUnreachable or ErrProtocol.
func (c *Client) Query(ctx context.Context, names []string) (AttributeBag, error) {
	payload := Payload{OperationAttributes: OperationAttributes{
		RequestedAttributes: mergeAttributes(BaselineAttributes, names),
	}}

	resp, err := c.transport.Execute(ctx, OperationGetPrinterAttributes, payload)
	if err != nil {
		return nil, Classify(err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrProtocol)
	}
	if resp.StatusCode != StatusSuccessfulOK {
		return nil, fmt.Errorf("%w: status %q", ErrProtocol, resp.StatusCode)
	}
	if resp.PrinterAttributes == nil {
		return nil, fmt.Errorf("%w: missing printer-attributes-tag", ErrProtocol)
	}
	return resp.PrinterAttributes, nil
}

// mergeAttributes returns base followed by extra, without duplicates.
func mergeAttributes(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
