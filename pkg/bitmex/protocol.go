package bitmex

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	httpClient "bitmexrest/internal/http"
	"bitmexrest/pkg/core"
)

const (
	defaultCount       = 100
	defaultBucketCount = 500
)

// Protocol builds BitMEX requests and parses their responses.
type Protocol struct {
	newID func() uuid.UUID
}

// NewProtocol creates a new BitMEX protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{newID: uuid.New}
}

// Name returns the protocol identifier "bitmex".
func (p *Protocol) Name() string {
	return core.ExchangeName
}

// ClOrdID returns a fresh client order ID: the unpadded base64 of a random
// UUID, prefixed with "prefix-" when prefix is set.
func (p *Protocol) ClOrdID(prefix string) string {
	id := p.newID()
	s := base64.RawStdEncoding.EncodeToString(id[:])
	if prefix != "" {
		return prefix + "-" + s
	}
	return s
}

func invalidRequest(msg string, cause error) *core.ExchangeError {
	e := core.NewConfigurationError(core.ErrCodeInvalidRequest, msg)
	if cause != nil {
		e.WithCause(cause)
	}
	return e
}

func encodeFilter(filter any) (string, error) {
	if s, ok := filter.(string); ok {
		return s, nil
	}
	s, err := core.Codec.MarshalToString(filter)
	if err != nil {
		return "", invalidRequest("encode filter", err)
	}
	return s, nil
}

func applyTimeRange(params core.Params, o *QueryOptions) {
	if !o.StartTime.IsZero() {
		params["startTime"] = o.StartTime
	}
	if !o.EndTime.IsZero() {
		params["endTime"] = o.EndTime
	}
}

func (p *Protocol) listParams(symbol string, o *QueryOptions) (core.Params, error) {
	params := core.Params{
		"start":   o.Start,
		"count":   o.Count,
		"reverse": o.Reverse,
	}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if o.Filter != nil {
		filter, err := encodeFilter(o.Filter)
		if err != nil {
			return nil, err
		}
		params["filter"] = filter
	}
	applyTimeRange(params, o)
	return params, nil
}

func (p *Protocol) buildListRequest(path, symbol string, requireAuth bool, opts []QueryOption) (*core.Request, error) {
	params, err := p.listParams(symbol, ApplyQueryOptions(defaultCount, opts...))
	if err != nil {
		return nil, err
	}
	return core.NewRequest(http.MethodGet, path).
		SetQueryParams(params).
		SetRequireAuth(requireAuth), nil
}

func (p *Protocol) buildInstrumentRequest(symbol string, opts ...QueryOption) (*core.Request, error) {
	return p.buildListRequest("/instrument", symbol, false, opts)
}

func (p *Protocol) buildActiveInstrumentsRequest() *core.Request {
	return core.NewRequest(http.MethodGet, "/instrument/active")
}

func (p *Protocol) buildExecutionsRequest(symbol string, opts ...QueryOption) (*core.Request, error) {
	return p.buildListRequest("/execution", symbol, true, opts)
}

func (p *Protocol) buildTradeHistoryRequest(symbol string, opts ...QueryOption) (*core.Request, error) {
	return p.buildListRequest("/execution/tradeHistory", symbol, true, opts)
}

func (p *Protocol) buildFundingRequest(symbol string, opts ...QueryOption) (*core.Request, error) {
	return p.buildListRequest("/funding", symbol, false, opts)
}

func (p *Protocol) buildOpenOrdersRequest(symbol string) *core.Request {
	req := core.NewRequest(http.MethodGet, "/order").
		SetQuery("filter", `{"open":true}`).
		SetRequireAuth(true)
	if symbol != "" {
		req.SetQuery("symbol", symbol)
	}
	return req
}

// prepareOrder fills in the client order ID and post-only flag and validates the result.
func (p *Protocol) prepareOrder(order core.OrderRequest, o *OrderOptions) (core.OrderRequest, error) {
	if order.ClOrdID == "" {
		order.ClOrdID = p.ClOrdID(o.IDPrefix)
	}
	if o.PostOnly && order.ExecInst == "" {
		order.ExecInst = core.ExecInstPostOnly
	}
	if err := order.Validate(); err != nil {
		return order, invalidRequest(fmt.Sprintf("invalid order for %q", order.Symbol), err)
	}
	return order, nil
}

func (p *Protocol) buildPlaceOrderRequest(order core.OrderRequest, opts ...OrderOption) (*core.Request, error) {
	prepared, err := p.prepareOrder(order, ApplyOrderOptions(opts...))
	if err != nil {
		return nil, err
	}
	return core.NewRequest(http.MethodPost, "/order").
		SetBody(&prepared).
		SetRequireAuth(true), nil
}

type bulkOrders[T any] struct {
	Orders []T `json:"orders"`
}

func (p *Protocol) buildPlaceOrdersRequest(orders []core.OrderRequest, opts ...OrderOption) (*core.Request, error) {
	if len(orders) == 0 {
		return nil, invalidRequest("no orders to place", nil)
	}
	o := ApplyOrderOptions(opts...)
	prepared := make([]core.OrderRequest, 0, len(orders))
	for _, order := range orders {
		po, err := p.prepareOrder(order, o)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, po)
	}
	return core.NewRequest(http.MethodPost, "/order/bulk").
		SetBody(&bulkOrders[core.OrderRequest]{Orders: prepared}).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildAmendOrdersRequest(amends []core.AmendRequest) (*core.Request, error) {
	if len(amends) == 0 {
		return nil, invalidRequest("no orders to amend", nil)
	}
	for i := range amends {
		if err := amends[i].Validate(); err != nil {
			return nil, invalidRequest(fmt.Sprintf("invalid amend at index %d", i), err)
		}
	}
	return core.NewRequest(http.MethodPut, "/order/bulk").
		SetBody(&bulkOrders[core.AmendRequest]{Orders: amends}).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCancelOrderRequest(cancel core.CancelRequest) (*core.Request, error) {
	if err := cancel.Validate(); err != nil {
		return nil, invalidRequest("invalid cancel", err)
	}
	return core.NewRequest(http.MethodDelete, "/order").
		SetBody(&cancel).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCancelOrdersRequest(orderIDs []string) (*core.Request, error) {
	if len(orderIDs) == 0 {
		return nil, invalidRequest("no orders to cancel", nil)
	}
	return core.NewRequest(http.MethodDelete, "/order").
		SetBody(core.Params{"orderID": orderIDs}).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildCancelAllAfterRequest(timeout time.Duration) (*core.Request, error) {
	if timeout < 0 {
		return nil, invalidRequest("cancelAllAfter timeout must not be negative", nil)
	}
	return core.NewRequest(http.MethodPost, "/order/cancelAllAfter").
		SetBody(core.Params{"timeout": timeout.Milliseconds()}).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildPositionRequest(symbol string) (*core.Request, error) {
	if symbol == "" {
		return nil, invalidRequest("symbol is required", nil)
	}
	filter, err := encodeFilter(map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	return core.NewRequest(http.MethodGet, "/position").
		SetQuery("filter", filter).
		SetRequireAuth(true), nil
}

func (p *Protocol) buildTradeBucketsRequest(symbol, binSize string, opts ...QueryOption) (*core.Request, error) {
	if binSize == "" {
		return nil, invalidRequest("binSize is required", nil)
	}
	o := ApplyQueryOptions(defaultBucketCount, opts...)

	req := core.NewRequest(http.MethodGet, "/trade/bucketed").
		SetQueryParams(core.Params{
			"binSize": binSize,
			"start":   o.Start,
			"count":   o.Count,
		})
	if symbol != "" {
		req.SetQuery("symbol", symbol)
	}
	if o.Partial {
		req.SetQuery("partial", true)
	}
	if o.Reverse {
		req.SetQuery("reverse", true)
	}
	if o.Filter != nil {
		filter, err := encodeFilter(o.Filter)
		if err != nil {
			return nil, err
		}
		req.SetQuery("filter", filter)
	}
	applyTimeRange(req.Query, o)
	return req, nil
}

// ParseResponse decodes a successful body into result, or maps an error status
// to an ExchangeError carrying the exchange's message and error name.
func (p *Protocol) ParseResponse(resp *httpClient.Response, result any) error {
	if resp == nil {
		return errors.New("nil response")
	}

	if !resp.IsSuccess() {
		return p.parseError(resp)
	}

	if result == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := core.Codec.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p *Protocol) parseError(resp *httpClient.Response) *core.ExchangeError {
	errType := core.ErrorTypeForStatus(resp.StatusCode)

	message := http.StatusText(resp.StatusCode)
	var name string
	var apiErr core.ErrorResponse
	if err := core.Codec.Unmarshal(resp.Body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
		name = apiErr.Error.Name
	}

	exErr := core.NewExchangeError(errType, resp.StatusCode, message)
	if code := core.CodeForType(errType); code != "" {
		exErr.WithCode(code)
	}
	exErr.Name = name
	return exErr
}
