package bitmex

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitmexrest/internal/auth"
	"bitmexrest/internal/ratelimit"
	"bitmexrest/pkg/core"
)

const (
	testKey    = "LAqUlngMIQkIUjXMUreyu3qn"
	testSecret = "chNOOS4KvNXR_Xq4k4c9qsfoKWvnDecLATCRlcBwyKDYnWgO"
)

type recorded struct {
	method string
	uri    string
	body   []byte
	header http.Header
	at     time.Time
}

// fakeExchange answers every request with the same status, body and headers.
// Arrival times are read from clock when set, otherwise from the wall clock.
type fakeExchange struct {
	mu       sync.Mutex
	status   int
	body     string
	headers  map[string]string
	clock    ratelimit.Clock
	requests []recorded
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	at := time.Now()
	if f.clock != nil {
		at = f.clock.Now()
	}
	f.requests = append(f.requests, recorded{
		method: r.Method,
		uri:    r.URL.RequestURI(),
		body:   body,
		header: r.Header.Clone(),
		at:     at,
	})
	status, respBody, headers := f.status, f.body, f.headers
	f.mu.Unlock()

	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, respBody)
}

func (f *fakeExchange) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeExchange) arrivals() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.at
	}
	return out
}

func (f *fakeExchange) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, fake *fakeExchange, creds *core.Credentials, clock ratelimit.Clock) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	config := core.DefaultConfig(core.NetworkTestnet).WithBaseURL(srv.URL)
	if creds != nil {
		config.WithCredentials(creds)
	}

	opts := []Option{WithLogger(zerolog.Nop())}
	if clock != nil {
		opts = append(opts, WithClock(clock))
	}
	c, err := New(config, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	c, err := New(&core.Config{})
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, core.IsConfigurationError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeInvalidConfig))
}

func TestNew_BaseURLWithPath(t *testing.T) {
	config := core.DefaultConfig(core.NetworkTestnet).WithBaseURL("https://proxy.example.com/x")

	c, err := New(config)
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, core.IsErrorCode(err, core.ErrCodeInvalidConfig))
}

func TestNew_ValidConfig(t *testing.T) {
	for _, network := range []core.Network{core.NetworkMainnet, core.NetworkTestnet} {
		t.Run(network.String(), func(t *testing.T) {
			c, err := New(core.DefaultConfig(network))
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, "bitmex", c.Name())
			assert.NotNil(t, c.Governor())
		})
	}
}

func TestClient_Do_SignsPublishedVectors(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		req       *core.Request
		wantURI   string
		wantBody  string
		wantSig   string
		wantVerb  string
		wantCType bool
	}{
		{
			name:     "get_instrument",
			now:      time.Unix(1518064231, 0),
			req:      core.NewRequest(http.MethodGet, "/instrument"),
			wantURI:  "/api/v1/instrument",
			wantSig:  "c7682d435d0cfe87c16098df34ef2eb5a549d4c5a3c2b1f0f77b8af73423bf00",
			wantVerb: http.MethodGet,
		},
		{
			name:     "get_instrument_filtered",
			now:      time.Unix(1518064232, 0),
			req:      core.NewRequest(http.MethodGet, "/instrument").SetQuery("filter", `{"symbol": "XBTM15"}`),
			wantURI:  "/api/v1/instrument?filter=%7B%22symbol%22%3A+%22XBTM15%22%7D",
			wantSig:  "e2f422547eecb5b3cb29ade2127e21b858b235b386bfa45e1c1756eb3383919f",
			wantVerb: http.MethodGet,
		},
		{
			name: "post_order",
			now:  time.Unix(1518064233, 0),
			req: core.NewRequest("", "/order").
				SetBody([]byte(`{"symbol":"XBTM15","price":219.0,"clOrdID":"mm_bitmex_1a/oemUeQ4CAJZgP3fjHsA","orderQty":98}`)),
			wantURI:   "/api/v1/order",
			wantBody:  `{"symbol":"XBTM15","price":219.0,"clOrdID":"mm_bitmex_1a/oemUeQ4CAJZgP3fjHsA","orderQty":98}`,
			wantSig:   "1749cd2ccae4aa49048ae09f0b95110cee706e0944e6a14ad0b3a8cb45bd336b",
			wantVerb:  http.MethodPost,
			wantCType: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExchange{body: `[]`}
			c := newTestClient(t, fake,
				&core.Credentials{APIKey: testKey, APISecret: testSecret},
				ratelimit.NewFakeClock(tt.now))

			require.NoError(t, c.Do(context.Background(), tt.req, nil))

			got := fake.last(t)
			assert.Equal(t, tt.wantVerb, got.method)
			assert.Equal(t, tt.wantURI, got.uri)
			assert.Equal(t, tt.wantBody, string(got.body))
			assert.Equal(t, testKey, got.header.Get(auth.HeaderKey))
			assert.Equal(t, strconv.FormatInt(tt.now.Unix()+5, 10), got.header.Get(auth.HeaderExpires))
			assert.Equal(t, tt.wantSig, got.header.Get(auth.HeaderSignature))
			assert.Equal(t, "application/json", got.header.Get("Accept"))
			if tt.wantCType {
				assert.Equal(t, "application/json", got.header.Get("Content-Type"))
			}
		})
	}
}

func TestClient_Do_UnsignedWithoutCredentials(t *testing.T) {
	fake := &fakeExchange{body: `[]`}
	c := newTestClient(t, fake, nil, nil)

	_, err := c.Funding(context.Background(), "XBTUSD")
	require.NoError(t, err)

	got := fake.last(t)
	assert.Equal(t, "/api/v1/funding?count=100&reverse=false&start=0&symbol=XBTUSD", got.uri)
	assert.Empty(t, got.header.Get(auth.HeaderKey))
	assert.Empty(t, got.header.Get(auth.HeaderSignature))
	assert.Empty(t, got.header.Get(auth.HeaderExpires))
}

func TestClient_Do_MissingCredentials(t *testing.T) {
	fake := &fakeExchange{body: `[]`}
	c := newTestClient(t, fake, nil, nil)

	_, err := c.Position(context.Background(), "XBTUSD")
	require.Error(t, err)

	assert.True(t, core.IsConfigurationError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeNoCredentials))
	assert.ErrorIs(t, err, core.ErrNoCredentials)
	assert.Zero(t, fake.count(), "no request may reach the network")
	assert.Zero(t, c.Governor().Metrics().Updates)
}

func TestClient_Do_ErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		check    func(error) bool
		wantMsg  string
		wantName string
		wantCode core.ErrorCode
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Signature not valid.","name":"HTTPError"}}`,
			check:    core.IsAuthenticationError,
			wantMsg:  "Signature not valid.",
			wantName: "HTTPError",
			wantCode: core.ErrCodeAuth,
		},
		{
			name:     "validation",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"Invalid orderQty","name":"ValidationError"}}`,
			check:    core.IsTerminalError,
			wantMsg:  "Invalid orderQty",
			wantName: "ValidationError",
			wantCode: core.ErrCodeBadRequest,
		},
		{
			name:     "overloaded",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"message":"The system is currently overloaded. Please try again later.","name":"HTTPError"}}`,
			check:    core.IsServerError,
			wantMsg:  "The system is currently overloaded. Please try again later.",
			wantName: "HTTPError",
			wantCode: core.ErrCodeServerError,
		},
		{
			name:     "non_json_body",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			check:    core.IsServerError,
			wantMsg:  "Bad Gateway",
			wantCode: core.ErrCodeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeExchange{status: tt.status, body: tt.body}
			c := newTestClient(t, fake, &core.Credentials{APIKey: testKey, APISecret: testSecret}, ratelimit.NewFakeClock(time.Unix(1700000000, 0)))

			_, err := c.OpenOrders(context.Background(), "XBTUSD")
			require.Error(t, err)
			assert.True(t, tt.check(err))

			var exErr *core.ExchangeError
			require.True(t, errors.As(err, &exErr))
			assert.Equal(t, tt.status, exErr.StatusCode)
			assert.Equal(t, tt.wantMsg, exErr.Message)
			assert.Equal(t, tt.wantName, exErr.Name)
			assert.Equal(t, string(tt.wantCode), exErr.Code)
		})
	}
}

func TestClient_Do_RetryAfterHoldsThrottle(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Unix(1700000000, 0))
	fake := &fakeExchange{
		status:  http.StatusTooManyRequests,
		body:    `{"error":{"message":"Rate limit exceeded, retry in 3 seconds.","name":"RateLimitError"}}`,
		headers: map[string]string{"Retry-After": "3"},
	}
	c := newTestClient(t, fake, nil, clock)

	_, err := c.Instrument(context.Background(), "XBTUSD")
	require.Error(t, err)
	assert.True(t, core.IsRateLimitError(err))

	assert.Equal(t, 3*time.Second, c.Governor().Delay())
	assert.Equal(t, int64(1), c.Governor().Metrics().Holds)
}

func TestClient_Do_TransportError(t *testing.T) {
	fake := &fakeExchange{}
	srv := httptest.NewServer(fake)
	config := core.DefaultConfig(core.NetworkTestnet).WithBaseURL(srv.URL)
	c, err := New(config)
	require.NoError(t, err)
	defer c.Close()
	srv.Close()

	_, err = c.ActiveInstruments(context.Background())
	require.Error(t, err)

	var exErr *core.ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Contains(t, []core.ErrorType{core.ErrorTypeNetwork, core.ErrorTypeTimeout}, exErr.Type)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestClient_Do_CancelledWhileThrottled(t *testing.T) {
	fake := &fakeExchange{body: `[]`}
	c := newTestClient(t, fake, nil, nil)
	c.Governor().Hold(time.Hour)
	before := c.Governor().DelayUntil()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Funding(ctx, "XBTUSD")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, fake.count())
	assert.Equal(t, before, c.Governor().DelayUntil())
}

func TestClient_Do_ExhaustedQuotaLoop(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Unix(1700000000, 0))
	fake := &fakeExchange{
		body:    `[{"timestamp":"2024-01-01T04:00:00.000Z","symbol":"XBTUSD","fundingRate":0.0001}]`,
		headers: map[string]string{"X-Ratelimit-Remaining": "0"},
	}
	c := newTestClient(t, fake, &core.Credentials{APIKey: testKey, APISecret: testSecret}, clock)

	const cycles = 120
	for i := 0; i < cycles; i++ {
		funding, err := c.Funding(context.Background(), "XBTUSD", WithCount(1))
		require.NoError(t, err, "cycle %d", i)
		require.Len(t, funding, 1)
	}

	assert.Equal(t, cycles, fake.count())

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, cycles-1)
	for i, d := range sleeps {
		assert.InDelta(t, float64(5*time.Second), float64(d), float64(time.Millisecond), "sleep %d", i)
	}

	m := c.Governor().Metrics()
	assert.Equal(t, int64(cycles), m.Updates)
	assert.Equal(t, int64(cycles), m.Cooldowns)
	assert.Equal(t, int64(cycles-1), m.Waits)
}

func TestClient_Do_ConcurrentCallersQueueBehindExhaustedWindow(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Unix(1700000000, 0))
	fake := &fakeExchange{
		body:    `[]`,
		headers: map[string]string{"X-Ratelimit-Remaining": "0"},
		clock:   clock,
	}
	c := newTestClient(t, fake, nil, clock)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ActiveInstruments(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	arrivals := fake.arrivals()
	require.Len(t, arrivals, callers)
	for i := 1; i < len(arrivals); i++ {
		assert.Equal(t, ratelimit.ExhaustedCooldown, arrivals[i].Sub(arrivals[i-1]), "request %d", i)
	}

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, callers-1)
	for _, d := range sleeps {
		assert.Equal(t, ratelimit.ExhaustedCooldown, d)
	}

	m := c.Governor().Metrics()
	assert.Equal(t, int64(callers), m.Cooldowns)
	assert.Equal(t, int64(callers-1), m.Waits)
}

func TestClient_Do_ConcurrentCallersSpacedBySignal(t *testing.T) {
	const remaining = 6
	fake := &fakeExchange{
		body:    `[]`,
		headers: map[string]string{"X-Ratelimit-Remaining": strconv.Itoa(remaining)},
	}
	c := newTestClient(t, fake, nil, nil)
	gap := ratelimit.Backoff(remaining)
	require.Positive(t, gap)

	const callers = 4
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ActiveInstruments(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	arrivals := fake.arrivals()
	require.Len(t, arrivals, callers)
	for i := 1; i < len(arrivals); i++ {
		assert.GreaterOrEqual(t, arrivals[i].Sub(arrivals[i-1]), gap, "request %d", i)
	}
	assert.Equal(t, int64(callers), c.Governor().Metrics().Updates)
}

func TestClient_PlaceOrder_SignatureCoversWireBytes(t *testing.T) {
	now := time.Unix(1700000000, 0)
	fake := &fakeExchange{body: `{"orderID":"00000000-0000-0000-0000-000000000001","symbol":"XBTUSD","side":"Buy","orderQty":10,"price":35000.5,"ordStatus":"New"}`}
	c := newTestClient(t, fake, &core.Credentials{APIKey: testKey, APISecret: testSecret}, ratelimit.NewFakeClock(now))

	order, err := c.PlaceOrder(context.Background(), core.OrderRequest{
		Symbol:   "XBTUSD",
		Side:     core.SideBuy,
		OrderQty: core.DecimalFromInt(10),
		Price:    core.MustDecimal("35000.5").Ptr(),
	}, WithIDPrefix("mm"), PostOnly())
	require.NoError(t, err)
	assert.Equal(t, "New", order.OrdStatus)
	assert.Equal(t, "35000.5", order.Price.String())

	got := fake.last(t)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Contains(t, string(got.body), `"execInst":"ParticipateDoNotInitiate"`)
	assert.Contains(t, string(got.body), `"clOrdID":"mm-`)

	expires, err := strconv.ParseInt(got.header.Get(auth.HeaderExpires), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+5, expires)
	assert.Equal(t, auth.Sign(testSecret, got.method, got.uri, expires, got.body), got.header.Get(auth.HeaderSignature))
}

func TestClient_CancelOrders_SendsDeleteBody(t *testing.T) {
	fake := &fakeExchange{body: `[{"orderID":"a","ordStatus":"Canceled"},{"orderID":"b","ordStatus":"Canceled"}]`}
	c := newTestClient(t, fake, &core.Credentials{APIKey: testKey, APISecret: testSecret}, ratelimit.NewFakeClock(time.Unix(1700000000, 0)))

	orders, err := c.CancelOrders(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	got := fake.last(t)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/api/v1/order", got.uri)
	assert.Equal(t, `{"orderID":["a","b"]}`, string(got.body))
	assert.Equal(t, auth.Sign(testSecret, got.method, got.uri, 1700000005, got.body), got.header.Get(auth.HeaderSignature))
}

func TestClient_Position(t *testing.T) {
	creds := &core.Credentials{APIKey: testKey, APISecret: testSecret}

	t.Run("stub_when_flat", func(t *testing.T) {
		fake := &fakeExchange{body: `[]`}
		c := newTestClient(t, fake, creds, nil)

		pos, err := c.Position(context.Background(), "XBTUSD")
		require.NoError(t, err)
		assert.True(t, pos.Stub)
		assert.Equal(t, "XBTUSD", pos.Symbol)
		assert.True(t, pos.CurrentQty.IsZero())
		assert.True(t, pos.AvgEntryPrice.IsZero())
	})

	t.Run("first_match", func(t *testing.T) {
		fake := &fakeExchange{body: `[{"symbol":"XBTUSD","currentQty":-250,"avgEntryPrice":41000.5,"isOpen":true}]`}
		c := newTestClient(t, fake, creds, nil)

		pos, err := c.Position(context.Background(), "XBTUSD")
		require.NoError(t, err)
		assert.False(t, pos.Stub)
		assert.Equal(t, "-250", pos.CurrentQty.String())
		assert.Equal(t, "41000.5", pos.AvgEntryPrice.String())
	})
}

func TestClient_CancelAllAfter(t *testing.T) {
	fake := &fakeExchange{body: `{"now":"2024-01-01T00:00:00.000Z","cancelTime":"2024-01-01T00:01:00.000Z"}`}
	c := newTestClient(t, fake, &core.Credentials{APIKey: testKey, APISecret: testSecret}, nil)

	ack, err := c.CancelAllAfter(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ack.CancelTime.Sub(ack.Now))
	assert.Equal(t, `{"timeout":60000}`, string(fake.last(t).body))
}
