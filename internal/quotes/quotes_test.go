package quotes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoDayChart = `{"chart":{"result":[{
	"timestamp":[1719212400,1719298800],
	"indicators":{"quote":[{
		"open":[10.0,10.5],
		"high":[10.8,11.2],
		"low":[9.9,10.4],
		"close":[10.4,11.0]
	}]}
}],"error":null}}`

func TestParseChart(t *testing.T) {
	q, err := ParseChart([]byte(twoDayChart))
	require.NoError(t, err)

	assert.Equal(t, 11.0, q.Price)
	assert.Equal(t, 10.5, q.Open)
	assert.Equal(t, 11.2, q.High)
	assert.Equal(t, 10.4, q.Low)
	assert.Equal(t, 0.6, q.Diff)
	assert.Equal(t, 5.45, q.DiffPercent)
	assert.Equal(t, Up, q.Direction())
	assert.Equal(t, "▲ 0.6 (5.45%)", q.ChangeString())
	assert.Equal(t, "Good", q.Color())
	assert.Equal(t, "June 25 2024", q.DayString())
}

func TestParseChartOpenDayAndFallbacks(t *testing.T) {
	// closes equal: the change falls back to opens; no close yet: price is the open
	body := `{"chart":{"result":[{
		"timestamp":[1,2],
		"indicators":{"quote":[{"open":[10.0,9.5],"high":[10,10],"low":[9,9],"close":[0,0]}]}
	}]}}`
	q, err := ParseChart([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 9.5, q.Price)
	assert.Equal(t, -0.5, q.Diff)
	assert.Equal(t, Down, q.Direction())
	assert.Equal(t, "▼", q.Symbol())
	assert.Equal(t, "Attention", q.Color())
}

func TestParseChartSingleDayIsFlat(t *testing.T) {
	body := `{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"open":[5],"high":[6],"low":[4],"close":[5.5]}]}}]}}`
	q, err := ParseChart([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, Flat, q.Direction())
	assert.Equal(t, "► 0 (0%)", q.ChangeString())
}

func TestParseChartNoData(t *testing.T) {
	_, err := ParseChart([]byte(`{"chart":{"result":null,"error":{"code":"Not Found"}}}`))
	assert.True(t, errors.Is(err, ErrNoData))

	_, err = ParseChart([]byte(`{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"open":[null],"high":[null],"low":[null],"close":[null]}]}}]}}`))
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestYahooClientQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TIK1V.HE", r.URL.Path)
		assert.Equal(t, "2d", r.URL.Query().Get("range"))
		io.WriteString(w, twoDayChart)
	}))
	defer srv.Close()

	c := NewYahooClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	q, err := c.Quote(context.Background(), "TIK1V.HE")
	require.NoError(t, err)
	assert.Equal(t, "TIK1V.HE", q.Ticker)
	assert.Equal(t, 11.0, q.Price)
}

func TestYahooClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewYahooClient(WithBaseURL(srv.URL)).Quote(context.Background(), "TIK1V.HE")
	assert.True(t, errors.Is(err, ErrQuoteRequest))
}
