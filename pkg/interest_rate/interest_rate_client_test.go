package interestrate

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var floatComparer = cmp.Comparer(func(i, j float64) bool {
	return math.Abs(i-j) < 0.0001
})

func TestClient_GetYieldCurve(t *testing.T) {
	t.Run("parses snapshot", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/v1/yield_curve_snapshot", r.URL.Path)
			require.Equal(t, "2020-01-02", r.URL.Query().Get("date"))
			w.Write([]byte(`[{"date":"2020-01-02","yield_1m":1.48,"yield_3m":1.55,"yield_1y":1.59,"yield_2y":1.58,"yield_10y":1.92,"yield_30y":2.39,"yield_20y":null}]`))
		}))
		defer server.Close()

		c := Client{HTTPClient: server.Client(), BaseURL: server.URL}
		response, err := c.GetYieldCurve(context.Background(), time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		require.Equal(
			t,
			"",
			cmp.Diff(
				&InterestRateMap{
					Rates: map[int]float64{
						1:   0.0148,
						3:   0.0155,
						12:  0.0159,
						24:  0.0158,
						120: 0.0192,
						360: 0.0239,
					},
				},
				response,
				floatComparer,
			),
		)
	})

	t.Run("error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer server.Close()

		c := Client{HTTPClient: server.Client(), BaseURL: server.URL}
		_, err := c.GetYieldCurve(context.Background(), time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
		require.ErrorContains(t, err, "failed with status code 500")
	})

	t.Run("empty snapshot", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := Client{HTTPClient: server.Client(), BaseURL: server.URL}
		_, err := c.GetYieldCurve(context.Background(), time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC))
		require.ErrorContains(t, err, "no yield curve data")
	})
}

func TestInterestRateMap_GetRate(t *testing.T) {
	im := InterestRateMap{
		Rates: map[int]float64{
			1:  0.01,
			3:  0.02,
			12: 0.05,
		},
	}

	tests := []struct {
		name      string
		monthsOut int
		want      float64
	}{
		{name: "exact", monthsOut: 3, want: 0.02},
		{name: "below range", monthsOut: 0, want: 0.01},
		{name: "above range", monthsOut: 24, want: 0.05},
		{name: "interpolated", monthsOut: 6, want: 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := im.GetRate(tt.monthsOut)
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := InterestRateMap{}.GetRate(12)
		require.Error(t, err)
	})
}

func Test_interestRateMonthsFromApi(t *testing.T) {
	months, err := interestRateMonthsFromApi("yield_10y")
	require.NoError(t, err)
	require.Equal(t, 120, months)

	months, err = interestRateMonthsFromApi("yield_6m")
	require.NoError(t, err)
	require.Equal(t, 6, months)

	_, err = interestRateMonthsFromApi("yield_6w")
	require.Error(t, err)
}
