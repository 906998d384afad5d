package interestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://www.ustreasuryyieldcurve.com"

var yieldKeys = []string{
	"yield_1m",
	"yield_2m",
	"yield_3m",
	"yield_4m",
	"yield_6m",
	"yield_1y",
	"yield_2y",
	"yield_3y",
	"yield_5y",
	"yield_7y",
	"yield_10y",
	"yield_20y",
	"yield_30y",
}

func interestRateMonthsFromApi(in string) (int, error) {
	cleanedStr := strings.Replace(in, "yield_", "", 1)
	if len(cleanedStr) < 2 {
		return 0, fmt.Errorf("unexpected yield key %s", in)
	}
	unit := cleanedStr[len(cleanedStr)-1]
	months, err := strconv.Atoi(cleanedStr[:len(cleanedStr)-1])
	if err != nil {
		return 0, err
	}

	switch unit {
	case 'm':
	case 'y':
		months *= 12
	default:
		return 0, fmt.Errorf("unexpected yield key %s", in)
	}

	return months, nil
}

// InterestRateMap holds annualized yields keyed by months to maturity
type InterestRateMap struct {
	Rates map[int]float64
}

// GetRate returns the yield for the given maturity, linearly
// interpolating between the nearest quoted maturities and clamping
// outside of them
func (im InterestRateMap) GetRate(monthsOut int) (float64, error) {
	if len(im.Rates) == 0 {
		return 0, fmt.Errorf("yield curve has no rates")
	}
	if v, ok := im.Rates[monthsOut]; ok {
		return v, nil
	}

	keys := []int{}
	for k := range im.Rates {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	if monthsOut < keys[0] {
		return im.Rates[keys[0]], nil
	}
	if monthsOut > keys[len(keys)-1] {
		return im.Rates[keys[len(keys)-1]], nil
	}

	for i := 0; i < len(keys)-1; i++ {
		lo, hi := keys[i], keys[i+1]
		if monthsOut > lo && monthsOut < hi {
			frac := float64(monthsOut-lo) / float64(hi-lo)
			return im.Rates[lo] + frac*(im.Rates[hi]-im.Rates[lo]), nil
		}
	}

	return 0, fmt.Errorf("unable to compute rate for %d months", monthsOut)
}

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    DefaultBaseURL,
	}
}

// GetYieldCurve fetches the treasury yield curve snapshot for the date
func (c Client) GetYieldCurve(ctx context.Context, date time.Time) (*InterestRateMap, error) {
	query := url.Values{}
	query.Set("date", date.Format(time.DateOnly))
	query.Set("offset", "0")
	endpoint := fmt.Sprintf("%s/api/v1/yield_curve_snapshot?%s", strings.TrimRight(c.BaseURL, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	response, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get yield curve: %w", err)
	}
	defer response.Body.Close()

	responseBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("received status code %d and failed to read body: %w", response.StatusCode, err)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed with status code %d: %s", response.StatusCode, string(responseBytes))
	}

	snapshots := []map[string]interface{}{}
	if err := json.Unmarshal(responseBytes, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to parse yield curve response: %w", err)
	}

	out := map[int]float64{}
	for _, snapshot := range snapshots {
		for _, key := range yieldKeys {
			v, ok := snapshot[key].(float64)
			if !ok {
				continue
			}
			months, err := interestRateMonthsFromApi(key)
			if err != nil {
				return nil, err
			}
			out[months] = v / 100
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no yield curve data for %s", date.Format(time.DateOnly))
	}

	return &InterestRateMap{
		Rates: out,
	}, nil
}
