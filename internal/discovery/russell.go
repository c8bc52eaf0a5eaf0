package discovery

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const iwmHoldingsURL = "https://www.ishares.com/us/products/239710/ISHARES-RUSSELL-2000-ETF/1467271812596.ajax?fileType=csv&fileName=IWM_holdings&dataType=fund"

// FetchRussell2000 downloads and parses the iShares IWM holdings CSV
func FetchRussell2000(ctx context.Context, client *http.Client, url string) ([]Constituent, error) {
	if url == "" {
		url = iwmHoldingsURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "SectorView/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch iwm holdings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch iwm holdings: unexpected status %d", resp.StatusCode)
	}

	return ParseRussell2000(resp.Body)
}

// ParseRussell2000 extracts equity holdings from the iShares CSV. The file
// opens with fund metadata rows; the real header row is found by looking
// for both a Ticker and an Asset Class column. Only Equity rows with a
// usable ticker are kept. Holdings carry no sector, so Sector stays empty.
func ParseRussell2000(r io.Reader) ([]Constituent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // metadata rows have ragged widths
	reader.LazyQuotes = true

	tickerCol, nameCol, assetClassCol := -1, -1, -1
	var stocks []Constituent

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse iwm csv: %w", err)
		}

		if tickerCol == -1 {
			for i, col := range record {
				switch strings.ToLower(strings.TrimSpace(col)) {
				case "ticker":
					tickerCol = i
				case "name":
					nameCol = i
				case "asset class":
					assetClassCol = i
				}
			}
			if tickerCol == -1 || assetClassCol == -1 {
				// not the header row yet
				tickerCol, nameCol, assetClassCol = -1, -1, -1
			}
			continue
		}

		if len(record) <= tickerCol || len(record) <= assetClassCol {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(record[assetClassCol]), "Equity") {
			continue
		}

		ticker := strings.TrimSpace(record[tickerCol])
		if ticker == "" || ticker == "-" || ticker == "--" {
			continue
		}

		name := ticker
		if nameCol != -1 && len(record) > nameCol {
			if n := strings.TrimSpace(record[nameCol]); n != "" {
				name = n
			}
		}

		stocks = append(stocks, Constituent{Symbol: ticker, Name: name})
	}

	if tickerCol == -1 {
		return nil, fmt.Errorf("parse iwm csv: header row not found")
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("parse iwm csv: no equity holdings found")
	}
	return stocks, nil
}
