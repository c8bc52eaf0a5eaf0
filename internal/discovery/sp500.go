// Package discovery resolves the constituents of the tracked stock
// universes: the S&P 500 from Wikipedia's constituents table and the
// Russell 2000 from the iShares IWM holdings CSV.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const sp500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Constituent is one stock in a universe listing
type Constituent struct {
	Symbol string
	Name   string
	Sector string // GICS sector name, empty when the source has none
}

// FetchSP500 downloads and parses the S&P 500 constituents table
func FetchSP500(ctx context.Context, client *http.Client, url string) ([]Constituent, error) {
	if url == "" {
		url = sp500URL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "SectorView/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch s&p 500 list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch s&p 500 list: unexpected status %d", resp.StatusCode)
	}

	return ParseSP500(resp.Body)
}

// ParseSP500 extracts constituents from the Wikipedia HTML. The first
// sortable wikitable holds one row per company: symbol, security name,
// GICS sector.
func ParseSP500(r io.Reader) ([]Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse s&p 500 html: %w", err)
	}

	table := doc.Find("table.wikitable.sortable").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("s&p 500 table not found")
	}

	var stocks []Constituent
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		symbol := cellText(cells.Eq(0))
		name := cellText(cells.Eq(1))
		sector := strings.TrimSpace(cells.Eq(2).Text())

		if symbol == "" || sector == "" {
			return
		}
		stocks = append(stocks, Constituent{
			Symbol: symbol,
			Name:   name,
			Sector: NormalizeGICSName(sector),
		})
	})

	if len(stocks) == 0 {
		return nil, fmt.Errorf("s&p 500 table yielded no rows")
	}
	return stocks, nil
}

// cellText prefers the text of the first link in a cell, since Wikipedia
// wraps symbols and names in anchors
func cellText(cell *goquery.Selection) string {
	if link := cell.Find("a").First(); link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}
	return strings.TrimSpace(cell.Text())
}

// NormalizeGICSName maps Wikipedia's GICS sector name variants to the
// sector names stored in the database
func NormalizeGICSName(name string) string {
	if name == "Information Technology" {
		return "Technology"
	}
	return name
}

// MapProviderSector translates a market data provider's sector label to the
// matching GICS sector name, or "" when no mapping exists. Yahoo Finance
// uses different labels than GICS (e.g. "Healthcare" vs "Health Care").
func MapProviderSector(providerSector string) string {
	switch providerSector {
	case "Technology":
		return "Technology"
	case "Healthcare":
		return "Health Care"
	case "Financial Services":
		return "Financials"
	case "Consumer Cyclical":
		return "Consumer Discretionary"
	case "Communication Services":
		return "Communication Services"
	case "Industrials":
		return "Industrials"
	case "Consumer Defensive":
		return "Consumer Staples"
	case "Energy":
		return "Energy"
	case "Utilities":
		return "Utilities"
	case "Real Estate":
		return "Real Estate"
	case "Basic Materials":
		return "Materials"
	default:
		return ""
	}
}
