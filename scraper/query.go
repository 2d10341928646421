package scraper

import (
	"fmt"
	"net/url"
	"strconv"
)

// SearchURL builds the results URL for one page of an owner-name search.
// The query is sent as a prefix match, so "0" searches for "0%".
func SearchURL(baseURL, query, payStatus string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("scraper: parse base url: %w", err)
	}

	params := url.Values{}
	params.Set("Query.SearchField", "5") // owner name
	params.Set("Query.SearchText", WildcardQuery(query))
	params.Set("Query.SearchAction", "")
	params.Set("Query.IncludeInactiveAccounts", "False")
	params.Set("Query.PayStatus", payStatus)
	params.Set("Query.PageNumber", strconv.Itoa(page))
	u.RawQuery = params.Encode()

	return u.String(), nil
}

// WildcardQuery returns the search text as submitted and recorded.
func WildcardQuery(query string) string {
	return query + "%"
}
