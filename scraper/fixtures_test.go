package scraper

import (
	"fmt"
	"strings"
)

type card struct {
	acct, due, owner, typ, address string
}

// resultsPage renders a search results page in the tax office's layout.
func resultsPage(total, page, pages int, cards ...card) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Search Results</title></head><body><div class="container">`)
	fmt.Fprintf(&b, `<div class="summary"><div><strong>%d</strong> results found for <em>0%%</em></div></div>`, total)
	fmt.Fprintf(&b, `<div class="pager">(showing page <span class="page-number">%d</span> of %d)</div>`, page, pages)
	for _, c := range cards {
		b.WriteString(`<div class="account-card-container"><div class="card"><div class="card-body">`)
		b.WriteString(`<div class="row"><div class="col">`)
		fmt.Fprintf(&b, `<div class="row"><div><strong>%s</strong></div><div><h4> %s </h4></div></div>`, c.acct, c.due)
		fmt.Fprintf(&b, `<div class="row"><div><strong>%s</strong> <span>%s</span></div></div>`, c.owner, c.typ)
		fmt.Fprintf(&b, `<div class="row"><div>Property Address:<br/>%s</div></div>`, c.address)
		b.WriteString(`</div></div>`)
		b.WriteString(`</div></div></div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
