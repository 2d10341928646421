package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/taxscrape/models"
	"golang.org/x/net/html"
)

var (
	selAccountCard = cascadia.MustCompile("div.account-card-container")
	selDetailRows  = cascadia.MustCompile("div.card-body > div.row > div.col > div.row")
	selPageNumber  = cascadia.MustCompile("span.page-number")
	selDiv         = cascadia.MustCompile("div")
	selStrong      = cascadia.MustCompile("strong")
	selH4          = cascadia.MustCompile("h4")
	selSpan        = cascadia.MustCompile("span")

	reOfPages = regexp.MustCompile(`of (\d+)`)
)

// realEstateType is the account type kept when filtering to real estate.
const realEstateType = "Real"

// ParseOptions control how account cards are turned into TaxAccounts.
type ParseOptions struct {
	Query      string // search text as submitted, wildcard included
	Page       int
	DetailsURL string // account number is appended
	RealOnly   bool
}

func parseDocument(body []byte) (*goquery.Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeParse, "could not parse results page", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// TotalResults reads the result count from the summary line, e.g.
// "<strong>1,204</strong> results found for 0%". ok is false when the
// summary is missing.
func TotalResults(doc *goquery.Document) (n int, ok bool) {
	doc.FindMatcher(selDiv).EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !strings.Contains(div.Text(), "results found for") {
			return true
		}
		// Only the innermost div carries the summary itself.
		if div.FindMatcher(selDiv).Length() > 0 {
			return true
		}
		strong := div.FindMatcher(selStrong).First()
		if strong.Length() == 0 {
			return true
		}
		v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(strong.Text()), ",", ""))
		if err != nil {
			return true
		}
		n, ok = v, true
		return false
	})
	return n, ok
}

// TotalPages reads N from the pager text "(showing page 1 of N)". A pager
// without a number yields 0; a missing pager yields ok == false.
func TotalPages(doc *goquery.Document) (n int, ok bool) {
	span := doc.FindMatcher(selPageNumber).First()
	if span.Length() == 0 {
		return 0, false
	}
	parent := span.Parent()
	if parent.Length() == 0 {
		return 0, false
	}
	m := reOfPages.FindStringSubmatch(parent.Text())
	if m == nil {
		return 0, true
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, true
	}
	return v, true
}

// ParseAccounts extracts every kept account card on the page.
//
// Card rows are: account number and amount due; owner and account type;
// property address. Non-real-estate cards are skipped when opts.RealOnly is
// set. A kept card missing any field fails the whole page, since that means
// the page layout changed.
func ParseAccounts(doc *goquery.Document, opts ParseOptions) ([]models.TaxAccount, error) {
	var (
		accounts []models.TaxAccount
		parseErr error
	)

	doc.FindMatcher(selAccountCard).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		acct, keep, err := parseCard(card, opts)
		if err != nil {
			parseErr = err
			return false
		}
		if keep {
			accounts = append(accounts, acct)
		}
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return accounts, nil
}

func parseCard(card *goquery.Selection, opts ParseOptions) (models.TaxAccount, bool, error) {
	acct := models.TaxAccount{Query: opts.Query, Page: opts.Page}
	var hasOwner, hasType, hasLocation bool

	rows := card.FindMatcher(selDetailRows)
	for i := 0; i < rows.Length() && i < 3; i++ {
		row := rows.Eq(i)
		switch i {
		case 0:
			acctTag := row.FindMatcher(selStrong).First()
			if acctTag.Length() == 0 {
				return acct, false, parseFailure("could not find the account number in result block", acct)
			}
			acct.Acct = cleanText(acctTag)

			dueTag := row.FindMatcher(selH4).First()
			if dueTag.Length() == 0 {
				return acct, false, parseFailure("could not find the total due in result block", acct)
			}
			acct.Due = cleanText(dueTag)

		case 1:
			if owner := row.FindMatcher(selStrong).First(); owner.Length() > 0 {
				acct.Owner, hasOwner = cleanText(owner), true
			}
			if typ := row.FindMatcher(selSpan).First(); typ.Length() > 0 {
				acct.Type, hasType = cleanText(typ), true
				if opts.RealOnly && acct.Type != realEstateType {
					return acct, false, nil
				}
			}

		case 2:
			contents := row.FindMatcher(selDiv).First().Contents()
			if contents.Length() <= 2 {
				return acct, false, parseFailure("could not find the address in result block", acct)
			}
			acct.Location, hasLocation = cleanText(contents.Eq(2)), true
		}
	}

	if acct.Acct == "" || !hasOwner || !hasType || !hasLocation {
		return acct, false, parseFailure("could not find all required fields in result block", acct)
	}
	acct.Link = opts.DetailsURL + acct.Acct
	return acct, true, nil
}

func parseFailure(msg string, acct models.TaxAccount) error {
	return models.NewScrapeError(models.ErrCodeParse,
		fmt.Sprintf("%s (query %s, page %d, account %q)", msg, acct.Query, acct.Page, acct.Acct), nil)
}

// cleanText returns the selection's text with whitespace runs collapsed.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
