package busvision

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

const (
	passedSuffix = "を通過"
	timeSep      = "に"
)

// Parse extracts the rank-1 vehicle from an approach page.
// It returns domain.ErrNoArrivalData when the page has nothing usable.
func Parse(markup string) (domain.ArrivalRecord, error) {
	if strings.TrimSpace(markup) == "" {
		return domain.ArrivalRecord{}, fmt.Errorf("%w: empty page", domain.ErrNoArrivalData)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return domain.ArrivalRecord{}, fmt.Errorf("%w: %v", domain.ErrNoArrivalData, err)
	}

	// "該当する接近情報はありません。"
	if doc.Find("div#errorMsg.errorMsg").Length() > 0 {
		return domain.ArrivalRecord{}, fmt.Errorf("%w: no approaching service", domain.ErrNoArrivalData)
	}

	var (
		rec   domain.ArrivalRecord
		found bool
	)
	doc.Find("div.approachData").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if strings.TrimSpace(block.Find("span#number").First().Text()) != "1" {
			return true
		}
		r, ok := parseBlock(block)
		if ok {
			rec, found = r, true
			return false
		}
		return true
	})
	if !found {
		return domain.ArrivalRecord{}, fmt.Errorf("%w: no rank-1 vehicle", domain.ErrNoArrivalData)
	}
	return rec, nil
}

// parseBlock reads e.g. "11:39に白塚口･栗真中山町を通過" and "12個前を通過".
func parseBlock(block *goquery.Selection) (domain.ArrivalRecord, bool) {
	info := block.Find("div#approachInfo").First()
	pass := block.Find("span#passInfo").First()
	if info.Length() == 0 || pass.Length() == 0 {
		return domain.ArrivalRecord{}, false
	}

	timePart, location, ok := strings.Cut(compact(info.Text()), timeSep)
	if !ok {
		return domain.ArrivalRecord{}, false
	}
	location = strings.TrimSuffix(location, passedSuffix)
	stopsAway := strings.TrimSuffix(compact(pass.Text()), passedSuffix)

	return domain.NewArrivalRecord(timePart, location, stopsAway), true
}

// compact drops all whitespace the markup puts between inline elements.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
