// Package date formats the calendar dates used in mail searches and log
// lines.
package date

import (
	"time"

	"github.com/goodsign/monday"
)

// SearchLayout is the date layout the mail search expects in after: and
// before: filters.
const SearchLayout = "2006/01/02"

// After returns the day that lies days calendar days before now.
func After(now time.Time, days int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-days, 0, 0, 0, 0, now.Location())
}

// SearchAfter formats the day that lies days calendar days before now for
// use in a search filter.
func SearchAfter(now time.Time, days int) string {
	return After(now, days).Format(SearchLayout)
}

// Display formats t as a long, localized date for log lines. Unknown
// locales fall back to English.
func Display(t time.Time, locale string) string {
	l := monday.Locale(locale)
	layout, ok := monday.FullFormatsByLocale[l]
	if !ok {
		return monday.Format(t, monday.DefaultFormatEnUSFull, monday.LocaleEnUS)
	}
	return monday.Format(t, layout, l)
}
