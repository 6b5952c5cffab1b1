// Package httpdate formats and parses the millisecond-precision HTTP-style
// dates carried by the If-Modified-Since and Last-Modified headers.
package httpdate

import (
	"fmt"
	"time"
)

// Layout is the wire pattern: weekday, day month year, time with
// milliseconds, literal GMT zone.
const Layout = "Mon, 02 Jan 2006 15:04:05.000 GMT"

// Format renders an epoch-milliseconds timestamp in GMT.
func Format(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(Layout)
}

// Parse reads a header value back into epoch milliseconds.
func Parse(value string) (int64, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return 0, fmt.Errorf("parse http date %q: %w", value, err)
	}
	return t.UnixMilli(), nil
}
