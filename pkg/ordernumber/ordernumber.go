// Package ordernumber derives the human-readable order number shown to
// customers and vendors.
//
// Numbers look like PO-D260314-H0930-C1234-V5678-0042 and sort by creation
// time. Uniqueness is best effort: the trailing segment is the epoch
// milliseconds modulo 10000, so two orders for the same vendor and household
// in the same minute can collide. Code that needs a unique key must use the
// order's primary key instead.
package ordernumber

import (
	"fmt"
	"strings"
	"time"
)

const (
	prefix      = "PO"
	placeholder = "0000"
)

// Generate builds the order number for vendorID and householdID at now.
// Empty ids render as 0000. The date and time segments use now's location.
func Generate(vendorID, householdID string, now time.Time) string {
	return fmt.Sprintf("%s-D%s-H%s-C%s-V%s-%s",
		prefix,
		now.Format("060102"),
		now.Format("1504"),
		last4(householdID),
		last4(vendorID),
		last4(fmt.Sprintf("%d", now.UnixMilli())),
	)
}

func last4(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return placeholder
	}
	if len(value) >= 4 {
		return value[len(value)-4:]
	}
	return strings.Repeat("0", 4-len(value)) + value
}
