package court

import (
	"fmt"
	"time"
)

// clockTime12 converts "15:04" wall-clock input to the site's 12-hour
// dropdown labels ("03:04 PM"). Unparsable input is passed through so the
// site reports the mismatch instead of us guessing.
func clockTime12(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("03:04 PM")
}

// dateLinkXPath locates the target day in the horizontal calendar strip.
// The strip shows the day number with either the full or abbreviated month
// name underneath.
func dateLinkXPath(d time.Time) string {
	day := d.Day()
	month := d.Month().String()
	abbrev := d.Format("Jan")
	return fmt.Sprintf(
		"//div[contains(@class, 'horizontal-dates')]//a["+
			".//span[contains(@class, 'calendar-date') and normalize-space()='%d'] and "+
			".//span[contains(@class, 'calendar-year') and (normalize-space()='%s' or normalize-space()='%s')]"+
			"]",
		day, month, abbrev)
}

// entryCellXPath locates the clickable TD wrapping the fixed entry slot.
func entryCellXPath() string {
	return fmt.Sprintf("//div[@data-area-id='%s' and @data-start-time='%s']/ancestor::td[1]", entryAreaID, entryTime)
}

func labelXPath(labelID string) string {
	return fmt.Sprintf("//*[@id='%s']", labelID)
}

// dropdownOptionXPath matches a PrimeFaces selectonemenu option by its
// data-label first, falling back to visible text.
func dropdownOptionXPath(option string) string {
	return fmt.Sprintf(
		"//li[contains(@class, 'ui-selectonemenu-item') and (@data-label='%s' or normalize-space(text())='%s')]",
		option, option)
}
