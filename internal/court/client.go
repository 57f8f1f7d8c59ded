// Package court drives the club's Liferay/PrimeFaces reservation site
// through a headless browser. The flow is: log in, open the booking grid
// for the target date, open the reservation form through a known entry
// slot, pick the real court/time/duration from the form dropdowns, save,
// and read back the site's success or error message.
package court

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/example/court-scheduler/internal/requests"
)

type Credentials struct {
	URL      string
	Username string
	Password string
}

type Client struct {
	creds    Credentials
	headless bool
}

func New(creds Credentials, headless bool) *Client {
	return &Client{creds: creds, headless: headless}
}

// Grid entry point: every booking starts by clicking the same known cell,
// then the form dropdowns select the real slot.
const (
	entryAreaID = "11"
	entryTime   = "06:00 AM"
)

// PrimeFaces component ids on the reservation form.
const (
	courtDropdownID    = "_activities_WAR_northstarportlet_:activityForm:j_idt1068_label"
	timeDropdownID     = "_activities_WAR_northstarportlet_:activityForm:fromTime_label"
	durationDropdownID = "_activities_WAR_northstarportlet_:activityForm:j_idt1082_label"
)

var loginUserSelectors = []string{
	`#_com_liferay_login_web_portlet_LoginPortlet_login`,
	`input[name*='login']`,
	`input[id*='login']`,
}

var loginPasswordSelectors = []string{
	`#_com_liferay_login_web_portlet_LoginPortlet_password`,
	`input[type='password']`,
}

var saveButtonSelectors = []string{
	`button[type='submit'].btn-save`,
	`button.ui-area-btn-success`,
	`button[type='submit']`,
}

var successXPaths = []string{
	`//div[@id='_activities_WAR_northstarportlet_:activityForm:activityMessage']//label[contains(@class, 'portlet-msg-success')]`,
	`//label[contains(text(), 'Reservation created successfully')]`,
	`//label[contains(@class, 'activity-message') and contains(text(), 'successfully')]`,
	`//div[contains(@class, 'ui-messages-info')]`,
}

var errorXPaths = []string{
	`//div[contains(@class, 'ui-messages-error')]`,
	`//div[contains(@class, 'ui-message-error')]`,
	`//div[contains(@class, 'ui-growl-error')]`,
	`//div[contains(text(), 'unavailable')]`,
	`//div[contains(text(), 'already booked')]`,
}

// Attempt performs one reservation attempt. The caller's context deadline
// bounds the whole browser session.
func (c *Client) Attempt(ctx context.Context, r requests.Request) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	if err := c.login(bctx); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return c.book(bctx, r)
}

func (c *Client) login(ctx context.Context) error {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(c.creds.URL),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return err
	}

	userSel, err := firstVisible(ctx, loginUserSelectors)
	if err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	passSel, err := firstVisible(ctx, loginPasswordSelectors)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}

	if err := chromedp.Run(ctx,
		chromedp.SendKeys(userSel, c.creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(passSel, c.creds.Password, chromedp.ByQuery),
		chromedp.Click(`button[type='submit']`, chromedp.ByQuery),
		chromedp.Sleep(3*time.Second),
	); err != nil {
		return err
	}

	var location string
	if err := chromedp.Run(ctx, chromedp.Location(&location)); err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(location), "login") {
		return fmt.Errorf("still on login page, authentication rejected")
	}
	return nil
}

func (c *Client) book(ctx context.Context, r requests.Request) (string, error) {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(c.creds.URL),
		chromedp.Sleep(3*time.Second),
	); err != nil {
		return "", err
	}

	// Pick the date in the horizontal calendar strip; the grid refreshes
	// over AJAX.
	dateXP := dateLinkXPath(r.TargetDate)
	if err := chromedp.Run(ctx,
		chromedp.ScrollIntoView(dateXP, chromedp.BySearch),
		chromedp.Click(dateXP, chromedp.BySearch),
		chromedp.Sleep(4*time.Second),
	); err != nil {
		return "", fmt.Errorf("date %s not present in grid: %w", r.TargetDate.Format("2006-01-02"), err)
	}

	// Open the reservation form through the entry cell.
	entryXP := entryCellXPath()
	if err := chromedp.Run(ctx,
		chromedp.ScrollIntoView(entryXP, chromedp.BySearch),
		chromedp.Click(entryXP, chromedp.BySearch),
		chromedp.Sleep(5*time.Second),
	); err != nil {
		return "", fmt.Errorf("entry slot not found in grid: %w", err)
	}

	// Court is a preference; the site keeps its own default when the
	// option is missing.
	if r.Court != "" {
		if err := c.selectDropdown(ctx, courtDropdownID, r.Court); err != nil {
			return "", fmt.Errorf("court %q not selectable: %w", r.Court, err)
		}
	}
	if err := c.selectDropdown(ctx, timeDropdownID, clockTime12(r.TargetTime)); err != nil {
		return "", fmt.Errorf("time %s not selectable: %w", r.TargetTime, err)
	}
	if err := c.selectDropdown(ctx, durationDropdownID, fmt.Sprintf("%d", r.DurationMinutes)); err != nil {
		return "", fmt.Errorf("duration %d not selectable: %w", r.DurationMinutes, err)
	}

	saveSel, err := firstVisible(ctx, saveButtonSelectors)
	if err != nil {
		return "", fmt.Errorf("save button: %w", err)
	}
	if err := chromedp.Run(ctx,
		chromedp.ScrollIntoView(saveSel, chromedp.ByQuery),
		chromedp.Click(saveSel, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return "", err
	}

	if msg, ok := firstText(ctx, successXPaths); ok {
		return fmt.Sprintf("booked %s at %s: %s", r.TargetDate.Format("2006-01-02"), r.TargetTime, msg), nil
	}
	if msg, ok := firstText(ctx, errorXPaths); ok {
		return "", fmt.Errorf("site rejected booking: %s", msg)
	}
	return "", fmt.Errorf("no success or error message after submit, verify manually")
}

// selectDropdown opens a PrimeFaces selectonemenu by its label id and
// clicks the option with the given label.
func (c *Client) selectDropdown(ctx context.Context, labelID, option string) error {
	if err := chromedp.Run(ctx,
		chromedp.Click(labelXPath(labelID), chromedp.BySearch),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(dropdownOptionXPath(option), chromedp.BySearch),
		chromedp.Sleep(500*time.Millisecond),
	); err != nil {
		return err
	}
	return nil
}

// firstVisible returns the first selector in sels that is visible,
// checking each under a short deadline so a missing one doesn't eat the
// whole attempt budget.
func firstVisible(ctx context.Context, sels []string) (string, error) {
	for _, sel := range sels {
		sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := chromedp.Run(sctx, chromedp.WaitVisible(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("none of %d candidate selectors matched", len(sels))
}

// firstText returns the text of the first matching XPath, if any.
func firstText(ctx context.Context, xpaths []string) (string, bool) {
	for _, xp := range xpaths {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		var text string
		err := chromedp.Run(sctx, chromedp.Text(xp, &text, chromedp.BySearch))
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}
