/*
Package calsync turns an external ICS calendar feed into candidate events
for reconciliation.

PURPOSE:
  The reconciler in agenda consumes plain {title, date-time} tuples and
  makes no assumption about their origin. This package is one such
  origin: it fetches an ICS subscription URL (or reads an exported .ics
  file) and flattens the VEVENTs into agenda.ExternalEvent values.

SCOPE:
  Only timed, non-recurring VEVENTs become candidates. All-day entries
  and RRULE masters are skipped: a therapy session has a concrete start
  time, and recurring blocks on a personal calendar (gym, lunch) are
  noise for the appointment book.

SEE ALSO:
  - agenda/reconcile.go: Consumes the returned events
*/
package calsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/psicoagenda/practice-engine/agenda"
)

// =============================================================================
// FEED - One ICS subscription
// =============================================================================

type Feed struct {
	URL    string
	Client *http.Client
}

func NewFeed(url string) *Feed {
	return &Feed{
		URL: url,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch downloads the feed and returns its candidate events, ascending
// by start time.
func (f *Feed) Fetch(ctx context.Context) ([]agenda.ExternalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch calendar feed: unexpected status %s", resp.Status)
	}

	return Parse(resp.Body)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse reads an ICS payload and returns its candidate events. Individual
// malformed VEVENTs are skipped so one broken entry cannot poison the
// whole import run.
func Parse(r io.Reader) ([]agenda.ExternalEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	var events []agenda.ExternalEvent
	skipped := 0
	for _, ve := range cal.Events() {
		event, err := parseVEvent(ve)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, event)
	}
	if skipped > 0 {
		log.Printf("calsync: skipped %d calendar entries during parse", skipped)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].OccursAt.Before(events[j].OccursAt)
	})
	return events, nil
}

var errNotCandidate = errors.New("not a candidate event")

func parseVEvent(ve *ical.VEvent) (agenda.ExternalEvent, error) {
	var out agenda.ExternalEvent

	// Recurring masters are schedule noise, not appointment candidates.
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return out, errNotCandidate
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}

	// All-day entries carry VALUE=DATE or a bare YYYYMMDD start.
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		if params := dtStart.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				return out, errNotCandidate
			}
		}
		if !strings.Contains(dtStart.Value, "T") {
			return out, errNotCandidate
		}
	}

	out.OccursAt = start
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	return out, nil
}
