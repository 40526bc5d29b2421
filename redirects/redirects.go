// Package redirects builds a redirect route table from a small
// declarative JSON document.
//
// The document maps a request URI to either a bare target string or an
// object carrying the target plus per-entry overrides:
//
//	{
//	  "/old-page": "/new-page",
//	  "/blog": {"target": "https://blog.example.com", "status": 301, "trailing_slash": true}
//	}
package redirects

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frontage-io/frontage"
)

// Entry is one redirect rule, fully resolved against the table defaults.
type Entry struct {
	Pattern string
	Target  string
	Status  int
}

// External reports whether the entry points at an absolute URL rather
// than a path on the same host.
func (e Entry) External() bool {
	return strings.HasPrefix(e.Target, "http:") || strings.HasPrefix(e.Target, "https:")
}

// Options carries the table-wide defaults.
type Options struct {
	// DefaultStatus is used by entries without their own status code.
	// Values outside the open (300, 400) interval are warned about and
	// replaced with 302.
	DefaultStatus int
	// TrailingSlash registers a slash-twin route for every entry by
	// default ("/x" also claims "/x/"). Entries may override it.
	TrailingSlash bool
}

// Table is an immutable, ordered set of redirect entries.
type Table struct {
	entries []Entry
}

// rawEntry is the tagged-variant form an entry takes in the document.
type rawEntry struct {
	Target        string `json:"target"`
	Status        *int   `json:"status"`
	TrailingSlash *bool  `json:"trailing_slash"`
}

// Parse reads a redirects document. Malformed JSON fails the whole load;
// an individual entry with an empty target is logged and skipped.
func Parse(data []byte, opts Options, log *slog.Logger) (*Table, error) {
	if log == nil {
		log = slog.Default()
	}

	defaultStatus := opts.DefaultStatus
	if defaultStatus == 0 {
		defaultStatus = frontage.DefaultRedirectCode
	} else if !frontage.ValidRedirectCode(defaultStatus) {
		log.Warn("ignoring redirect status outside of range", "status", defaultStatus)
		defaultStatus = frontage.DefaultRedirectCode
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse redirects: %w: %s", frontage.ErrInvalidInput, err)
	}

	t := &Table{}
	for uri, raw := range doc {
		var entry rawEntry
		var target string
		if err := json.Unmarshal(raw, &target); err == nil {
			entry.Target = target
		} else if err := json.Unmarshal(raw, &entry); err != nil {
			log.Warn("skipping malformed redirect entry", "uri", uri, "err", err)
			continue
		}

		if entry.Target == "" {
			log.Warn("skipping redirect entry without target", "uri", uri)
			continue
		}

		status := defaultStatus
		if entry.Status != nil {
			if frontage.ValidRedirectCode(*entry.Status) {
				status = *entry.Status
			} else {
				log.Warn("ignoring redirect status outside of range",
					"uri", uri, "status", *entry.Status)
			}
		}

		log.Info("setting up redirect", "uri", uri, "target", entry.Target, "status", status)
		t.entries = append(t.entries, Entry{Pattern: uri, Target: entry.Target, Status: status})

		twin := opts.TrailingSlash
		if entry.TrailingSlash != nil {
			twin = *entry.TrailingSlash
		}
		if twin && uri != "/" {
			opposite := uri + "/"
			if strings.HasSuffix(uri, "/") {
				opposite = strings.TrimSuffix(uri, "/")
			}
			t.entries = append(t.entries, Entry{Pattern: opposite, Target: entry.Target, Status: status})
		}
	}

	return t, nil
}

// Entries returns the resolved redirect rules, slash twins included.
func (t *Table) Entries() []Entry {
	return t.entries
}

// Len reports the number of registered rules.
func (t *Table) Len() int { return len(t.entries) }
