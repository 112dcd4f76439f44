package wayback

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JakeFAU/wiki-citation-archive/internal/citation"
)

// ErrMalformedBody reports a response body that is not JSON at all.
var ErrMalformedBody = errors.New("malformed availability response")

// StatusError describes an availability answer with a status other than 200.
type StatusError struct {
	StatusCode int
	Link       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Error %d for %s", e.StatusCode, e.Link)
}

// Snapshot is the closest archived capture reported by the API.
type Snapshot struct {
	Available bool   `json:"available"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

type availabilityPayload struct {
	ArchivedSnapshots *struct {
		Closest *Snapshot `json:"closest"`
	} `json:"archived_snapshots"`
}

// CheckStatus returns a *StatusError unless resp carries HTTP 200.
func CheckStatus(resp Response, link string) error {
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Link: link}
	}
	return nil
}

// MapResponse converts a 200 availability body into a result for item. The
// domain is always derived from the link. Missing or mistyped snapshot fields
// mean "not archived"; only a body that is not valid JSON yields an error.
func MapResponse(item citation.WorkItem, body []byte) (citation.Result, error) {
	res := citation.NewResult(item)
	if !json.Valid(body) {
		return res, fmt.Errorf("%w for %s", ErrMalformedBody, item.Link)
	}

	var payload availabilityPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return res, nil //nolint:nilerr // unexpected shapes are treated as not archived
	}
	if payload.ArchivedSnapshots == nil || payload.ArchivedSnapshots.Closest == nil {
		return res, nil
	}
	closest := payload.ArchivedSnapshots.Closest
	if !closest.Available {
		return res, nil
	}
	return res.WithSnapshot(closest.URL, closest.Timestamp), nil
}
