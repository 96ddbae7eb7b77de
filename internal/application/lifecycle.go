package application

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// visitorTransitions is the lifecycle graph. "" stands for a record that does
// not exist yet.
var visitorTransitions = map[VisitorStatus][]VisitorStatus{
	"":               {VisitorPending, VisitorApproved},
	VisitorPending:   {VisitorApproved, VisitorRejected},
	VisitorApproved:  {VisitorCheckedIn},
	VisitorCheckedIn: {VisitorCheckedOut},
}

// CanTransition reports whether a visitor may move from one status to another.
func CanTransition(from, to VisitorStatus) bool {
	for _, next := range visitorTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns the error surfaced for a refused transition.
func checkTransition(from, to VisitorStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	switch {
	case to == VisitorCheckedIn && from == VisitorPending:
		return ErrNotApproved
	case to == VisitorCheckedOut && from == VisitorApproved:
		return ErrNotCheckedIn
	case (to == VisitorApproved || to == VisitorRejected) && from != VisitorPending:
		return fmt.Errorf("%w: visitor is %s", ErrStaleAction, from)
	}
	return fmt.Errorf("%w: %s to %s", ErrTransitionNotAllowed, from, to)
}

var checkInPattern = regexp.MustCompile(`/visitors/([^/]+)/check-in`)

// DecodeCheckInToken extracts the visitor id from a scanned check-in code.
func DecodeCheckInToken(token string) (string, error) {
	match := checkInPattern.FindStringSubmatch(strings.TrimSpace(token))
	if match == nil {
		return "", ErrInvalidCheckInCode
	}
	id, err := url.PathUnescape(match[1])
	if err != nil || strings.TrimSpace(id) == "" {
		return "", ErrInvalidCheckInCode
	}
	return id, nil
}

// CheckInURL builds the check-in code for a visitor under base.
func CheckInURL(base, visitorID string) string {
	return strings.TrimRight(base, "/") + "/visitors/" + url.PathEscape(visitorID) + "/check-in"
}

// QREncoder renders content as a PNG image.
type QREncoder interface {
	Encode(content string) ([]byte, error)
}

// tokenIssuer builds check-in tokens for approved visitors.
type tokenIssuer struct {
	baseURL string
	encoder QREncoder
}

func (i tokenIssuer) issue(visitorID string) (*CheckInToken, error) {
	token := &CheckInToken{
		VisitorID: visitorID,
		URL:       CheckInURL(i.baseURL, visitorID),
	}
	if i.encoder == nil {
		return token, nil
	}
	png, err := i.encoder.Encode(token.URL)
	if err != nil {
		return token, fmt.Errorf("render check-in code: %w", err)
	}
	token.PNG = png
	token.DataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return token, nil
}
