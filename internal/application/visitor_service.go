package application

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// MaxPhotoBytes caps the decoded size of a visitor photo.
const MaxPhotoBytes = 2 * 1024 * 1024

// VisitorAPI exposes the backend visitor endpoints.
type VisitorAPI interface {
	CreateVisitor(ctx context.Context, visitor NewVisitor) (Visitor, error)
	ListVisitors(ctx context.Context, params ListVisitorsParams) ([]Visitor, error)
	GetVisitor(ctx context.Context, id string) (Visitor, error)
	ApproveVisitor(ctx context.Context, id string) (Visitor, error)
	RejectVisitor(ctx context.Context, id, reason string) (Visitor, error)
	CheckInVisitor(ctx context.Context, id string) (Visitor, error)
	CheckOutVisitor(ctx context.Context, id string) (Visitor, error)
}

// VisitorService drives the visitor lifecycle on behalf of one operator session.
type VisitorService struct {
	api      VisitorAPI
	session  SessionGate
	notifier Notifier
	issuer   tokenIssuer
	now      func() time.Time
	logger   *slog.Logger

	pending  *ListView[Visitor]
	inflight *inFlight
	scans    *scanLedger
	refresh  singleflight.Group

	mu    sync.RWMutex
	known map[string]Visitor
}

// NewVisitorService constructs a VisitorService with the provided dependencies.
func NewVisitorService(api VisitorAPI, session SessionGate, notifier Notifier, encoder QREncoder, checkInBaseURL string, now func() time.Time) *VisitorService {
	return NewVisitorServiceWithLogger(api, session, notifier, encoder, checkInBaseURL, now, nil)
}

// NewVisitorServiceWithLogger constructs a VisitorService with a specified logger.
func NewVisitorServiceWithLogger(api VisitorAPI, session SessionGate, notifier Notifier, encoder QREncoder, checkInBaseURL string, now func() time.Time, logger *slog.Logger) *VisitorService {
	if now == nil {
		now = time.Now
	}
	return &VisitorService{
		api:      api,
		session:  session,
		notifier: notifier,
		issuer:   tokenIssuer{baseURL: checkInBaseURL, encoder: encoder},
		now:      now,
		logger:   defaultLogger(logger),
		pending:  NewListView(func(v Visitor) string { return v.ID }),
		inflight: newInFlight(),
		scans:    newScanLedger(0, 0, now),
		known:    make(map[string]Visitor),
	}
}

func (s *VisitorService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "VisitorService", operation, attrs...)
}

func (s *VisitorService) ready(ctx context.Context) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("VisitorService is nil")
	}
	if s.api == nil {
		return Principal{}, fmt.Errorf("visitor api not configured")
	}
	return requirePrincipal(ctx, s.session)
}

// Register validates a registration form and creates the visitor.
//
// Pre-approved registrations come back approved together with a check-in
// token. A notification is attempted once; its failure is reported as a
// warning on the result and never undoes the registration.
func (s *VisitorService) Register(ctx context.Context, params RegisterVisitorParams) (result VisitorResult, err error) {
	if _, err = s.ready(ctx); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Register", "pre_approved", params.PreApproved)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "visitor registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "visitor registered", "visitor_id", result.Visitor.ID, "status", result.Visitor.Status)
	}()

	var payload NewVisitor
	payload, err = buildNewVisitor(params)
	if err != nil {
		return
	}

	var created Visitor
	created, err = s.api.CreateVisitor(ctx, payload)
	if err != nil {
		return
	}
	if created.Status == "" {
		created.Status = VisitorPending
		if params.PreApproved {
			created.Status = VisitorApproved
		}
	}
	s.remember(created)
	result.Visitor = created

	kind := NotifyRegistered
	if params.PreApproved {
		kind = NotifyPreApproved
		result.Token = s.issueToken(ctx, logger, created.ID)
	}
	result.Warning = notifyOnce(ctx, s.notifier, logger, Notification{Kind: kind, Visitor: created, Token: result.Token})
	return
}

func buildNewVisitor(params RegisterVisitorParams) (NewVisitor, error) {
	vErr := &ValidationError{}
	vErr.merge(validateContact(params))
	if params.PreApproved {
		vErr.merge(validateApprovalWindow(params.ApprovalWindowStart, params.ApprovalWindowEnd))
	} else if strings.TrimSpace(params.HostID) == "" {
		vErr.add("host_id", "Please enter the host employee ID")
	}
	if vErr.HasErrors() {
		return NewVisitor{}, vErr
	}

	payload := NewVisitor{
		PreApproved: params.PreApproved,
		FullName:    strings.TrimSpace(params.FullName),
		Email:       strings.TrimSpace(params.Email),
		Phone:       strings.TrimSpace(params.Phone),
		Company:     strings.TrimSpace(params.Company),
		Purpose:     strings.TrimSpace(params.Purpose),
		Photo:       photoDataURL(params.Photo, params.PhotoContentType),
	}
	if params.PreApproved {
		payload.ApprovalWindowStart = params.ApprovalWindowStart
		payload.ApprovalWindowEnd = params.ApprovalWindowEnd
	} else {
		payload.HostID = strings.TrimSpace(params.HostID)
	}
	return payload, nil
}

func validateContact(params RegisterVisitorParams) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(params.FullName) == "" {
		vErr.add("full_name", "Please enter the visitor's full name")
	}
	if email := strings.TrimSpace(params.Email); email == "" {
		vErr.add("email", "Email address is required")
	} else if !strings.Contains(email, "@") {
		vErr.add("email", "Please enter a valid email address")
	}
	if strings.TrimSpace(params.Phone) == "" {
		vErr.add("phone", "Please enter a phone number")
	}
	switch {
	case len(params.Photo) == 0:
		vErr.add("photo", "Please upload a visitor photo")
	case len(params.Photo) > MaxPhotoBytes:
		vErr.add("photo", "Photo size should be less than 2MB")
	}
	return vErr
}

func validateApprovalWindow(start, end time.Time) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case start.IsZero() || end.IsZero():
		vErr.add("approval_window", "Please enter both approval window times")
	case !end.After(start):
		vErr.add("approval_window", "Approval window end must be after start")
	}
	return vErr
}

func photoDataURL(photo []byte, contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(photo)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(photo)
}

// List fetches visitors visible to the current user.
func (s *VisitorService) List(ctx context.Context, params ListVisitorsParams) ([]Visitor, error) {
	if _, err := s.ready(ctx); err != nil {
		return nil, err
	}
	visitors, err := s.fetch(ctx, params)
	if err != nil {
		s.loggerWith(ctx, "List").ErrorContext(ctx, "failed to list visitors", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	return visitors, nil
}

// LoadPending refreshes the pending work view and returns its items filtered by search.
func (s *VisitorService) LoadPending(ctx context.Context, params ListVisitorsParams) ([]Visitor, error) {
	if _, err := s.ready(ctx); err != nil {
		return nil, err
	}

	search := params.Search
	params.Status = VisitorPending
	params.Search = ""

	visitors, err := s.fetch(ctx, params)
	if err != nil {
		s.loggerWith(ctx, "LoadPending").ErrorContext(ctx, "failed to fetch pending visitors", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	pending := make([]Visitor, 0, len(visitors))
	for _, visitor := range visitors {
		if visitor.Status == VisitorPending {
			pending = append(pending, visitor)
		}
	}
	s.pending.Replace(pending)
	return FilterVisitors(s.pending.Items(), search), nil
}

// Pending returns the current pending work view.
func (s *VisitorService) Pending() []Visitor {
	return s.pending.Items()
}

// ActionInFlight reports whether an action on the visitor is outstanding.
func (s *VisitorService) ActionInFlight(id string) bool {
	return s.pending.InFlight(id) || s.inflight.active(id)
}

// fetch deduplicates concurrent identical list requests.
func (s *VisitorService) fetch(ctx context.Context, params ListVisitorsParams) ([]Visitor, error) {
	key := strings.Join([]string{
		string(params.Status),
		params.Search,
		params.Sort,
		strconv.Itoa(params.Page),
		strconv.Itoa(params.Limit),
	}, "|")

	// The shared call outlives any single caller; each caller stops waiting on its own context.
	shared := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan(key, func() (any, error) {
		return s.api.ListVisitors(shared, params)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	visitors := res.Val.([]Visitor)
	for _, visitor := range visitors {
		s.remember(visitor)
	}
	out := make([]Visitor, len(visitors))
	copy(out, visitors)
	return out, nil
}

// FilterVisitors applies the pending view search over name, id, badge, email and company.
func FilterVisitors(visitors []Visitor, search string) []Visitor {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return visitors
	}
	out := make([]Visitor, 0, len(visitors))
	for _, visitor := range visitors {
		if strings.Contains(strings.ToLower(visitor.FullName), term) ||
			strings.Contains(strings.ToLower(visitor.ID), term) ||
			strings.Contains(strings.ToLower(visitor.BadgeID), term) ||
			strings.Contains(strings.ToLower(visitor.Email), term) ||
			strings.Contains(strings.ToLower(visitor.Company), term) {
			out = append(out, visitor)
		}
	}
	return out
}

// Get fetches one visitor and records its status.
func (s *VisitorService) Get(ctx context.Context, id string) (Visitor, error) {
	if _, err := s.ready(ctx); err != nil {
		return Visitor{}, err
	}
	visitor, err := s.api.GetVisitor(ctx, id)
	if err != nil {
		return Visitor{}, err
	}
	s.remember(visitor)
	return visitor, nil
}

// Approve moves a pending visitor to approved and notifies them with a fresh check-in token.
func (s *VisitorService) Approve(ctx context.Context, id string) (result VisitorResult, err error) {
	return s.resolve(ctx, "Approve", id, VisitorApproved, func(ctx context.Context) (Visitor, error) {
		return s.api.ApproveVisitor(ctx, id)
	}, "")
}

// Reject moves a pending visitor to rejected and notifies them.
func (s *VisitorService) Reject(ctx context.Context, id, reason string) (result VisitorResult, err error) {
	reason = strings.TrimSpace(reason)
	return s.resolve(ctx, "Reject", id, VisitorRejected, func(ctx context.Context) (Visitor, error) {
		return s.api.RejectVisitor(ctx, id, reason)
	}, reason)
}

func (s *VisitorService) resolve(ctx context.Context, operation, id string, target VisitorStatus, call func(context.Context) (Visitor, error), reason string) (result VisitorResult, err error) {
	if _, err = s.ready(ctx); err != nil {
		return
	}
	id = strings.TrimSpace(id)

	logger := s.loggerWith(ctx, operation, "visitor_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "visitor action failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "visitor action completed", "status", result.Visitor.Status)
	}()

	if !s.pending.Loaded() {
		if _, err = s.LoadPending(ctx, ListVisitorsParams{}); err != nil {
			return
		}
	}
	if known, ok := s.lookup(id); ok && known.Status != VisitorPending {
		err = checkTransition(known.Status, target)
		return
	}

	var updated Visitor
	err = runListAction(ctx, s.pending, id, func(ctx context.Context) error {
		var callErr error
		updated, callErr = call(ctx)
		return callErr
	})
	if err != nil {
		return
	}
	if updated.ID == "" {
		updated.ID = id
	}
	if updated.Status == "" {
		updated.Status = target
	}
	s.remember(updated)
	result.Visitor = updated

	kind := NotifyRejected
	if target == VisitorApproved {
		kind = NotifyApproved
		result.Token = s.issueToken(ctx, logger, updated.ID)
	}
	result.Warning = notifyOnce(ctx, s.notifier, logger, Notification{Kind: kind, Visitor: updated, Token: result.Token, Reason: reason})
	return
}

// CheckInWithToken checks in the visitor referenced by a scanned code.
//
// The code is locked as soon as it decodes, so a second scan of the same code
// is refused while the first is in progress or after it succeeded. The lock is
// released when the backend could not be asked, so the visitor may retry.
func (s *VisitorService) CheckInWithToken(ctx context.Context, code string) (visitor Visitor, err error) {
	if s == nil {
		err = fmt.Errorf("VisitorService is nil")
		return
	}
	logger := s.loggerWith(ctx, "CheckIn")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "check-in refused", "visitor_id", visitor.ID, "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "visitor checked in", "visitor_id", visitor.ID, "badge_id", visitor.BadgeID)
	}()

	var id string
	id, err = DecodeCheckInToken(code)
	if err != nil {
		return
	}
	visitor.ID = id

	if !s.scans.Consume(id) {
		err = ErrCodeAlreadyScanned
		return
	}
	defer func() {
		if err != nil && retryable(err) {
			s.scans.Release(id)
		}
	}()

	if _, err = s.ready(ctx); err != nil {
		return
	}
	if known, ok := s.lookup(id); ok {
		if err = checkTransition(known.Status, VisitorCheckedIn); err != nil {
			return
		}
	}
	if !s.inflight.begin(id) {
		err = ErrActionInFlight
		return
	}
	defer s.inflight.end(id)

	var updated Visitor
	updated, err = s.api.CheckInVisitor(ctx, id)
	if err != nil {
		return
	}
	if updated.ID == "" {
		updated.ID = id
	}
	s.remember(updated)
	visitor = updated
	if updated.Status == VisitorPending {
		err = ErrNotApproved
	}
	return
}

// CheckOut records a checked-in visitor leaving the premises.
func (s *VisitorService) CheckOut(ctx context.Context, id string) (visitor Visitor, err error) {
	if _, err = s.ready(ctx); err != nil {
		return
	}
	id = strings.TrimSpace(id)

	logger := s.loggerWith(ctx, "CheckOut", "visitor_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-out failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "visitor checked out")
	}()

	known, ok := s.lookup(id)
	if !ok {
		if known, err = s.Get(ctx, id); err != nil {
			return
		}
	}
	if err = checkTransition(known.Status, VisitorCheckedOut); err != nil {
		return
	}
	if !s.inflight.begin(id) {
		err = ErrActionInFlight
		return
	}
	defer s.inflight.end(id)

	visitor, err = s.api.CheckOutVisitor(ctx, id)
	if err != nil {
		return
	}
	if visitor.ID == "" {
		visitor.ID = id
	}
	s.remember(visitor)
	return
}

// CheckInToken issues the check-in code for an approved visitor.
func (s *VisitorService) CheckInToken(visitor Visitor) (*CheckInToken, error) {
	if visitor.Status != VisitorApproved {
		return nil, ErrNotApproved
	}
	return s.issuer.issue(visitor.ID)
}

// ResetScans starts a new scanning session.
func (s *VisitorService) ResetScans() {
	s.scans.Reset()
}

func (s *VisitorService) issueToken(ctx context.Context, logger *slog.Logger, id string) *CheckInToken {
	token, err := s.issuer.issue(id)
	if err != nil {
		// The URL is still usable without its rendered image.
		logger.WarnContext(ctx, "failed to render check-in code", "visitor_id", id, "error", err)
	}
	return token
}

func (s *VisitorService) remember(visitor Visitor) {
	if visitor.ID == "" {
		return
	}
	s.mu.Lock()
	s.known[visitor.ID] = visitor
	s.mu.Unlock()
}

func (s *VisitorService) lookup(id string) (Visitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visitor, ok := s.known[id]
	return visitor, ok
}

// retryable reports whether err left the backend untouched.
func retryable(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrAuthenticationRejected) ||
		errors.Is(err, ErrActionInFlight) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
