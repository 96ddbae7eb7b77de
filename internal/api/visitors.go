package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/visitor-desk/internal/application"
)

var _ application.VisitorAPI = (*Client)(nil)

// Backend messages that correspond to local lifecycle errors.
const (
	msgMustBeApproved  = "Visitor Must Be Approved First"
	msgMustBeCheckedIn = "Visitor Must Be Checked-In First"
)

// CreateVisitor registers a visitor. Pre-approved visitors go to the
// pre-approval endpoint and are hosted by the caller.
func (c *Client) CreateVisitor(ctx context.Context, visitor application.NewVisitor) (application.Visitor, error) {
	req := call{op: "create_visitor", method: http.MethodPost}
	if visitor.PreApproved {
		req.op = "pre_approve_visitor"
		req.path = "/visitors/pre-approve"
		req.body = preApprovedVisitorRequest{
			FullName:            visitor.FullName,
			Email:               visitor.Email,
			Phone:               visitor.Phone,
			Company:             visitor.Company,
			Purpose:             visitor.Purpose,
			Photo:               visitor.Photo,
			ApprovalWindowStart: formatTime(visitor.ApprovalWindowStart, c.location),
			ApprovalWindowEnd:   formatTime(visitor.ApprovalWindowEnd, c.location),
		}
	} else {
		req.path = "/visitors/not-pre-approve"
		req.body = directVisitorRequest{
			FullName: visitor.FullName,
			Email:    visitor.Email,
			Phone:    visitor.Phone,
			Company:  visitor.Company,
			Purpose:  visitor.Purpose,
			HostID:   wireID(visitor.HostID),
			Photo:    visitor.Photo,
		}
	}
	return c.visitorCall(ctx, req, "Visitor registration returned no visitor")
}

// ListVisitors returns the visitors visible to the caller.
func (c *Client) ListVisitors(ctx context.Context, params application.ListVisitorsParams) ([]application.Visitor, error) {
	query := url.Values{}
	if params.Status != "" {
		query.Set("status", string(params.Status))
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		query.Set("search", s)
	}
	if params.Sort != "" {
		query.Set("sort", params.Sort)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var out visitorsEnvelope
	if _, err := c.do(ctx, call{op: "list_visitors", method: http.MethodGet, path: "/visitors", query: query}, &out); err != nil {
		return nil, err
	}
	visitors := make([]application.Visitor, 0, len(out.Visitors))
	for _, v := range out.Visitors {
		visitors = append(visitors, v.visitor(c.location))
	}
	return visitors, nil
}

// GetVisitor fetches one visitor.
func (c *Client) GetVisitor(ctx context.Context, id string) (application.Visitor, error) {
	return c.visitorCall(ctx, call{op: "get_visitor", method: http.MethodGet, path: visitorPath(id, "")}, "Visitor not returned")
}

// ApproveVisitor moves a pending visitor to approved.
func (c *Client) ApproveVisitor(ctx context.Context, id string) (application.Visitor, error) {
	return c.visitorCall(ctx, call{op: "approve_visitor", method: http.MethodPut, path: visitorPath(id, "approve")}, "Visitor approval returned no visitor")
}

// RejectVisitor moves a pending visitor to rejected.
func (c *Client) RejectVisitor(ctx context.Context, id, reason string) (application.Visitor, error) {
	return c.visitorCall(ctx, call{
		op:     "reject_visitor",
		method: http.MethodPut,
		path:   visitorPath(id, "reject"),
		body:   reasonRequest{Reason: reason},
	}, "Visitor rejection returned no visitor")
}

// CheckInVisitor records arrival. A success status without a visitor, such
// as 201 for an already checked-in visitor, is a business error.
func (c *Client) CheckInVisitor(ctx context.Context, id string) (application.Visitor, error) {
	return c.visitorCall(ctx, call{
		op:     "check_in_visitor",
		method: http.MethodPut,
		path:   visitorPath(id, "check-in"),
		onMessage: func(status int, message string) error {
			if status == http.StatusBadRequest && strings.EqualFold(message, msgMustBeApproved) {
				return application.ErrNotApproved
			}
			return nil
		},
	}, "Check-in returned no visitor")
}

// CheckOutVisitor records departure.
func (c *Client) CheckOutVisitor(ctx context.Context, id string) (application.Visitor, error) {
	return c.visitorCall(ctx, call{
		op:     "check_out_visitor",
		method: http.MethodPut,
		path:   visitorPath(id, "check-out"),
		onMessage: func(status int, message string) error {
			if status == http.StatusBadRequest && strings.EqualFold(message, msgMustBeCheckedIn) {
				return application.ErrNotCheckedIn
			}
			return nil
		},
	}, "Check-out returned no visitor")
}

func (c *Client) visitorCall(ctx context.Context, req call, missing string) (application.Visitor, error) {
	var out visitorEnvelope
	status, err := c.do(ctx, req, &out)
	if err != nil {
		return application.Visitor{}, err
	}
	if out.Visitor == nil {
		return application.Visitor{}, missingBody(status, out.Message, missing)
	}
	return out.Visitor.visitor(c.location), nil
}

func visitorPath(id, action string) string {
	path := "/visitors/" + url.PathEscape(strings.TrimSpace(id))
	if action != "" {
		path += "/" + action
	}
	return path
}
