package actionkit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// UserObject is the partial projection of a remote user this engine
// reads: the id for follow-up calls and the current phone list for the
// append-only merge.
type UserObject struct {
	ID     int64   `json:"id"`
	Email  string  `json:"email"`
	Phones []Phone `json:"phones"`
}

type Phone struct {
	Type   string `json:"type"`
	Phone  string `json:"phone"`
	User   string `json:"user,omitempty"`
	Source string `json:"source,omitempty"`
}

// ActionResponse is the result of a signup/unsubscribe action post. User
// is a reference path; the remote user id is its second-to-last segment.
type ActionResponse struct {
	CreatedUser bool   `json:"created_user"`
	User        string `json:"user"`
}

func (r ActionResponse) UserID() (string, error) {
	return trailingPathSegment(r.User)
}

type actionRequest struct {
	Email string  `json:"email"`
	Page  string  `json:"page"`
	Lists []int64 `json:"lists"`
}

// FindUserByEmail looks up an existing user by exact email match.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (UserObject, bool, error) {
	params := url.Values{}
	params.Set("email", email)
	resp, err := c.Do(ctx, http.MethodGet, "user", params, nil)
	if err != nil {
		return UserObject{}, false, err
	}
	var page struct {
		Objects []UserObject `json:"objects"`
	}
	if err := resp.Decode(&page); err != nil {
		return UserObject{}, false, err
	}
	if len(page.Objects) == 0 {
		return UserObject{}, false, nil
	}
	return page.Objects[0], true, nil
}

// PostSignup issues the signup action for email. The remote system treats
// repeated signups for the same email as create-if-absent, so the call is
// safe to repeat. lists rides along as-is: nil marshals as null, which the
// API reads as "no membership change".
func (c *Client) PostSignup(ctx context.Context, email string, lists []int64) (ActionResponse, error) {
	page := c.cfg.SignupPageShortName
	if page == "" {
		return ActionResponse{}, fmt.Errorf("signup_page_short_name is not configured")
	}
	c.logger.Info("signup_action", "email", email, "lists", lists)
	resp, err := c.Do(ctx, http.MethodPost, "action", nil, actionRequest{
		Email: email,
		Page:  page,
		Lists: lists,
	})
	if err != nil {
		return ActionResponse{}, err
	}
	var out ActionResponse
	if err := resp.Decode(&out); err != nil {
		return ActionResponse{}, err
	}
	return out, nil
}

// PostUnsubscribe removes the user from every list named on the configured
// unsubscribe page. The API offers no per-list removal, so convergence is
// unsubscribe-everything followed by a signup carrying the desired set.
func (c *Client) PostUnsubscribe(ctx context.Context, email string) error {
	page := c.cfg.UnsubscribePageShortName
	if page == "" {
		return fmt.Errorf("unsubscribe_page_short_name is not configured")
	}
	c.logger.Info("unsubscribe_action", "email", email)
	_, err := c.Do(ctx, http.MethodPost, "action", nil, map[string]any{
		"email": email,
		"page":  page,
	})
	return err
}

// GetUser fetches one user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (UserObject, error) {
	resp, err := c.Do(ctx, http.MethodGet, "user/"+userID, nil, nil)
	if err != nil {
		return UserObject{}, err
	}
	var user UserObject
	if err := resp.Decode(&user); err != nil {
		return UserObject{}, err
	}
	return user, nil
}

// PatchUser applies a partial update to the user's profile fields.
func (c *Client) PatchUser(ctx context.Context, userID string, payload map[string]any) error {
	_, err := c.Do(ctx, http.MethodPatch, "user/"+userID, nil, payload)
	return err
}

// UserRef builds the reference path the API expects when a payload points
// back at a user, e.g. on phone rows.
func UserRef(userID string) string {
	return "/rest/v1/user/" + userID + "/"
}

// FormatUserID renders a numeric user id the way path segments carry it.
func FormatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}
