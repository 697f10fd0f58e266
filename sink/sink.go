// Package sink reconciles inbound contact records against ActionKit:
// rather than blind inserts, each record is converged onto the existing
// remote user, their list subscriptions, custom fields, and phone numbers
// through idempotent API writes.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hotgluexyz/target-actionkit/actionkit"
)

const phoneSource = "target_actionkit"

// Sink drives the upsert state machine for contact records. It owns the
// list directory for the lifetime of the run; processing is strictly
// sequential per record, and the sink itself never retries — retry policy
// belongs to the caller acting on the error classification.
type Sink struct {
	client *actionkit.Client
	lists  *actionkit.ListDirectory
	logger *slog.Logger
}

func New(client *actionkit.Client, logger *slog.Logger) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("actionkit client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		client: client,
		lists:  actionkit.NewListDirectory(client, logger),
		logger: logger,
	}, nil
}

// Lists exposes the directory for callers that want to warm it eagerly.
func (s *Sink) Lists() *actionkit.ListDirectory {
	return s.lists
}

// UpsertRecord converges remote state onto one record's intent:
// validate → resolve membership intent → subscribe/unsubscribe actions →
// profile patch → phone merge. Every write is idempotent or additive, so
// a partially converged record is safe to resubmit.
func (s *Sink) UpsertRecord(ctx context.Context, record ContactRecord) (UpsertResult, error) {
	payload, desired, err := s.preprocessRecord(ctx, record)
	if err != nil {
		return UpsertResult{}, err
	}
	s.logger.Info("upserting_user", "email", record.Email)

	var action actionkit.ActionResponse
	switch record.SubscribeStatus {
	case StatusUnsubscribed:
		action, err = s.reconcileUnsubscribe(ctx, record.Email, desired)
	default:
		// Subscribed and unspecified intents both carry the desired
		// set directly; signup is create-if-absent on the remote side.
		action, err = s.client.PostSignup(ctx, record.Email, desired)
	}
	if err != nil {
		return UpsertResult{}, err
	}

	userID, err := action.UserID()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("action response user reference: %w", err)
	}

	if err := s.client.PatchUser(ctx, userID, payload); err != nil {
		return UpsertResult{RemoteID: userID}, err
	}
	if err := s.mergePhoneNumbers(ctx, userID, record.PhoneNumbers); err != nil {
		return UpsertResult{RemoteID: userID}, err
	}

	return UpsertResult{
		RemoteID:  userID,
		Success:   true,
		IsUpdated: !action.CreatedUser,
	}, nil
}

// reconcileUnsubscribe removes the user from every list outside the
// desired set. The API only supports "unsubscribe from everything", so
// when anything must go the user is unsubscribed wholesale and then signed
// back up with the desired set; when nothing must go, the signup alone
// converges membership without touching existing subscriptions.
func (s *Sink) reconcileUnsubscribe(ctx context.Context, email string, desired []int64) (actionkit.ActionResponse, error) {
	user, found, err := s.client.FindUserByEmail(ctx, email)
	if err != nil {
		return actionkit.ActionResponse{}, err
	}
	if !found {
		// Fresh signup with no lists.
		return s.client.PostSignup(ctx, email, []int64{})
	}

	current, err := s.client.SubscribedLists(ctx, actionkit.FormatUserID(user.ID))
	if err != nil {
		return actionkit.ActionResponse{}, err
	}
	removed := complement(current, desired)
	s.logger.Info("membership_diff", "email", email, "current", current, "desired", desired, "removing", removed)

	if len(removed) > 0 {
		if err := s.client.PostUnsubscribe(ctx, email); err != nil {
			return actionkit.ActionResponse{}, err
		}
	}
	if desired == nil {
		desired = []int64{}
	}
	return s.client.PostSignup(ctx, email, desired)
}

// mergePhoneNumbers appends the record's phones to the user's existing
// list. Append-only: no de-duplication against numbers already present.
func (s *Sink) mergePhoneNumbers(ctx context.Context, userID string, phones []PhoneNumber) error {
	if phones == nil {
		return nil
	}
	user, err := s.client.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	merged := user.Phones
	for _, phone := range phones {
		kind := phone.Type
		if kind == "" {
			kind = "mobile"
		}
		merged = append(merged, actionkit.Phone{
			Type:   kind,
			Phone:  phone.Number,
			User:   actionkit.UserRef(userID),
			Source: phoneSource,
		})
	}
	return s.client.PatchUser(ctx, userID, map[string]any{"phones": merged})
}

// complement returns the members of current that are not in desired, in
// current's order.
func complement(current, desired []int64) []int64 {
	keep := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		keep[id] = struct{}{}
	}
	var out []int64
	for _, id := range current {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
