package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/hotgluexyz/target-actionkit/actionkit"
)

// fakeActionKit scripts the endpoints one reconciliation touches and
// records the writes it receives.
type fakeActionKit struct {
	t *testing.T

	directory     string // list/ collection page body
	userSearch    string // user?email= page body
	subscriptions string // subscription/ page body
	canonical     map[string]string
	user          string // user/<id> body for the phone merge
	patchStatus   int

	actions []map[string]any
	patches []map[string]any
}

func (f *fakeActionKit) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		switch {
		case r.Method == http.MethodGet && path == "/rest/v1/list/":
			_, _ = w.Write([]byte(f.directory))
		case r.Method == http.MethodGet && path == "/rest/v1/user":
			_, _ = w.Write([]byte(f.userSearch))
		case r.Method == http.MethodGet && path == "/rest/v1/subscription/":
			_, _ = w.Write([]byte(f.subscriptions))
		case r.Method == http.MethodGet && strings.HasPrefix(path, "/rest/v1/list/"):
			body, ok := f.canonical[path]
			if !ok {
				f.t.Fatalf("unexpected canonical list fetch: %s", path)
			}
			_, _ = w.Write([]byte(body))
		case r.Method == http.MethodPost && path == "/rest/v1/action":
			f.actions = append(f.actions, decodeBody(f.t, r.Body))
			_, _ = w.Write([]byte(`{"created_user": false, "user": "/rest/v1/user/42/"}`))
		case r.Method == http.MethodPatch && strings.HasPrefix(path, "/rest/v1/user/"):
			f.patches = append(f.patches, decodeBody(f.t, r.Body))
			if f.patchStatus != 0 {
				w.WriteHeader(f.patchStatus)
				_, _ = w.Write([]byte(`{"errors":{"fields":["unknown field"]}}`))
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet && strings.HasPrefix(path, "/rest/v1/user/"):
			_, _ = w.Write([]byte(f.user))
		default:
			f.t.Fatalf("unexpected request: %s %s", r.Method, path)
		}
	})
}

func decodeBody(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read request body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func actionLists(t *testing.T, action map[string]any) []int64 {
	t.Helper()
	raw, ok := action["lists"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		t.Fatalf("lists has unexpected shape: %v", raw)
	}
	out := make([]int64, 0, len(list))
	for _, v := range list {
		out = append(out, int64(v.(float64)))
	}
	return out
}

func TestUpsertRecordCreatesNewUser(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/list/":
			_, _ = w.Write([]byte(`{"objects": [{"id": 5, "name": "Donors"}], "meta": {"next": ""}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/action":
			body := decodeBody(t, r.Body)
			if body["page"] != "signup" {
				t.Fatalf("action page = %v", body["page"])
			}
			_, _ = w.Write([]byte(`{"created_user": true, "user": "/rest/v1/user/88/"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/rest/v1/user/88":
			body := decodeBody(t, r.Body)
			if body["first_name"] != "Ada" {
				t.Fatalf("patch first_name = %v", body["first_name"])
			}
			if _, hasStatus := body["subscribe_status"]; hasStatus {
				t.Fatal("membership intent must not be patched onto the profile")
			}
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
	s, _ := newTestSink(t, handler)

	result, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email:           "ada@example.org",
		FirstName:       "Ada",
		Lists:           []string{"Donors"},
		SubscribeStatus: StatusSubscribed,
	})
	if err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if !result.Success || result.RemoteID != "88" {
		t.Fatalf("result = %+v", result)
	}
	if result.IsUpdated {
		t.Fatal("created_user true must report IsUpdated false")
	}
}

func TestUpsertRecordUnsubscribeComplement(t *testing.T) {
	fake := &fakeActionKit{
		t:          t,
		directory:  `{"objects": [{"id": 1, "name": "A"}, {"id": 2, "name": "B"}, {"id": 3, "name": "C"}], "meta": {"next": ""}}`,
		userSearch: `{"objects": [{"id": 42, "email": "ada@example.org"}]}`,
		subscriptions: `{"objects": [
			{"list": "/rest/v1/list/1/"},
			{"list": "/rest/v1/list/2/"},
			{"list": "/rest/v1/list/3/"}
		], "meta": {"next": ""}}`,
		canonical: map[string]string{
			"/rest/v1/list/1/": `{"id": 1, "name": "A"}`,
			"/rest/v1/list/2/": `{"id": 2, "name": "B"}`,
			"/rest/v1/list/3/": `{"id": 3, "name": "C"}`,
		},
	}
	s, _ := newTestSink(t, fake.handler())

	result, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email:           "ada@example.org",
		Lists:           []string{"B"},
		SubscribeStatus: StatusUnsubscribed,
	})
	if err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if !result.Success || !result.IsUpdated {
		t.Fatalf("result = %+v", result)
	}

	if len(fake.actions) != 2 {
		t.Fatalf("expected unsubscribe + signup, got %d actions: %v", len(fake.actions), fake.actions)
	}
	if fake.actions[0]["page"] != "unsubscribe" {
		t.Fatalf("first action page = %v", fake.actions[0]["page"])
	}
	if fake.actions[1]["page"] != "signup" {
		t.Fatalf("second action page = %v", fake.actions[1]["page"])
	}
	// The re-subscribe covers the desired set, never the complement.
	if got := actionLists(t, fake.actions[1]); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("signup lists = %v, want [2]", got)
	}
}

func TestUpsertRecordUnsubscribeWithoutRemovalsSkipsUnsubscribe(t *testing.T) {
	fake := &fakeActionKit{
		t:             t,
		directory:     `{"objects": [{"id": 2, "name": "B"}], "meta": {"next": ""}}`,
		userSearch:    `{"objects": [{"id": 42, "email": "ada@example.org"}]}`,
		subscriptions: `{"objects": [{"list": "/rest/v1/list/2/"}], "meta": {"next": ""}}`,
		canonical: map[string]string{
			"/rest/v1/list/2/": `{"id": 2, "name": "B"}`,
		},
	}
	s, _ := newTestSink(t, fake.handler())

	if _, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email:           "ada@example.org",
		Lists:           []string{"B"},
		SubscribeStatus: StatusUnsubscribed,
	}); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if len(fake.actions) != 1 {
		t.Fatalf("expected signup only, got %d actions", len(fake.actions))
	}
	if fake.actions[0]["page"] != "signup" {
		t.Fatalf("action page = %v", fake.actions[0]["page"])
	}
}

func TestUpsertRecordUnsubscribeUnknownUserSignsUpFresh(t *testing.T) {
	fake := &fakeActionKit{
		t:          t,
		directory:  `{"objects": [{"id": 2, "name": "B"}], "meta": {"next": ""}}`,
		userSearch: `{"objects": []}`,
	}
	s, _ := newTestSink(t, fake.handler())

	if _, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email:           "new@example.org",
		Lists:           []string{"B"},
		SubscribeStatus: StatusUnsubscribed,
	}); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if len(fake.actions) != 1 {
		t.Fatalf("expected a single signup, got %d actions", len(fake.actions))
	}
	if got := actionLists(t, fake.actions[0]); got == nil || len(got) != 0 {
		t.Fatalf("fresh signup for unknown user should carry an empty list set, got %v (raw %v)", got, fake.actions[0]["lists"])
	}
}

func TestUpsertRecordUnspecifiedIntentSendsNullLists(t *testing.T) {
	fake := &fakeActionKit{t: t}
	s, _ := newTestSink(t, fake.handler())

	if _, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email: "ada@example.org",
	}); err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if len(fake.actions) != 1 {
		t.Fatalf("expected one signup, got %d", len(fake.actions))
	}
	if raw, ok := fake.actions[0]["lists"]; !ok || raw != nil {
		t.Fatalf("unspecified intent should send lists as null, got %v (present=%v)", raw, ok)
	}
}

func TestUpsertRecordPhoneMergeIsAppendOnly(t *testing.T) {
	fake := &fakeActionKit{
		t:    t,
		user: `{"id": 42, "phones": [{"type": "mobile", "phone": "+15551234567"}]}`,
	}
	s, _ := newTestSink(t, fake.handler())

	result, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email:        "ada@example.org",
		PhoneNumbers: []PhoneNumber{{Number: "+15551234567"}},
	})
	if err != nil {
		t.Fatalf("UpsertRecord() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}

	// Profile patch first, then the phones patch.
	if len(fake.patches) != 2 {
		t.Fatalf("expected 2 patches, got %d", len(fake.patches))
	}
	phonesRaw, ok := fake.patches[1]["phones"].([]any)
	if !ok {
		t.Fatalf("phones patch = %v", fake.patches[1])
	}
	if len(phonesRaw) != 2 {
		t.Fatalf("append-only merge must keep the duplicate, got %d entries", len(phonesRaw))
	}
	appended, ok := phonesRaw[1].(map[string]any)
	if !ok {
		t.Fatalf("appended phone = %v", phonesRaw[1])
	}
	if appended["type"] != "mobile" {
		t.Fatalf("missing type must default to mobile, got %v", appended["type"])
	}
	if appended["user"] != "/rest/v1/user/42/" {
		t.Fatalf("appended phone user ref = %v", appended["user"])
	}
	if appended["source"] != "target_actionkit" {
		t.Fatalf("appended phone source = %v", appended["source"])
	}
}

func TestUpsertRecordPatchFailureSurfacesClassifiedError(t *testing.T) {
	fake := &fakeActionKit{
		t:           t,
		patchStatus: http.StatusBadRequest,
	}
	s, _ := newTestSink(t, fake.handler())

	result, err := s.UpsertRecord(context.Background(), ContactRecord{
		Email: "ada@example.org",
	})
	var ipe *actionkit.InvalidPayloadError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidPayloadError, got %T: %v", err, err)
	}
	if result.Success {
		t.Fatal("failed patch must not report success")
	}
	if result.RemoteID != "42" {
		t.Fatalf("remote id should still identify the user, got %q", result.RemoteID)
	}
}

func TestUpsertRecordMissingEmailMakesNoCalls(t *testing.T) {
	s, _ := newTestSink(t, noCallsHandler(t))
	_, err := s.UpsertRecord(context.Background(), ContactRecord{FirstName: "Ada"})
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PreconditionError, got %T: %v", err, err)
	}
}

func TestComplement(t *testing.T) {
	got := complement([]int64{1, 2, 3}, []int64{2})
	if !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Fatalf("complement() = %v", got)
	}
	if complement([]int64{2}, []int64{2}) != nil {
		t.Fatal("expected empty complement")
	}
}
