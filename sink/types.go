package sink

import "fmt"

// SubscribeStatus is the record's membership-intent signal. Anything other
// than the two known values is treated as unspecified.
type SubscribeStatus string

const (
	StatusSubscribed   SubscribeStatus = "subscribed"
	StatusUnsubscribed SubscribeStatus = "unsubscribed"
)

// ContactRecord is the inbound entity delivered by the ingestion stream.
// Email is the natural key and the only required field.
type ContactRecord struct {
	Email           string          `json:"email"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Addresses       []Address       `json:"addresses"`
	CustomFields    []CustomField   `json:"custom_fields"`
	PhoneNumbers    []PhoneNumber   `json:"phone_numbers"`
	Lists           []string        `json:"lists"`
	SubscribeStatus SubscribeStatus `json:"subscribe_status"`

	// Error carries an upstream producer's failure marker. A record
	// flagged this way is rejected without processing.
	Error string `json:"error,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CustomField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type PhoneNumber struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// UpsertResult is the only state reported back to the calling pipeline.
// IsUpdated false means a new remote user was created.
type UpsertResult struct {
	RemoteID  string `json:"remote_id,omitempty"`
	Success   bool   `json:"success"`
	IsUpdated bool   `json:"is_updated"`
}

// PreconditionError marks a record that can never succeed as-is: a missing
// email or an upstream error marker. Never retried.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("record precondition failed: %s", e.Reason)
}
