package sink

import (
	"context"
	"fmt"
	"strings"
)

// Custom field names treated as top-level payload keys instead of
// arbitrary attributes under the fields bag. Matched on the lowercased
// name.
var reservedFieldNames = map[string]struct{}{
	"source": {},
}

// preprocessRecord maps an inbound record into the API's payload shape
// and resolves its list names to ids, creating missing lists on the way.
// The returned ids follow the trimmed input order; the payload carries the
// same ids under "lists".
func (s *Sink) preprocessRecord(ctx context.Context, record ContactRecord) (map[string]any, []int64, error) {
	if strings.TrimSpace(record.Email) == "" {
		return nil, nil, &PreconditionError{Reason: "email is a required field for ActionKit"}
	}
	if record.Error != "" {
		return nil, nil, &PreconditionError{Reason: record.Error}
	}

	payload := map[string]any{
		"first_name": record.FirstName,
		"last_name":  record.LastName,
		"email":      record.Email,
	}

	// Only the first address survives; extra entries are dropped.
	if len(record.Addresses) > 0 {
		address := record.Addresses[0]
		payload["address1"] = address.Line1
		payload["city"] = address.City
		payload["state"] = address.State
		payload["region"] = address.State
		payload["postal"] = address.PostalCode
		payload["zip"] = zipFromPostal(address.PostalCode)
		payload["country"] = transformCountryCode(address.Country)
	}

	var listIDs []int64
	if record.Lists != nil {
		// Leading and trailing whitespace breaks list validation
		// remotely, so names are trimmed before any lookup.
		trimmed := make([]string, 0, len(record.Lists))
		for _, name := range record.Lists {
			trimmed = append(trimmed, strings.TrimSpace(name))
		}
		for _, name := range trimmed {
			if err := s.lists.Ensure(ctx, name); err != nil {
				return nil, nil, err
			}
		}
		listIDs = make([]int64, 0, len(trimmed))
		for _, name := range trimmed {
			id, ok, err := s.lists.Resolve(ctx, name)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				// Ensure failed to register the name; losing the
				// membership silently would be worse than failing
				// the record.
				return nil, nil, fmt.Errorf("list %q is not resolvable", name)
			}
			listIDs = append(listIDs, id)
		}
		payload["lists"] = listIDs
	}

	if record.CustomFields != nil {
		fields := map[string]any{}
		for _, field := range record.CustomFields {
			lower := strings.ToLower(field.Name)
			if _, reserved := reservedFieldNames[lower]; reserved {
				payload[lower] = field.Value
				continue
			}
			fields[field.Name] = field.Value
		}
		payload["fields"] = fields
	}

	return payload, listIDs, nil
}

// zipFromPostal derives the 5-character zip from a postal code. Codes of
// five characters or fewer pass through unchanged.
func zipFromPostal(postal string) string {
	if len(postal) > 5 {
		return postal[:5]
	}
	return postal
}
