package mcp

import (
	"encoding/json"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

// sensitiveFields are the record attributes hidden by redact_output.
var sensitiveFields = []string{"password", "cvv", "cardNumber", "accountNumber", "iban"}

// recordFields converts rec to its tagged JSON attributes. With redact set,
// sensitive attributes are replaced by [REDACTED:field].
func recordFields(rec record.Record, redact bool) (map[string]any, error) {
	data, err := record.Serialize(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if redact {
		for _, f := range sensitiveFields {
			if _, ok := fields[f]; ok {
				fields[f] = "[REDACTED:" + f + "]"
			}
		}
	}
	return fields, nil
}
