package audit

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// free-text field value.
type InjectionCheckResult struct {
	FieldName   string
	FieldValue  string
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckFieldForInjection scans a free-text field value (line descriptions,
// comments, requested-change notes) for SQL injection patterns. Only string
// values are checked; numbers, booleans and dates cannot carry injection
// payloads and return nil.
//
// A non-nil result does not reject the request - the values are always bound
// as parameters - but it is surfaced to the security auditor for SIEM
// alerting.
func CheckFieldForInjection(fieldName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		FieldName:   fieldName,
		FieldValue:  strValue,
		Fingerprint: string(fingerprint),
	}
}
