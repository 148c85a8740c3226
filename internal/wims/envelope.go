package wims

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The server classifies errors only through free-text messages, so outcome
// detection is substring matching against an externally imposed contract.
// Keep the needles in one place: they are brittle by construction and must
// track the server, not our preferences.
type messageRule struct {
	needle string
	exact  bool
}

// emptyResultRules lists ERROR responses accepted as success with an empty
// payload: a modify-type job that changed nothing, and a user-existence
// check on an absent user. Note the asymmetry: the first is an exact match,
// the second a containment check.
var emptyResultRules = []messageRule{
	{needle: "nothing done", exact: true},
	{needle: "not in this class", exact: false},
}

const (
	notAllowedNeedle  = "illegal job"
	deletedUserNeedle = "Deleted user found"
)

func matchesEmptyResult(message string) bool {
	for _, rule := range emptyResultRules {
		if rule.exact {
			if message == rule.needle {
				return true
			}
		} else if strings.Contains(message, rule.needle) {
			return true
		}
	}
	return false
}

// result is a validated adm/raw response. Empty marks responses accepted
// under the recoverable empty-result rules; their payload carries no
// job-specific fields.
type result struct {
	Message string
	Empty   bool
	payload map[string]json.RawMessage
}

type envelopeHead struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeEnvelope validates the JSON envelope against the correlation code
// issued for this request. Malformed JSON is a protocol break, distinct
// from both transport and logical failure.
func decodeEnvelope(job string, raw []byte, expectedCode string) (*result, error) {
	var head envelopeHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &ProtocolError{Job: job, Body: string(raw)}
	}

	if head.Status == "ERROR" && head.Code == expectedCode && strings.Contains(head.Message, notAllowedNeedle) {
		return nil, &NotAllowedError{Job: job}
	}

	if head.Status == "OK" && head.Code == expectedCode {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, &ProtocolError{Job: job, Body: string(raw)}
		}
		// Protocol bookkeeping keys are not part of any job's payload.
		delete(payload, "code")
		delete(payload, "job")
		return &result{Message: head.Message, payload: payload}, nil
	}

	if head.Status == "ERROR" && head.Code == expectedCode && matchesEmptyResult(head.Message) {
		return &result{Message: head.Message, Empty: true, payload: map[string]json.RawMessage{}}, nil
	}

	return nil, &RemoteError{Job: job, Message: head.Message}
}

// stringField projects a payload value into a string, tolerating the
// server's habit of sending numbers and strings interchangeably.
func (r *result) stringField(key string) string {
	raw, ok := r.payload[key]
	if !ok {
		return ""
	}
	return rawToString(raw)
}

// stringSlice projects a payload array into strings element-wise.
func (r *result) stringSlice(key string) []string {
	raw, ok := r.payload[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		values = append(values, rawToString(item))
	}
	return values
}

// stringMap flattens the full payload into strings, dropping the given keys.
func (r *result) stringMap(dropKeys ...string) map[string]string {
	drop := make(map[string]bool, len(dropKeys))
	for _, key := range dropKeys {
		drop[key] = true
	}
	out := make(map[string]string, len(r.payload))
	for key, raw := range r.payload {
		if drop[key] {
			continue
		}
		out[key] = rawToString(raw)
	}
	return out
}

func (r *result) decodeField(key string, dst interface{}) error {
	raw, ok := r.payload[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.TrimSpace(string(raw))
}

// flexFloat decodes JSON numbers that the server may quote.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(string(data), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(value)
	return nil
}
