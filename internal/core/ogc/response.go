package ogc

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

var ErrNoFeatureDeleted = errors.New("no feature deleted")

// TransactionError is a per-request failure: HTTP rejection, server
// exception, transport error or an empty delete.
type TransactionError struct {
	Status  int
	Message string
	cause   error
}

func (e *TransactionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transaction failed (status %d): %s", e.Status, e.Message)
	}
	return "transaction failed: " + e.Message
}

func (e *TransactionError) Unwrap() error { return e.cause }

// TransactionResult is returned for every submitted request; expected failure
// modes are reported here instead of as Go errors.
type TransactionResult struct {
	Op         Op       `json:"op"`
	OK         bool     `json:"ok"`
	HTTPStatus int      `json:"status,omitempty"`
	Inserted   int      `json:"inserted,omitempty"`
	Deleted    int      `json:"deleted,omitempty"`
	FeatureIDs []string `json:"featureIds,omitempty"`
	Message    string   `json:"message,omitempty"`
	Err        error    `json:"-"`
}

// Failure builds a failed result. status is 0 for transport errors.
func Failure(op Op, status int, message string, cause error) TransactionResult {
	return TransactionResult{
		Op:         op,
		HTTPStatus: status,
		Message:    message,
		Err:        &TransactionError{Status: status, Message: message, cause: cause},
	}
}

var (
	reExceptionText = regexp.MustCompile(`(?s)<ows:ExceptionText>(.*?)</ows:ExceptionText>`)
	reTotalInserted = regexp.MustCompile(`<(?:[\w-]+:)?totalInserted>\s*(\d+)\s*<`)
	reTotalDeleted  = regexp.MustCompile(`<(?:[\w-]+:)?totalDeleted>\s*(\d+)\s*<`)
	reFeatureID     = regexp.MustCompile(`<(?:[\w-]+:)?FeatureId\s+fid="([^"]*)"`)
)

// InterpretTransaction maps an HTTP status and body onto a result.
func InterpretTransaction(op Op, status int, body []byte) TransactionResult {
	text := string(body)

	if status < 200 || status >= 300 {
		return Failure(op, status, text, nil)
	}
	if strings.Contains(text, "ExceptionReport") || strings.Contains(text, "ows:Exception") {
		msg := text
		if m := reExceptionText.FindStringSubmatch(text); m != nil {
			msg = html.UnescapeString(strings.TrimSpace(m[1]))
		}
		return Failure(op, status, msg, nil)
	}

	res := TransactionResult{Op: op, OK: true, HTTPStatus: status}
	switch op {
	case OpDelete:
		res.Deleted = firstInt(reTotalDeleted, text)
		if res.Deleted == 0 {
			return Failure(op, status, ErrNoFeatureDeleted.Error(), ErrNoFeatureDeleted)
		}
	case OpInsert:
		res.Inserted = firstInt(reTotalInserted, text)
		for _, m := range reFeatureID.FindAllStringSubmatch(text, -1) {
			if m[1] != "" && m[1] != "none" {
				res.FeatureIDs = append(res.FeatureIDs, m[1])
			}
		}
	}
	return res
}

func firstInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
