package wfst

import "github.com/lauacosta/GIS-TPI/internal/core/ogc"

type ItemError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Batch aggregates per-item transaction outcomes so a caller can report
// partial success.
type Batch struct {
	SuccessCount int         `json:"successCount"`
	ErrorCount   int         `json:"errorCount"`
	Errors       []ItemError `json:"errors,omitempty"`
}

func (b *Batch) Add(id string, res ogc.TransactionResult) {
	if res.OK {
		b.SuccessCount++
		return
	}
	msg := res.Message
	if msg == "" && res.Err != nil {
		msg = res.Err.Error()
	}
	b.Fail(id, msg)
}

func (b *Batch) Fail(id, message string) {
	b.ErrorCount++
	b.Errors = append(b.Errors, ItemError{ID: id, Message: message})
}

func (b Batch) Total() int { return b.SuccessCount + b.ErrorCount }

// FirstError is the representative message shown to the user.
func (b Batch) FirstError() string {
	if len(b.Errors) == 0 {
		return ""
	}
	return b.Errors[0].Message
}
