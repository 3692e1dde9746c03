// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

// DispatchState is a state of the webhook dispatcher.
type DispatchState string

const (
	DispatchReceived   DispatchState = "received"
	DispatchVerified   DispatchState = "verified"
	DispatchValidating DispatchState = "validating"
	DispatchProcessing DispatchState = "processing"
	DispatchCompleted  DispatchState = "completed"
	DispatchRejected   DispatchState = "rejected"
	DispatchFailed     DispatchState = "failed"
)

// Terminal reports whether no further transition can happen.
func (s DispatchState) Terminal() bool {
	switch s {
	case DispatchCompleted, DispatchRejected, DispatchFailed:
		return true
	}
	return false
}

// DispatchOutcome is the result of dispatching one webhook event.
type DispatchOutcome struct {
	State DispatchState
	Kind  EventKind
	// Challenge is set for url_validation events.
	Challenge *ZoomURLValidationResponse
	// Duplicate is set when the occurrence had already been processed.
	Duplicate bool
	Result    *ClassificationResult
}
