// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package handlers

import (
	"net/http"
)

// ReadinessCheck reports whether one dependency is ready.
type ReadinessCheck func() bool

// Livez always answers 200 while the process is serving.
func Livez(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

// Readyz answers 200 when every check passes and 503 otherwise.
func Readyz(checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		for _, ready := range checks {
			if !ready() {
				writeText(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
				return
			}
		}
		writeText(w, http.StatusOK, "OK")
	}
}
