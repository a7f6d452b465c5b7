// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// transportError classifies a failure to reach the provider at all.
func transportError(provider string, err error) *GeocodingError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GeocodingError{
			Type:    ErrorTypeTimeout,
			Message: fmt.Sprintf("%s: request timed out", provider),
			Err:     err,
		}
	}

	return &GeocodingError{
		Type:    ErrorTypeNetworkError,
		Message: fmt.Sprintf("%s: geocoding request failed", provider),
		Err:     err,
	}
}
