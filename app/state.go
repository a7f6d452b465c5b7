// Copyright 2025 The Alumap Authors
// SPDX-License-Identifier: Apache-2.0

package app

import "fmt"

// State is the load state of the application.
type State int

const (
	StateLoading State = iota
	StateReady
	StateError
)

var stateNames = map[State]string{
	StateLoading: "loading",
	StateReady:   "ready",
	StateError:   "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
