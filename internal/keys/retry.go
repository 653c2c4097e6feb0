// Copyright 2025 Dominik Schlosser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keys

import (
	"crypto"
	"errors"
	"fmt"
)

// SigningState tracks a signing attempt through the key-unlock retry cycle.
type SigningState int

const (
	StateSigning SigningState = iota
	StateLocked
	StateRetrying
	StateFailed
	StateDone
)

func (s SigningState) String() string {
	switch s {
	case StateSigning:
		return "Signing"
	case StateLocked:
		return "Locked"
	case StateRetrying:
		return "Retrying"
	case StateFailed:
		return "Failed"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("SigningState(%d)", int(s))
	}
}

// RetrySigner is an explicit state machine around SecureArea signing.
// A locked key moves the machine to StateLocked; the caller injects
// UnlockData via Unlock and calls Signer again, which moves through
// StateRetrying to StateDone or StateFailed. Terminal states are final.
type RetrySigner struct {
	area   SecureArea
	keyID  string
	unlock *UnlockData
	state  SigningState
}

func NewRetrySigner(area SecureArea, keyID string) *RetrySigner {
	return &RetrySigner{area: area, keyID: keyID, state: StateSigning}
}

// State returns the current machine state.
func (r *RetrySigner) State() SigningState { return r.state }

// Unlock injects unlock material after a StateLocked outcome.
func (r *RetrySigner) Unlock(unlock *UnlockData) error {
	if r.state != StateLocked {
		return fmt.Errorf("unlock in state %s, want %s", r.state, StateLocked)
	}
	r.unlock = unlock
	r.state = StateRetrying
	return nil
}

// SignerFor runs one signing attempt through the retry machine. A nil
// unlock is the first attempt and surfaces ErrKeyLocked when the key
// needs user authentication; non-nil unlock replays the Locked to
// Retrying transition with the user-provided material.
func SignerFor(area SecureArea, keyID string, unlock *UnlockData) (crypto.Signer, error) {
	r := NewRetrySigner(area, keyID)
	signer, err := r.Signer()
	if err == nil {
		return signer, nil
	}
	if !errors.Is(err, ErrKeyLocked) || unlock == nil {
		return nil, err
	}
	if err := r.Unlock(unlock); err != nil {
		return nil, err
	}
	return r.Signer()
}

// Signer attempts to obtain a signer, advancing the machine. It returns
// ErrKeyLocked from StateSigning when user authentication is required.
func (r *RetrySigner) Signer() (crypto.Signer, error) {
	switch r.state {
	case StateSigning, StateRetrying:
	case StateLocked:
		return nil, ErrKeyLocked
	default:
		return nil, fmt.Errorf("signer requested in terminal state %s", r.state)
	}

	signer, err := r.area.Signer(r.keyID, r.unlock)
	if err != nil {
		if errors.Is(err, ErrKeyLocked) && r.state == StateSigning {
			r.state = StateLocked
			return nil, ErrKeyLocked
		}
		r.state = StateFailed
		return nil, err
	}
	r.state = StateDone
	return signer, nil
}
