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
	"errors"
	"testing"
)

func TestSoftwareSecureAreaUnlockedKey(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", ""); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	signer, err := area.Signer("k1", nil)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if signer == nil {
		t.Fatal("expected signer")
	}
}

func TestSoftwareSecureAreaLockedKey(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", "1234"); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	if _, err := area.Signer("k1", nil); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked without unlock, got %v", err)
	}
	if _, err := area.Signer("k1", &UnlockData{KeyID: "k1", Passphrase: "wrong"}); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked with wrong passphrase, got %v", err)
	}
	if _, err := area.Signer("k1", &UnlockData{KeyID: "k1", Passphrase: "1234"}); err != nil {
		t.Fatalf("expected signer with matching passphrase, got %v", err)
	}
}

func TestSoftwareSecureAreaUnknownKey(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.Signer("missing", nil); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestRetrySignerHappyPath(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", ""); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	r := NewRetrySigner(area, "k1")
	if r.State() != StateSigning {
		t.Fatalf("initial state = %s, want %s", r.State(), StateSigning)
	}
	if _, err := r.Signer(); err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if r.State() != StateDone {
		t.Fatalf("state = %s, want %s", r.State(), StateDone)
	}
}

func TestRetrySignerLockAndRetry(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", "1234"); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	r := NewRetrySigner(area, "k1")
	if _, err := r.Signer(); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked, got %v", err)
	}
	if r.State() != StateLocked {
		t.Fatalf("state = %s, want %s", r.State(), StateLocked)
	}

	// Signing while locked does not hit the secure area again.
	if _, err := r.Signer(); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked in locked state, got %v", err)
	}

	if err := r.Unlock(&UnlockData{KeyID: "k1", Passphrase: "1234"}); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if r.State() != StateRetrying {
		t.Fatalf("state = %s, want %s", r.State(), StateRetrying)
	}
	if _, err := r.Signer(); err != nil {
		t.Fatalf("Signer after unlock: %v", err)
	}
	if r.State() != StateDone {
		t.Fatalf("state = %s, want %s", r.State(), StateDone)
	}
}

func TestRetrySignerRetryWithWrongUnlockFails(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", "1234"); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	r := NewRetrySigner(area, "k1")
	if _, err := r.Signer(); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked, got %v", err)
	}
	if err := r.Unlock(&UnlockData{KeyID: "k1", Passphrase: "wrong"}); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := r.Signer(); err == nil {
		t.Fatal("expected failure with wrong unlock")
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %s, want %s", r.State(), StateFailed)
	}
	// Terminal state rejects further attempts.
	if _, err := r.Signer(); err == nil {
		t.Fatal("expected error in terminal state")
	}
}

func TestSignerForDrivesRetryMachine(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("open", ""); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if _, err := area.CreateKey("locked", "1234"); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	if _, err := SignerFor(area, "open", nil); err != nil {
		t.Fatalf("SignerFor open key: %v", err)
	}

	// First attempt on a locked key surfaces ErrKeyLocked so the caller
	// can prompt for authentication.
	if _, err := SignerFor(area, "locked", nil); !errors.Is(err, ErrKeyLocked) {
		t.Fatalf("expected ErrKeyLocked, got %v", err)
	}

	// The retry with unlock material replays Locked -> Retrying -> Done.
	if _, err := SignerFor(area, "locked", &UnlockData{KeyID: "locked", Passphrase: "1234"}); err != nil {
		t.Fatalf("SignerFor with unlock: %v", err)
	}

	if _, err := SignerFor(area, "locked", &UnlockData{KeyID: "locked", Passphrase: "wrong"}); err == nil {
		t.Fatal("expected failure with wrong unlock")
	}
}

func TestRetrySignerUnlockOnlyValidWhenLocked(t *testing.T) {
	area := NewSoftwareSecureArea()
	r := NewRetrySigner(area, "k1")
	if err := r.Unlock(&UnlockData{}); err == nil {
		t.Fatal("expected error unlocking in Signing state")
	}
}

func TestSignES256RawLength(t *testing.T) {
	area := NewSoftwareSecureArea()
	if _, err := area.CreateKey("k1", ""); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	signer, err := area.Signer("k1", nil)
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}

	sig, err := SignES256Raw(signer, []byte("payload"))
	if err != nil {
		t.Fatalf("SignES256Raw: %v", err)
	}
	if len(sig) != 64 {
		t.Fatalf("signature length = %d, want 64", len(sig))
	}
}
