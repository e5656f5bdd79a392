// Package secure holds revealed secret values in protected memory.
//
// A value fetched for display or clipboard copy lives in a memguard
// enclave, encrypted at rest and mlocked where the platform allows, so a
// revealed secret never sits in plain Go heap memory between the fetch and
// the moment it is shown or copied. Call Purge at process exit to wipe
// everything memguard still tracks.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Value is a secret value at rest in protected memory. The zero Value is
// not usable; construct with Hold.
type Value struct {
	name string

	mu      sync.RWMutex
	enclave *memguard.Enclave
	wiped   bool
}

// Hold seals a plaintext secret value into an enclave. The plaintext
// argument's backing array is wiped by memguard during sealing.
func Hold(name string, plaintext []byte) *Value {
	return &Value{
		name:    name,
		enclave: memguard.NewEnclave(plaintext),
	}
}

// HoldString seals a string value. Strings are immutable, so a copy is
// taken; the original cannot be wiped.
func HoldString(name, plaintext string) *Value {
	return Hold(name, []byte(plaintext))
}

// Name returns the secret's name. The name is not sensitive.
func (v *Value) Name() string {
	return v.name
}

// Reveal decrypts the value and passes the plaintext to fn. The plaintext
// is wiped when fn returns; fn must not retain it.
func (v *Value) Reveal(fn func(plaintext []byte) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.wiped || v.enclave == nil {
		return fn(nil)
	}
	locked, err := v.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// String decrypts the value into an ordinary string for handing to a
// renderer or the clipboard. The returned string is unprotected; callers
// keep it only as long as it is on screen.
func (v *Value) String() (string, error) {
	var out string
	err := v.Reveal(func(plaintext []byte) error {
		out = string(plaintext)
		return nil
	})
	return out, err
}

// Wipe drops the enclave. Idempotent; after Wipe, Reveal yields nil
// plaintext.
func (v *Value) Wipe() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enclave = nil
	v.wiped = true
}

// Purge wipes all protected memory the process has allocated. Intended as
// a deferred call in main.
func Purge() {
	memguard.Purge()
}
