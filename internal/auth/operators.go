package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrOperatorNotFound and ErrBadCredentials are returned by Authenticate.
var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrBadCredentials   = errors.New("invalid credentials")
)

// operatorRecord is one entry in the directory: a bcrypt hash, never the
// plaintext password.
type operatorRecord struct {
	passwordHash string
	role         string
}

// OperatorDirectory holds the admin operators permitted to reach the ops
// surface (halt/resume/audit/pipeline stats). Unlike trading sessions,
// which authenticate at the FIX/session layer, operators log in with a
// password hashed the way the teacher's signup/login handlers do.
type OperatorDirectory struct {
	mu        sync.RWMutex
	operators map[string]operatorRecord
	cost      int
}

// NewOperatorDirectory builds an empty directory. cost is the bcrypt
// work factor; 0 selects bcrypt.DefaultCost.
func NewOperatorDirectory(cost int) *OperatorDirectory {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &OperatorDirectory{operators: make(map[string]operatorRecord), cost: cost}
}

// Register hashes password and adds operatorID to the directory,
// replacing any existing entry.
func (d *OperatorDirectory) Register(operatorID, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.operators[operatorID] = operatorRecord{passwordHash: string(hash), role: role}
	return nil
}

// Authenticate verifies password against the stored hash for operatorID
// and returns the operator's configured role on success.
func (d *OperatorDirectory) Authenticate(operatorID, password string) (string, error) {
	d.mu.RLock()
	rec, ok := d.operators[operatorID]
	d.mu.RUnlock()
	if !ok {
		return "", ErrOperatorNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}
	return rec.role, nil
}
