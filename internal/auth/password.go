package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes passwords at rest and verifies presented
// plaintexts against a stored hash.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: bcrypt.DefaultCost}
}

// Hash derives a salted, one-way hash of the raw password.
func (h *PasswordHasher) Hash(rawPassword string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(rawPassword), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether rawPassword matches the stored hash. A
// mismatch is not an error; it is a plain false.
func (h *PasswordHasher) Verify(rawPassword, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}
