package clips

import "golang.org/x/crypto/bcrypt"

// HashAccessCode hashes a clip access code for storage. The engine never
// sees plaintext codes after creation.
func HashAccessCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckAccessCode compares a candidate code against a stored hash.
func CheckAccessCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
