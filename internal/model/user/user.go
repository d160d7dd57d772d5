package user

import "time"

// User is an authenticated account. The password hash never leaves the store
// layer; handlers only ever see this struct.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Record is the storage-layer shape, including the bcrypt hash.
type Record struct {
	User
	PasswordHash string
}
