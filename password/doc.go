// Package password provides one-way hashing and verification for stored
// secrets using argon2id in PHC string format.
package password
