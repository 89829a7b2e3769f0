// Package store implements the persistence interfaces of caseauth on
// MongoDB. Uniqueness of emails and API keys is enforced by indexes, not
// by caller-side checks; run EnsureIndexes at startup.
package store
