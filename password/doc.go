// Package password hashes and verifies account passwords.
//
// # Output format
//
// New hashes are Argon2id in PHC string format with unpadded base64:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify also accepts Argon2i hashes and padded base64, the format written
// by older account stores. [Argon2.NeedsUpgrade] reports true for those and
// for hashes made with weaker parameters, so the caller can rehash after the
// next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other gdprAuth package.
//   - Log plaintext passwords.
package password
