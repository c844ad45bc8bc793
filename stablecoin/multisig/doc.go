// Package multisig stores transactions that need signatures from several
// keys, collects those signatures and submits the transactions once the
// threshold is met.
//
// A transaction is created PENDING with its frozen body bytes. Each key
// holder signs the body and posts the signature; when enough keys have
// signed the transaction becomes SIGNED. The AutoSubmitter then submits it
// inside its validity window, deleting it on success and marking it ERROR on
// failure. Transactions whose window has passed become EXPIRED.
package multisig
