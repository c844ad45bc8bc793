// Package capability resolves which operations an account may issue against
// a stable coin and through which execution path.
//
// A key held by the token's proxy contract yields CONTRACT access. A public
// key yields NATIVE access. Operations missing from the resolved list are
// forbidden.
package capability
