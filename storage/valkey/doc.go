// Package valkey provides a Valkey-backed implementation of the storage
// interfaces for multi-instance deployments.
//
// All single-use and rotation semantics that must survive concurrent
// access are enforced server-side with Lua scripts: consuming an
// authorization code, revoking a refresh token, and rotating a refresh
// token each execute atomically inside Valkey, so two instances racing
// on the same code or token cannot both succeed.
//
// Consumed authorization codes are not deleted immediately. They are
// rewritten with a retention TTL (ConsumedCodeRetention, 24h by default)
// so a replayed code is recognized as consumed rather than unknown,
// which lets the caller revoke every token derived from it. Revoked
// refresh tokens similarly keep their original TTL for auditing.
//
// Key layout (all under the configured prefix, "driftmap:" by default):
//
//	client:<client_id>                registered client record
//	code:<code>                       authorization code
//	refresh:<token>                   refresh token
//	userclient:<user_id>:<client_id>  set of token values, used for
//	                                  replay-triggered bulk revocation
package valkey
